package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/platinummonkey/cantor/pkg/auth"
	"github.com/platinummonkey/cantor/pkg/observability"
	"github.com/platinummonkey/cantor/pkg/storage/sqlstore"
)

// resetInbox captures reset tokens instead of sending them
type resetInbox struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (n *resetInbox) NotifyPasswordReset(_ context.Context, identity auth.Identity, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.tokens == nil {
		n.tokens = make(map[string]string)
	}
	n.tokens[identity.Email] = token
	return nil
}

func (n *resetInbox) token(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.tokens[email]
}

type testEnv struct {
	server   *Server
	service  *auth.Service
	store    *sqlstore.Store
	inbox    *resetInbox
	metrics  *observability.Metrics
	registry *prometheus.Registry
}

func newTestEnv(t *testing.T, mutate ...func(*Options)) *testEnv {
	t.Helper()
	ctx := context.Background()

	store, err := sqlstore.Open(ctx, sqlstore.Config{
		Driver: sqlstore.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "api.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(ctx))

	logger := observability.NewLogger(observability.ErrorLevel, &bytes.Buffer{})
	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	inbox := &resetInbox{}
	svc, err := auth.NewService(store, auth.Config{BcryptCost: bcrypt.MinCost},
		auth.WithResetNotifier(inbox),
		auth.WithLogger(logger),
		auth.WithMetrics(metrics),
	)
	require.NoError(t, err)

	opts := Options{
		Service: svc,
		Logger:  logger,
		Metrics: metrics,
	}
	for _, m := range mutate {
		m(&opts)
	}

	return &testEnv{
		server:   NewServer(opts),
		service:  svc,
		store:    store,
		inbox:    inbox,
		metrics:  metrics,
		registry: registry,
	}
}

func (e *testEnv) createAccount(t *testing.T, email, password string, role auth.Role) *auth.Account {
	t.Helper()
	a, err := e.service.CreateAccount(context.Background(), auth.NewAccount{
		Email:    email,
		Password: password,
		Name:     email,
		Role:     string(role),
	})
	require.NoError(t, err)
	return a
}

func (e *testEnv) login(t *testing.T, email, password string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/auth/login", "", LoginRequest{Email: email, Password: password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Token
}

// do sends a request through the full handler chain. body may be nil, a
// string sent verbatim, or a value encoded as JSON.
func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	return serve(t, e.server, method, path, token, body)
}

func serve(t *testing.T, h http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body.Error
}
