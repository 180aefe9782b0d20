package auth

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{"admin", RoleAdmin, false},
		{"ADMIN", RoleAdmin, false},
		{" musician ", RoleMusician, false},
		{"musico", RoleMusician, false},
		{"", "", true},
		{"admn", "", true},
		{"superuser", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRole(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRole(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseRole(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRole_Valid(t *testing.T) {
	if !RoleAdmin.Valid() || !RoleMusician.Valid() {
		t.Error("known roles should be valid")
	}
	if Role("musico").Valid() {
		t.Error("legacy spelling is only accepted by ParseRole")
	}
	if !RoleAdmin.IsAdmin() || RoleMusician.IsAdmin() {
		t.Error("only RoleAdmin is admin")
	}
}

func TestAccount_IdentityOmitsHash(t *testing.T) {
	instrument := "violin"
	a := &Account{
		ID:           "acc-1",
		Email:        "ana@parish.org",
		PasswordHash: []byte("$2a$12$secret"),
		Name:         "Ana",
		Role:         RoleMusician,
		Instrument:   &instrument,
		Active:       true,
	}

	id := a.Identity()
	if id.ID != a.ID || id.Email != a.Email || id.Role != a.Role {
		t.Errorf("Identity() = %+v, fields not copied", id)
	}

	for _, v := range []interface{}{a, id} {
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if strings.Contains(string(b), "secret") || strings.Contains(string(b), "password") {
			t.Errorf("serialized form leaks the hash: %s", b)
		}
	}
}

func TestAuthContext_HasRole(t *testing.T) {
	var nilCtx *AuthContext
	if nilCtx.HasRole(RoleAdmin) {
		t.Error("nil context has no role")
	}

	ac := &AuthContext{Identity: Identity{Role: RoleAdmin}}
	if !ac.HasRole(RoleAdmin) {
		t.Error("expected admin")
	}
	if ac.HasRole(RoleMusician) {
		t.Error("admin is not musician")
	}
}

func TestLoginResult_JSON(t *testing.T) {
	b, err := json.Marshal(LoginResult{Identity: Identity{ID: "1", Role: RoleAdmin}, Token: "tok"})
	if err != nil {
		t.Fatal(err)
	}
	s := string(b)
	if !strings.Contains(s, `"user":{`) || !strings.Contains(s, `"token":"tok"`) {
		t.Errorf("unexpected JSON: %s", s)
	}
}
