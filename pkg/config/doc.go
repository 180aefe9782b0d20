// Package config loads Cantor's configuration.
//
// Values come from, in increasing precedence: built-in defaults, an optional
// YAML file named by CANTOR_CONFIG_FILE, and CANTOR_* environment variables.
//
// Server:
//
//	CANTOR_HOST="0.0.0.0"
//	CANTOR_PORT="8080"            # PORT is accepted as a fallback
//	CANTOR_METRICS_PORT="9090"    # empty serves /metrics and health checks on CANTOR_PORT
//	CANTOR_CORS_ORIGINS="https://parish.example"
//	CANTOR_TRUST_PROXY="false"
//
// Database:
//
//	CANTOR_DB_DRIVER="postgres"   # postgres or sqlite3
//	CANTOR_DATABASE_URL="postgres://cantor@db/cantor?sslmode=disable"
//
// Auth:
//
//	CANTOR_SESSION_TTL="30m"
//	CANTOR_RESET_TOKEN_TTL="1h"
//	CANTOR_BCRYPT_COST="12"
//	CANTOR_SEED_ADMIN_EMAIL / CANTOR_SEED_ADMIN_PASSWORD
//
// Rate limiting and maintenance:
//
//	CANTOR_REDIS_URL="redis://localhost:6379/0"   # shared limiter when set
//	CANTOR_RATE_LIMIT_REQUESTS="10"
//	CANTOR_RATE_LIMIT_WINDOW="1m"
//	CANTOR_JANITOR_SCHEDULE="*/10 * * * *"
//
// Observability:
//
//	CANTOR_LOG_LEVEL="info"
//	CANTOR_OTEL_ENABLED="false"
//	CANTOR_OTEL_ENDPOINT="localhost:4317"
//
// The same keys exist in YAML under server, database, auth, redis,
// rate_limit, maintenance and observability.
package config
