// Package cli implements cantorctl, the operator tool for a Cantor
// deployment. It reads the same configuration as the server.
//
//	cantorctl migrate
//	CANTOR_ACCOUNT_PASSWORD=... cantorctl create-account -email ana@parish.example -name "Ana" -role musician -instrument organ
//	CANTOR_ACCOUNT_PASSWORD=... cantorctl create-account -email dir@parish.example -name "Director" -role admin
//	cantorctl seed
//	cantorctl purge
//
// Every command accepts -config to name a YAML file; it defaults to
// CANTOR_CONFIG_FILE.
package cli
