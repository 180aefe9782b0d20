// Package httputil provides the JSON response helpers, request parsing and
// generic HTTP middleware shared by the Cantor API.
//
// Error replies always have the shape {"error": "..."}; acknowledgements use
// {"message": "..."}.
//
//	var req loginRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // 400 already written
//	}
//	httputil.WriteSuccess(w, resp)
//
// Middleware is composed with Chain, outermost first:
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware(cfg.TrustProxy),
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware(logger),
//		httputil.CORSMiddleware(cfg.CORSOrigins),
//		httputil.MaxBytesMiddleware(1 << 20),
//	)(router)
package httputil
