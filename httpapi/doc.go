// Package httpapi serves the login and registration pipelines over JSON/HTTP
// on echo.
//
// Routes:
//
//	POST /api/login     LoginRequest    -> LoginResult    (200, 400, 401, 500)
//	POST /api/register  RegisterRequest -> RegisterResult (201, 400, 409, 500)
//	GET  /api/session   bearer JWT      -> session claims (200, 401)
//	GET  /api/health    {"status":"ok"} (200, 503)
//	GET  /metrics       Prometheus text exposition
//
// Pipeline responses always carry the full seven-step trace under
// "flowSteps", including on failure.
package httpapi
