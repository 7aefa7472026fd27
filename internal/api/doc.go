// Package api serves the operational HTTP endpoints of LPWAN Core.
//
// Endpoints:
//   - GET /healthz  liveness, always 200 while the process serves requests
//   - GET /readyz   runs every registered health check, 503 on any failure
//   - GET /metrics  Prometheus exposition (path configurable)
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
