// Package health provides HTTP handlers for liveness and readiness checks.
//
// This package implements liveness and readiness endpoints compatible with
// Docker, Kubernetes, and 3rd-party monitoring services. Readiness of the
// mail server is checked with PingCheck over an SMTP transport.
//
// # Main Functions
//
// [LivenessHandler] provides a simple always-OK endpoint for process liveness.
// [ReadinessHandler] executes a set of [Checks] and returns service readiness.
//
// # Features
//
//   - Liveness and readiness HTTP handlers
//   - Named health checks reporting the target that answered, latency and,
//     for mail servers, the delivery failure reason
//   - JSON and plain text response formats (content negotiation)
//   - Parallel check execution with configurable timeout
//   - Works with any HTTP router (standard http.HandlerFunc)
//
// # Quick Start
//
// Register health endpoints on your router:
//
//	r.Get("/health/live", health.LivenessHandler())
//	r.Get("/health/ready", health.ReadinessHandler(health.Checks{
//	    "smtp": health.PingCheck(smtp.New(endpoint)),
//	}))
//
// # Response Formats
//
// By default, handlers respond with plain text for compatibility with orchestrator health checks.
// Request JSON by setting Accept: application/json header or ?format=json:
//
//	curl http://localhost:8080/health/ready?format=json
//
// Plain text responses:
//   - 200 OK: "OK"
//   - 503 Service Unavailable: "Service Unavailable" followed by one
//     "name: reason: error" line per failing check
//
// JSON response structure:
//
//	{
//	  "status": "healthy",
//	  "checks": {
//	    "smtp": {"status": "healthy", "target": "smtp.zoho.in:465/ssl", "latency_ms": 41},
//	    "backup": {"status": "unhealthy", "target": "smtp.zoho.com:587/starttls",
//	      "reason": "transport_error", "error": "health: check failed: ...", "latency_ms": 5000}
//	  }
//	}
//
// # Configuration Options
//
// Configure timeout and logging:
//
//	r.Get("/health/ready", health.ReadinessHandler(checks,
//	    health.WithTimeout(3*time.Second),
//	    health.WithLogger(logger),
//	))
//
// # Integration Example
//
//	candidates := health.AnyOf(
//	    health.PingCheck(smtp.New(primary)),
//	    health.PingCheck(smtp.New(fallback)),
//	)
//
//	r := chi.NewRouter()
//	r.Get("/health/live", health.LivenessHandler())
//	r.Get("/health/ready", health.ReadinessHandler(health.Checks{"smtp": candidates},
//	    health.WithLogger(log),
//	))
//
// # Docker Healthcheck
//
// Example Docker healthcheck:
//
//	HEALTHCHECK --interval=30s --timeout=3s --start-period=5s --retries=3 \
//	  CMD curl -f http://localhost:8080/health/ready || exit 1
//
// # Error Handling
//
// The package defines sentinel errors for consistent error handling:
//
//   - [ErrCheckFailed] - a dependency did not answer
//   - [ErrCheckTimeout] - a dependency answered after the deadline
//   - [ErrNoChecks] - AnyOf was given no checks
package health
