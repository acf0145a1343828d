// Package photocluster is the client-side data layer for the Photo-cluster
// gallery API. The root package provides a resilient request client:
//
//   - Per-attempt timeouts and retries with exponential backoff
//   - Request/response interceptors (bearer auth, default headers)
//   - De-duplication of concurrent identical calls
//   - Optional circuit breaker, rate limiter and retry budget
//   - Prometheus metrics and lightweight structured debug logging
//   - Error classification with user-facing message mapping
//
// Subpackages complete the layer: cache (expiring multi-backend cache with a
// SQLite durable store), preload (bounded-concurrency asset warm-up), fetch
// (fetch-state machines, pagination, infinite scroll, manual retry) and
// gallery (typed Photo/Person API calls).
//
// Typical usage:
//
//	client := photocluster.New(
//	    photocluster.WithBaseURL("https://api.example.com"),
//	    photocluster.WithMaxRetries(3),
//	    photocluster.WithDeduplication(),
//	)
//	var photo gallery.Photo
//	err := client.Get(ctx, "/photos/"+id, &photo)
//
// Responses with 4xx status are terminal; 5xx and transport failures retry
// with exponential delays; per-attempt deadline expiry never retries. All
// failures surface as *Error carrying the classification, the backend's
// error code when present, and diagnostic context.
package photocluster
