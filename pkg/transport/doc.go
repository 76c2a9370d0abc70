// Package transport defines the service interfaces and the HTTP middleware
// chain shared by the askdoc front ends.
//
// The transport layer bridges external clients and the askdoc engine. The
// HTTP adapter (transport/http) decodes requests into the types of pkg/api,
// dispatches them to a DocumentService and encodes the results as JSON.
//
// # Service Interfaces
//
//   - DocumentService handles upload, question answering, clearing, and
//     status of the single active document.
//   - ReadinessChecker reports whether the backing index is reachable.
//
// # Middleware
//
// Middleware wraps http.Handler values with cross-cutting concerns. Built-in
// middleware provides panic recovery, request ID assignment (X-Request-ID),
// and structured logging via log/slog.
//
// # Errors
//
// Failures cross the transport boundary as *api.APIError values and are
// written with the {"error": {...}} envelope. HTTPStatusFromError maps the
// error type to the status code.
package transport
