// Package api implements the HTTP REST API and WebSocket server for the
// Gray Logic Compositor.
//
// This package provides:
//   - REST endpoints to inspect contents and categories and to drive content
//     lifecycles (ready, show, hide, release, stop offer, display buffers, links)
//   - Transition history from the SQLite history store
//   - An audit trail of control requests and the subject that issued them
//   - WebSocket hub broadcasting controller events on "content.<type>" channels
//   - JWT bearer authentication with role permissions and ticket-based
//     WebSocket auth
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//
// # Architecture
//
// Handlers never touch the content controller directly. Every operation is
// submitted to the compositor runner, which executes it on the goroutine
// that owns the controller, between two updates. Timings in request bodies
// are relative to the controller clock at the moment the operation runs.
//
// # Error mapping
//
//	unknown content/category        → 404
//	operation not valid in state    → 409
//	malformed request               → 400
//	provider/renderer publish error → 502
//	runner stopped                  → 503
package api
