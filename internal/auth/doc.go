// Package auth provides bearer-token authentication and authorisation for
// the compositor API.
//
// Tokens are HS256 JWTs carrying a subject and a Role. Roles map to a
// static permission set (no database lookup):
//
//	viewer   → read contents, categories, history and the event stream
//	operator → viewer + drive contents (ready, show, hide, release, ...)
//	admin    → operator + resize categories
//
// Panels and dashboards are issued tokens out of band; there is no login
// endpoint.
package auth
