// Package api implements the HTTP handlers of the login, users, utils, SSO
// and tasks endpoints. Handlers decode and validate requests, call into the
// user service or the task client, and translate results and errors into
// JSON responses with a "detail" field on failure.
package api
