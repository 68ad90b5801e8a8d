// Package sso implements the FusionAuth login used by the two frontend apps.
//
// FusionAuth is configured with explicit endpoints rather than discovery.
// Each app has its own OAuth client. A login stores a random state with the
// PKCE verifier in a StateStore and redirects to the authorize endpoint; the
// callback consumes the state, exchanges the code and reads the identity from
// the userinfo endpoint.
package sso
