// Package service contains the account use cases of the application:
// password login, self registration with email activation, password
// recovery, profile management, superuser administration and the user
// provisioning done for SSO logins.
//
// Services receive their stores and collaborators through constructor
// injection and never depend on a concrete storage or transport. Read,
// modify and write sequences run inside store.RunInTransaction. Expected
// failures are reported as the sentinel errors in errors.go, which the API
// layer maps to HTTP status codes.
package service
