// Package domain contains the core business entities of the application and
// their validation rules, independent of storage and transport.
package domain
