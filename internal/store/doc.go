// Package store defines the persistence interfaces and errors shared by the
// storage implementations in internal/platform/postgres.
package store
