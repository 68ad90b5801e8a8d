// Package postgres provides the PostgreSQL implementations of the storage
// interfaces: users (store.UserStore) and task results (task.ResultBackend).
// It also embeds the schema migrations and applies them with goose.
package postgres
