// Package config handles configuration loading, parsing, and validation
// from environment variables (prefixed STACK_) and an optional config.yaml.
// The API server, task workers and the monitor share one Config type; each
// process validates only the sections it reads.
package config
