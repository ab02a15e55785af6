// Package config handles configuration loading, parsing, and validation
// from environment variables and an optional config file. It provides
// type-safe access to the settings of the server, the database connection
// and the JSON:API surface.
package config
