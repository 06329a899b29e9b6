// Package env reads single process environment variables with a fallback,
// for the few knobs that live outside the envconfig-managed configuration.
package env

import "os"

// Get returns the variable's value, or fallback when it is unset or empty.
func Get(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
