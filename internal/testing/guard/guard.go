// Package guard switches binaries into test mode when imported by a test, so
// calling main() returns before touching Postgres or Redis.
package guard

import "os"

// EnvVar is the flag app.InTestMode reads.
const EnvVar = "COREZEN_TEST_MODE"

func init() {
	if os.Getenv(EnvVar) == "" {
		_ = os.Setenv(EnvVar, "1")
	}
}
