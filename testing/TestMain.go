// Package testing is blank-imported by binary tests. It flips the binaries
// into test mode and points their store and Redis settings at values that
// never reach a real Postgres or Redis.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

var testEnv = map[string]string{
	"STORE_DRIVER": "memory",
	"REDIS_ADDR":   "127.0.0.1:0",
	"LOG_FORMAT":   "json",
}

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("OBLIGATIONS_TEST_MODE", "1")
		for key, value := range testEnv {
			if _, set := os.LookupEnv(key); !set {
				_ = os.Setenv(key, value)
			}
		}
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
