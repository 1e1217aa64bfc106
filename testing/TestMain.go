package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

// Keep in sync with app.TestModeEnv.
const testModeEnv = "ODYSSEY_BOOKS_TEST_MODE"

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv(testModeEnv, "1")
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
