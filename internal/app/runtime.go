package app

import (
	"os"
	"sync"
)

const testModeEnv = "GRANITE_TEST_MODE"

var inTestMode = sync.OnceValue(func() bool {
	return os.Getenv(testModeEnv) == "1"
})

// InTestMode reports whether the process should skip runtime side effects
// such as opening sockets. Set GRANITE_TEST_MODE=1 before start.
func InTestMode() bool {
	return inTestMode()
}
