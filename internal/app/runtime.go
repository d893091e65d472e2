package app

import (
	"os"
	"strconv"
	"sync"
)

// InTestMode reports whether GATEHOUSE_TEST_MODE is set, in which case the
// router skips request logging and the binaries refuse to start servers.
var InTestMode = sync.OnceValue(func() bool {
	on, _ := strconv.ParseBool(os.Getenv("GATEHOUSE_TEST_MODE"))
	return on
})
