package faces

import (
	"runtime"
	"strings"
)

// goroutineKey returns the current goroutine's id as printed in its stack
// header. Resolution chains are tracked per goroutine with it, since a bean
// factory runs on the goroutine that asked for the bean.
func goroutineKey() string {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	header := strings.TrimPrefix(string(buf[:n]), "goroutine ")
	if i := strings.IndexByte(header, ' '); i > 0 {
		return header[:i]
	}
	return header
}
