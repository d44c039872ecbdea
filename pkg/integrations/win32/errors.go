package win32

import (
	"runtime"

	"github.com/pkg/errors"
)

// ErrUnsupported is returned by every operation on platforms other than
// Windows.
var ErrUnsupported = errors.New("focus muting requires Windows")

// Supported reports whether this build can talk to the Win32 APIs
func Supported() bool {
	return runtime.GOOS == "windows"
}
