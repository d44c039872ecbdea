package window

import (
	"fmt"
	"strconv"
	"strings"
)

// Handle is an OS top-level window handle. Handles are recycled by the OS
// and are only meaningful while the window exists.
type Handle uintptr

// String formats the handle the way Win32 tools print HWNDs.
func (h Handle) String() string {
	return fmt.Sprintf("0x%X", uintptr(h))
}

// MarshalText renders the handle in its String form
func (h Handle) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText accepts anything ParseHandle does
func (h *Handle) UnmarshalText(text []byte) error {
	parsed, err := ParseHandle(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// ParseHandle parses a handle written as hex with a 0x prefix or as decimal
func ParseHandle(s string) (Handle, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0X") {
		s = "0x" + s[2:]
	}
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid window handle %q", s)
	}
	return Handle(v), nil
}

// ProcessInfo represents one enumerated OS process and its main window
type ProcessInfo struct {
	PID          uint32
	Name         string // executable name without extension
	WindowHandle Handle // 0 when the process has no main window
	WindowTitle  string
}

// HasWindow reports whether the process owns a titled main window
func (p ProcessInfo) HasWindow() bool {
	return p.WindowHandle != 0 && p.WindowTitle != ""
}

// Enumerator is the interface that all process enumeration implementations must satisfy
type Enumerator interface {
	// Processes returns every process the caller can see. Processes that
	// cannot be queried are skipped rather than failing the whole call.
	Processes() ([]ProcessInfo, error)

	// PIDsByName returns the ids of all live processes with the given name
	PIDsByName(name string) ([]uint32, error)
}

// FocusSource delivers foreground-window changes
type FocusSource interface {
	// Subscribe installs the OS hook and returns the event channel. The
	// channel is closed when the source is closed.
	Subscribe() (<-chan Handle, error)

	// Close releases the hook. Calling Close more than once is a no-op.
	Close() error
}
