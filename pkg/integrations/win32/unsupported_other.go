//go:build !windows

// Package win32 implements process enumeration, foreground tracking and
// per-session muting on top of the Win32 and Core Audio APIs. On other
// platforms every operation fails with ErrUnsupported.
package win32

import (
	"github.com/focusmute/focusmute/pkg/audio"
	"github.com/focusmute/focusmute/pkg/window"
)

type Enumerator struct{}

func NewEnumerator() *Enumerator { return &Enumerator{} }

func (e *Enumerator) Processes() ([]window.ProcessInfo, error) { return nil, ErrUnsupported }

func (e *Enumerator) PIDsByName(string) ([]uint32, error) { return nil, ErrUnsupported }

type FocusHook struct{}

func NewFocusHook() *FocusHook { return &FocusHook{} }

func (f *FocusHook) Subscribe() (<-chan window.Handle, error) { return nil, ErrUnsupported }

func (f *FocusHook) Close() error { return nil }

type Mixer struct{}

func NewMixer() *Mixer { return &Mixer{} }

func (m *Mixer) VisitSessions(func(uint32, audio.Session)) (int, error) {
	return 0, ErrUnsupported
}
