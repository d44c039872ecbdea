package detector

import (
	"runtime"

	"github.com/focusmute/focusmute/pkg/audio"
	"github.com/focusmute/focusmute/pkg/integrations/win32"
	"github.com/focusmute/focusmute/pkg/window"
)

// Platform bundles the OS integrations the controller runs on
type Platform struct {
	Name       string
	Enumerator window.Enumerator
	Mixer      audio.Mixer

	newFocus func() window.FocusSource
}

// NewFocusSource returns a fresh, unsubscribed focus source
func (p *Platform) NewFocusSource() window.FocusSource {
	return p.newFocus()
}

// New returns the integrations for the running OS
func New() (*Platform, error) {
	if !win32.Supported() {
		return nil, win32.ErrUnsupported
	}

	return &Platform{
		Name:       DetectPlatform(),
		Enumerator: win32.NewEnumerator(),
		Mixer:      win32.NewMixer(),
		newFocus:   func() window.FocusSource { return win32.NewFocusHook() },
	}, nil
}

// DetectPlatform names the platform integration for this build
func DetectPlatform() string {
	if runtime.GOOS == "windows" {
		return "win32"
	}
	return "unsupported"
}
