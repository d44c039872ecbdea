//go:build windows

package win32

import (
	"runtime"

	"github.com/focusmute/focusmute/pkg/audio"
	"github.com/go-ole/go-ole"
	"github.com/moutend/go-wca/pkg/wca"
	"github.com/pkg/errors"
)

// endpointRole picks the device Windows plays media on, which is the one
// per-app volume mixers show.
const endpointRole = wca.EMultimedia

// Mixer walks the audio sessions of the default render endpoint through
// WASAPI. Every COM object is acquired and released within one call.
type Mixer struct{}

// NewMixer creates a WASAPI session mixer
func NewMixer() *Mixer {
	return &Mixer{}
}

type session struct {
	volume *wca.ISimpleAudioVolume
}

func (s session) SetMute(mute bool) error {
	if err := s.volume.SetMute(mute, nil); err != nil {
		return errors.Wrap(err, "ISimpleAudioVolume.SetMute")
	}
	return nil
}

// VisitSessions calls fn for every session on the default output device
func (m *Mixer) VisitSessions(fn func(pid uint32, s audio.Session)) (int, error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED); err != nil {
		if !alreadyInitialized(err) {
			return 0, errors.Wrap(err, "CoInitializeEx failed")
		}
	}
	defer ole.CoUninitialize()

	var mmde *wca.IMMDeviceEnumerator
	if err := wca.CoCreateInstance(wca.CLSID_MMDeviceEnumerator, 0, wca.CLSCTX_ALL, wca.IID_IMMDeviceEnumerator, &mmde); err != nil {
		return 0, errors.Wrap(err, "failed to create device enumerator")
	}
	defer mmde.Release()

	var mmd *wca.IMMDevice
	if err := mmde.GetDefaultAudioEndpoint(wca.ERender, endpointRole, &mmd); err != nil {
		return 0, errors.Wrap(audio.ErrDeviceUnavailable, err.Error())
	}
	defer mmd.Release()

	var asm2 *wca.IAudioSessionManager2
	if err := mmd.Activate(wca.IID_IAudioSessionManager2, wca.CLSCTX_ALL, nil, &asm2); err != nil {
		return 0, errors.Wrap(err, "failed to activate session manager")
	}
	defer asm2.Release()

	var sessions *wca.IAudioSessionEnumerator
	if err := asm2.GetSessionEnumerator(&sessions); err != nil {
		return 0, errors.Wrap(err, "failed to enumerate audio sessions")
	}
	defer sessions.Release()

	var count int
	if err := sessions.GetCount(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count audio sessions")
	}

	skipped := 0
	for i := 0; i < count; i++ {
		if !visit(sessions, i, fn) {
			skipped++
		}
	}
	return skipped, nil
}

// visit reports false when the session could not be queried
func visit(sessions *wca.IAudioSessionEnumerator, i int, fn func(uint32, audio.Session)) bool {
	var asc *wca.IAudioSessionControl
	if err := sessions.GetSession(i, &asc); err != nil {
		return false
	}
	defer asc.Release()

	var asc2 *wca.IAudioSessionControl2
	if err := asc.PutQueryInterface(wca.IID_IAudioSessionControl2, &asc2); err != nil {
		return false
	}
	defer asc2.Release()

	var pid uint32
	if err := asc2.GetProcessId(&pid); err != nil {
		return false
	}

	var sav *wca.ISimpleAudioVolume
	if err := asc.PutQueryInterface(wca.IID_ISimpleAudioVolume, &sav); err != nil {
		return false
	}
	defer sav.Release()

	fn(pid, session{volume: sav})
	return true
}

// alreadyInitialized matches S_FALSE, returned when COM is already
// initialized on this thread.
func alreadyInitialized(err error) bool {
	var oleErr *ole.OleError
	if errors.As(err, &oleErr) {
		return oleErr.Code() == 1
	}
	return false
}
