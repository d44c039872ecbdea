//go:build windows

package win32

import (
	"runtime"
	"sync"
	"unsafe"

	"github.com/focusmute/focusmute/pkg/window"
	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

const (
	eventSystemForeground = 0x0003
	wineventOutOfContext  = 0x0000
	wmQuit                = 0x0012
)

var (
	procSetWinEventHook    = user32.NewProc("SetWinEventHook")
	procUnhookWinEvent     = user32.NewProc("UnhookWinEvent")
	procGetMessageW        = user32.NewProc("GetMessageW")
	procTranslateMessage   = user32.NewProc("TranslateMessage")
	procDispatchMessageW   = user32.NewProc("DispatchMessageW")
	procPostThreadMessageW = user32.NewProc("PostThreadMessageW")
)

var (
	errHookClosed = errors.New("focus hook is closed")
	errSubscribed = errors.New("focus hook is already subscribed")
)

// One callback routes events from every hook to its owner.
var (
	hooksMu       sync.Mutex
	hooks         = make(map[uintptr]*FocusHook)
	winEventThunk = windows.NewCallback(winEventProc)
)

type msg struct {
	hwnd    uintptr
	message uint32
	wParam  uintptr
	lParam  uintptr
	time    uint32
	pt      struct{ x, y int32 }
}

// FocusHook reports foreground window changes from an out-of-context
// EVENT_SYSTEM_FOREGROUND hook. The hook lives on a dedicated OS thread
// that pumps messages until Close.
type FocusHook struct {
	mu       sync.Mutex
	events   chan window.Handle
	threadID uint32
	started  bool
	closed   bool
	done     chan struct{}
}

// NewFocusHook creates an unsubscribed focus hook
func NewFocusHook() *FocusHook {
	return &FocusHook{
		events: make(chan window.Handle, 16),
		done:   make(chan struct{}),
	}
}

// Subscribe installs the hook. The returned channel is closed after Close
// releases the hook.
func (f *FocusHook) Subscribe() (<-chan window.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, errHookClosed
	}
	if f.started {
		return nil, errSubscribed
	}

	ready := make(chan error, 1)
	go f.pump(ready)
	if err := <-ready; err != nil {
		return nil, err
	}

	f.started = true
	return f.events, nil
}

// Close posts WM_QUIT to the hook thread and waits for it to unhook
func (f *FocusHook) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	started := f.started
	tid := f.threadID
	f.mu.Unlock()

	if !started {
		return nil
	}

	ok, _, err := procPostThreadMessageW.Call(uintptr(tid), wmQuit, 0, 0)
	if ok == 0 {
		return errors.Wrap(err, "failed to stop focus hook thread")
	}
	<-f.done
	return nil
}

func (f *FocusHook) pump(ready chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	hook, _, err := procSetWinEventHook.Call(
		eventSystemForeground,
		eventSystemForeground,
		0,
		winEventThunk,
		0,
		0,
		wineventOutOfContext,
	)
	if hook == 0 {
		ready <- errors.Wrap(err, "SetWinEventHook failed")
		return
	}

	hooksMu.Lock()
	hooks[hook] = f
	hooksMu.Unlock()

	f.threadID = windows.GetCurrentThreadId()
	ready <- nil

	defer func() {
		procUnhookWinEvent.Call(hook)
		hooksMu.Lock()
		delete(hooks, hook)
		hooksMu.Unlock()
		close(f.events)
		close(f.done)
	}()

	var m msg
	for {
		r, _, _ := procGetMessageW.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
		if int32(r) <= 0 {
			return
		}
		procTranslateMessage.Call(uintptr(unsafe.Pointer(&m)))
		procDispatchMessageW.Call(uintptr(unsafe.Pointer(&m)))
	}
}

// deliver keeps the newest events when the consumer falls behind
func (f *FocusHook) deliver(h window.Handle) {
	for {
		select {
		case f.events <- h:
			return
		default:
		}
		select {
		case <-f.events:
		default:
		}
	}
}

func winEventProc(hook, event, hwnd, idObject, idChild, idEventThread, eventTime uintptr) uintptr {
	if event != eventSystemForeground || hwnd == 0 {
		return 0
	}

	hooksMu.Lock()
	f := hooks[hook]
	hooksMu.Unlock()

	if f != nil {
		f.deliver(window.Handle(hwnd))
	}
	return 0
}
