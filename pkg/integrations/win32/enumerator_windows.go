//go:build windows

// Package win32 implements process enumeration, foreground tracking and
// per-session muting on top of the Win32 and Core Audio APIs.
package win32

import (
	"strings"
	"sync"
	"unsafe"

	"github.com/focusmute/focusmute/pkg/window"
	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

const gwOwner = 4

var (
	user32                   = windows.NewLazySystemDLL("user32.dll")
	procGetWindow            = user32.NewProc("GetWindow")
	procGetWindowTextW       = user32.NewProc("GetWindowTextW")
	procGetWindowTextLengthW = user32.NewProc("GetWindowTextLengthW")
)

// EnumWindows callbacks are a process-wide resource; one callback serves
// every enumeration and enumerations are serialized.
var (
	enumMu       sync.Mutex
	enumWindows  map[uint32]mainWindow
	enumCallback = windows.NewCallback(collectWindow)
)

type mainWindow struct {
	handle window.Handle
	title  string
}

// Enumerator lists processes with a Toolhelp snapshot and finds each
// process's main window with EnumWindows.
type Enumerator struct{}

// NewEnumerator creates a Win32 process enumerator
func NewEnumerator() *Enumerator {
	return &Enumerator{}
}

// Processes returns every process in the snapshot. A process's main window
// is its first visible unowned top-level window.
func (e *Enumerator) Processes() ([]window.ProcessInfo, error) {
	procs, err := snapshotProcesses()
	if err != nil {
		return nil, err
	}

	windowsByPID, err := mainWindows()
	if err != nil {
		return nil, err
	}

	infos := make([]window.ProcessInfo, 0, len(procs))
	for _, p := range procs {
		info := window.ProcessInfo{PID: p.pid, Name: p.name}
		if w, ok := windowsByPID[p.pid]; ok {
			info.WindowHandle = w.handle
			info.WindowTitle = w.title
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// PIDsByName returns the ids of every live process whose executable name,
// without extension, matches name case-insensitively.
func (e *Enumerator) PIDsByName(name string) ([]uint32, error) {
	procs, err := snapshotProcesses()
	if err != nil {
		return nil, err
	}

	var pids []uint32
	for _, p := range procs {
		if strings.EqualFold(p.name, name) {
			pids = append(pids, p.pid)
		}
	}
	return pids, nil
}

type processEntry struct {
	pid  uint32
	name string
}

func snapshotProcesses() ([]processEntry, error) {
	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create process snapshot")
	}
	defer windows.CloseHandle(snap)

	var pe windows.ProcessEntry32
	pe.Size = uint32(unsafe.Sizeof(pe))

	if err := windows.Process32First(snap, &pe); err != nil {
		return nil, errors.Wrap(err, "failed to read process snapshot")
	}

	var procs []processEntry
	for {
		if pe.ProcessID != 0 {
			procs = append(procs, processEntry{
				pid:  pe.ProcessID,
				name: exeName(windows.UTF16ToString(pe.ExeFile[:])),
			})
		}
		if err := windows.Process32Next(snap, &pe); err != nil {
			if errors.Is(err, windows.ERROR_NO_MORE_FILES) {
				break
			}
			return nil, errors.Wrap(err, "failed to read process snapshot")
		}
	}
	return procs, nil
}

func exeName(file string) string {
	if len(file) > 4 && strings.EqualFold(file[len(file)-4:], ".exe") {
		return file[:len(file)-4]
	}
	return file
}

func mainWindows() (map[uint32]mainWindow, error) {
	enumMu.Lock()
	defer enumMu.Unlock()

	enumWindows = make(map[uint32]mainWindow)
	defer func() { enumWindows = nil }()

	if err := windows.EnumWindows(enumCallback, nil); err != nil {
		return nil, errors.Wrap(err, "failed to enumerate windows")
	}

	out := enumWindows
	return out, nil
}

func collectWindow(hwnd windows.HWND, _ uintptr) uintptr {
	if !windows.IsWindowVisible(hwnd) {
		return 1
	}
	if owner, _, _ := procGetWindow.Call(uintptr(hwnd), gwOwner); owner != 0 {
		return 1
	}

	var pid uint32
	if _, err := windows.GetWindowThreadProcessId(hwnd, &pid); err != nil || pid == 0 {
		return 1
	}
	if _, seen := enumWindows[pid]; seen {
		return 1
	}

	enumWindows[pid] = mainWindow{
		handle: window.Handle(hwnd),
		title:  windowText(hwnd),
	}
	return 1
}

func windowText(hwnd windows.HWND) string {
	n, _, _ := procGetWindowTextLengthW.Call(uintptr(hwnd))
	if n == 0 {
		return ""
	}
	buf := make([]uint16, n+1)
	copied, _, _ := procGetWindowTextW.Call(uintptr(hwnd), uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	return windows.UTF16ToString(buf[:copied])
}
