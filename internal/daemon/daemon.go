// Package daemon tracks the running focusmute instance through a PID file.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrAlreadyRunning is returned by Acquire when another live instance
	// owns the PID file
	ErrAlreadyRunning = errors.New("focusmute is already running")

	// ErrNotRunning is returned by Stop when no live instance is recorded
	ErrNotRunning = errors.New("focusmute is not running")
)

// acquireAttempts bounds the stale-file retry in Acquire
const acquireAttempts = 3

type Daemon struct {
	pidFile string
}

func New(pidFile string) *Daemon {
	return &Daemon{pidFile: pidFile}
}

// PIDFile returns the path of the PID file
func (d *Daemon) PIDFile() string {
	return d.pidFile
}

// Acquire creates the PID file exclusively. A file left behind by a dead
// process is replaced; one naming a live process other than this one fails
// with ErrAlreadyRunning.
func (d *Daemon) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(d.pidFile), 0755); err != nil {
		return errors.Wrap(err, "failed to create PID directory")
	}

	self := os.Getpid()
	for i := 0; i < acquireAttempts; i++ {
		f, err := os.OpenFile(d.pidFile, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			_, werr := fmt.Fprintf(f, "%d\n", self)
			cerr := f.Close()
			if werr != nil {
				return errors.Wrap(werr, "failed to write PID file")
			}
			return errors.Wrap(cerr, "failed to write PID file")
		}
		if !os.IsExist(err) {
			return errors.Wrap(err, "failed to create PID file")
		}

		owner, err := d.ReadPID()
		if err != nil {
			// unreadable content is treated as stale
			owner = 0
		}
		if owner == self {
			return nil
		}
		if owner != 0 && processAlive(owner) {
			return errors.Wrapf(ErrAlreadyRunning, "PID %d", owner)
		}
		if err := os.Remove(d.pidFile); err != nil && !os.IsNotExist(err) {
			return errors.Wrap(err, "failed to remove stale PID file")
		}
	}
	return errors.Errorf("could not acquire %s", d.pidFile)
}

// Release removes the PID file if it still names this process
func (d *Daemon) Release() error {
	pid, err := d.ReadPID()
	if err != nil || pid != os.Getpid() {
		return err
	}
	return d.remove()
}

// ReadPID returns 0 when no PID file exists
func (d *Daemon) ReadPID() (int, error) {
	data, err := os.ReadFile(d.pidFile)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "failed to read PID file")
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, errors.Errorf("invalid PID file %s: %q", d.pidFile, strings.TrimSpace(string(data)))
	}
	return pid, nil
}

// IsRunning reports whether the PID file names a live process. A stale file
// is removed.
func (d *Daemon) IsRunning() (bool, int, error) {
	pid, err := d.ReadPID()
	if err != nil || pid == 0 {
		return false, 0, err
	}

	if !processAlive(pid) {
		_ = d.remove()
		return false, 0, nil
	}
	return true, pid, nil
}

// Stop terminates the instance named by the PID file. It is the fallback
// when the instance cannot be reached over its API: on Windows the process
// is killed and gets no chance to unmute.
func (d *Daemon) Stop() error {
	running, pid, err := d.IsRunning()
	if err != nil {
		return err
	}
	if !running {
		return ErrNotRunning
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return errors.Wrapf(err, "failed to find process %d", pid)
	}

	if err := terminate(process); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return errors.Wrapf(err, "failed to stop process %d", pid)
	}
	return d.remove()
}

func (d *Daemon) remove() error {
	if err := os.Remove(d.pidFile); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to remove PID file")
	}
	return nil
}
