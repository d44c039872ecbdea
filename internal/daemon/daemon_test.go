package daemon

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// deadPID is far above any PID a test host hands out
const deadPID = 2147483600

func TestAcquireWritesOwnPID(t *testing.T) {
	d := New(filepath.Join(t.TempDir(), "run", "focusmute.pid"))

	pid, err := d.ReadPID()
	require.NoError(t, err)
	assert.Zero(t, pid, "missing file reads as no PID")

	require.NoError(t, d.Acquire())
	pid, err = d.ReadPID()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	require.NoError(t, d.Acquire(), "re-acquiring from the same process is allowed")

	require.NoError(t, d.Release())
	_, err = os.Stat(d.PIDFile())
	assert.True(t, os.IsNotExist(err))
	require.NoError(t, d.Release(), "releasing twice is fine")
}

func TestAcquireReplacesStaleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "focusmute.pid")
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(deadPID)+"\n"), 0644))

	d := New(path)
	require.NoError(t, d.Acquire())

	pid, err := d.ReadPID()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestAcquireReplacesGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "focusmute.pid")
	require.NoError(t, os.WriteFile(path, []byte("nope"), 0644))

	require.NoError(t, New(path).Acquire())
}

func TestReleaseKeepsForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "focusmute.pid")
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(deadPID)), 0644))

	require.NoError(t, New(path).Release())
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestIsRunningSelf(t *testing.T) {
	d := New(filepath.Join(t.TempDir(), "focusmute.pid"))
	require.NoError(t, d.Acquire())

	running, pid, err := d.IsRunning()
	require.NoError(t, err)
	assert.True(t, running)
	assert.Equal(t, os.Getpid(), pid)
}

func TestIsRunningRemovesStaleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "focusmute.pid")
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(deadPID)+"\n"), 0644))

	d := New(path)
	running, _, err := d.IsRunning()
	require.NoError(t, err)
	assert.False(t, running)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestReadPIDInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "focusmute.pid")
	require.NoError(t, os.WriteFile(path, []byte("-4"), 0644))

	_, err := New(path).ReadPID()
	assert.Error(t, err)
}

func TestStopNotRunning(t *testing.T) {
	d := New(filepath.Join(t.TempDir(), "focusmute.pid"))
	err := d.Stop()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotRunning))
}
