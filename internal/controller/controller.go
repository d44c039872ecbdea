// Package controller mutes watched background processes and unmutes the one
// that owns the foreground window.
//
// Mute state is never tracked per process. Every focus change and every
// watch-list change recomputes the desired state from (focused handle,
// watched flags) and re-issues it; the audio gateway is idempotent, so a
// missed or superseded command is repaired by the next event.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/focusmute/focusmute/internal/catalog"
	"github.com/focusmute/focusmute/internal/metrics"
	"github.com/focusmute/focusmute/internal/models"
	"github.com/focusmute/focusmute/pkg/audio"
	"github.com/focusmute/focusmute/pkg/window"
	"go.uber.org/zap"
)

// ErrUnknownHandle is returned when a handle is not in the current catalog
var ErrUnknownHandle = errors.New("unknown window handle")

// Muter issues mute commands; *audio.Gateway satisfies it.
type Muter interface {
	SetMute(target audio.Target, mute bool) (audio.Result, error)
}

// Journal records executed commands and failures. The repository in
// internal/database satisfies it.
type Journal interface {
	CreateMuteEvent(event *models.MuteEvent) error
	CreateErrorLog(errorLog *models.ErrorLog) error
}

// Options configures a Controller
type Options struct {
	Workers         int           // mute dispatcher pool size
	RefreshInterval time.Duration // periodic catalog refresh, 0 disables
	Journal         Journal       // optional
	Metrics         *metrics.Metrics
	Logger          *zap.Logger
}

// Status is a point-in-time view of the controller
type Status struct {
	Running              bool   `json:"running" yaml:"running"`
	FocusTracking        bool   `json:"focus_tracking" yaml:"focus_tracking"`
	FocusError           string `json:"focus_error,omitempty" yaml:"focus_error,omitempty"`
	Focused              string `json:"focused,omitempty" yaml:"focused,omitempty"`
	Entries              int    `json:"entries" yaml:"entries"`
	Watched              int    `json:"watched" yaml:"watched"`
	AudioDeviceAvailable bool   `json:"audio_device_available" yaml:"audio_device_available"`
	PendingCommands      int    `json:"pending_commands" yaml:"pending_commands"`
}

type Controller struct {
	mu       sync.Mutex
	entries  []catalog.Entry
	focused  window.Handle
	hasFocus bool

	focusMu       sync.Mutex
	focusTracking bool
	focusErr      string

	catalog    *catalog.Catalog
	muter      Muter
	source     window.FocusSource
	dispatcher *Dispatcher
	journal    Journal
	metrics    *metrics.Metrics
	logger     *zap.Logger
	interval   time.Duration

	running       atomic.Bool
	closing       atomic.Bool
	deviceMissing atomic.Bool
	stopChan      chan struct{}
	stopOnce      sync.Once
}

// New creates a controller and takes the first catalog snapshot. The focus
// source is owned by the controller and released by Shutdown; it may be nil,
// in which case only manual toggles drive muting.
func New(cat *catalog.Catalog, muter Muter, source window.FocusSource, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}

	c := &Controller{
		catalog:  cat,
		muter:    muter,
		source:   source,
		journal:  opts.Journal,
		metrics:  m,
		logger:   logger.Named("controller"),
		interval: opts.RefreshInterval,
		stopChan: make(chan struct{}),
	}
	c.dispatcher = NewDispatcher(opts.Workers, c.execute)

	if _, err := c.Refresh(); err != nil {
		c.logger.Warn("initial catalog refresh failed", zap.Error(err))
	}

	return c
}

// Start subscribes to focus changes and runs the event loop until ctx is
// cancelled or Stop is called. A focus source that cannot be subscribed
// leaves the controller in degraded mode: focus-driven muting is off, manual
// toggles still work.
func (c *Controller) Start(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return fmt.Errorf("controller is already running")
	}
	defer c.running.Store(false)

	events := c.subscribe()

	var tick <-chan time.Time
	if c.interval > 0 {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		tick = ticker.C
		c.logger.Info("periodic catalog refresh enabled", zap.Duration("interval", c.interval))
	}

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("controller stopped by context")
			return ctx.Err()

		case <-c.stopChan:
			c.logger.Info("controller stopped")
			return nil

		case h, ok := <-events:
			if !ok {
				events = nil
				if !c.closing.Load() {
					c.degrade(fmt.Errorf("focus source closed unexpectedly"))
				}
				continue
			}
			c.OnFocusChanged(h)

		case <-tick:
			if _, err := c.Refresh(); err != nil {
				c.logger.Warn("periodic catalog refresh failed", zap.Error(err))
			}
		}
	}
}

// Stop ends the event loop started by Start
func (c *Controller) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
}

// IsRunning reports whether the event loop is active
func (c *Controller) IsRunning() bool {
	return c.running.Load()
}

// Shutdown releases the focus hook, unmutes every catalog entry and waits
// for pending commands to finish within ctx.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.Stop()

	if c.source != nil {
		c.closing.Store(true)
		if err := c.source.Close(); err != nil {
			c.logger.Warn("failed to release focus source", zap.Error(err))
		}
	}

	c.UnmuteAll()

	if err := c.dispatcher.Close(ctx); err != nil {
		return fmt.Errorf("pending mute commands did not finish: %w", err)
	}
	return nil
}

// Refresh re-enumerates window-owning processes. Watched flags survive by
// window handle; entries whose window vanished are dropped without an
// unmute. On enumeration failure the previous snapshot is kept.
func (c *Controller) Refresh() ([]catalog.Entry, error) {
	infos, err := c.catalog.Enumerate()
	if err != nil {
		c.recordError(models.ComponentCatalog, err)
		return c.Entries(), err
	}

	c.mu.Lock()
	next := c.catalog.Build(infos, c.entries)
	c.logDroppedLocked(next)
	c.entries = next
	c.updateGaugesLocked()
	out := c.copyEntriesLocked()
	c.mu.Unlock()

	return out, nil
}

// Entries returns a copy of the current catalog snapshot
func (c *Controller) Entries() []catalog.Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copyEntriesLocked()
}

// Focused returns the current foreground handle, if one has been reported
func (c *Controller) Focused() (window.Handle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.focused, c.hasFocus
}

// OnFocusChanged records the new foreground window and re-applies the mute
// intent of every watched entry.
func (c *Controller) OnFocusChanged(h window.Handle) {
	c.mu.Lock()
	c.focused = h
	c.hasFocus = true
	cmds := c.intentsLocked(models.ReasonFocus, false)
	c.mu.Unlock()

	c.metrics.FocusEvents.Inc()
	c.logger.Debug("focus changed", zap.Stringer("handle", h), zap.Int("commands", len(cmds)))
	c.submit(cmds)
}

// ToggleWatch sets the watched flag of the entry owning handle h. Watching
// applies the entry's mute intent at once; unwatching unmutes it.
func (c *Controller) ToggleWatch(h window.Handle, watched bool) error {
	c.mu.Lock()
	idx := c.indexLocked(h)
	if idx < 0 {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownHandle, h)
	}

	c.entries[idx].Watched = watched
	entry := c.entries[idx]

	var cmd Command
	if watched || c.nameWatchedLocked(entry.Name) {
		cmd = c.groupIntentLocked(entry, models.ReasonToggle)
	} else {
		cmd = c.unmuteCommandLocked(entry, models.ReasonToggle)
	}
	c.updateGaugesLocked()
	c.mu.Unlock()

	c.logger.Info("watch toggled",
		zap.String("process", entry.Name),
		zap.Stringer("handle", h),
		zap.Bool("watched", watched))
	c.submit([]Command{cmd})
	return nil
}

// SetWatchList replaces the watched set with exactly the given handles and
// re-applies intent for every entry. Nothing changes if a handle is unknown.
func (c *Controller) SetWatchList(handles []window.Handle) error {
	want := make(map[window.Handle]struct{}, len(handles))
	for _, h := range handles {
		want[h] = struct{}{}
	}

	c.mu.Lock()
	for h := range want {
		if c.indexLocked(h) < 0 {
			c.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrUnknownHandle, h)
		}
	}
	for i := range c.entries {
		_, ok := want[c.entries[i].Handle]
		c.entries[i].Watched = ok
	}
	c.updateGaugesLocked()
	c.mu.Unlock()

	c.ApplyWatchListChanged()
	return nil
}

// ApplyWatchListChanged re-derives the state of every entry: watched entries
// get their focus intent, unwatched entries are unmuted.
func (c *Controller) ApplyWatchListChanged() {
	c.mu.Lock()
	cmds := c.intentsLocked(models.ReasonWatchlist, true)
	c.mu.Unlock()

	c.submit(cmds)
}

// UnmuteAll unmutes every catalog entry, watched or not, and clears all
// watched flags.
func (c *Controller) UnmuteAll() {
	c.mu.Lock()
	seen := make(map[string]struct{}, len(c.entries))
	cmds := make([]Command, 0, len(c.entries))
	for i := range c.entries {
		c.entries[i].Watched = false
		if _, dup := seen[c.entries[i].Name]; dup {
			continue
		}
		seen[c.entries[i].Name] = struct{}{}
		cmds = append(cmds, c.unmuteCommandLocked(c.entries[i], models.ReasonUnmuteAll))
	}
	c.updateGaugesLocked()
	c.mu.Unlock()

	c.logger.Info("unmuting all processes", zap.Int("processes", len(cmds)))
	c.submit(cmds)
}

// Drain waits until every submitted mute command has run
func (c *Controller) Drain(ctx context.Context) error {
	return c.dispatcher.Drain(ctx)
}

// Status returns a point-in-time view of the controller
func (c *Controller) Status() Status {
	c.mu.Lock()
	st := Status{Entries: len(c.entries)}
	for _, e := range c.entries {
		if e.Watched {
			st.Watched++
		}
	}
	if c.hasFocus {
		st.Focused = c.focused.String()
	}
	c.mu.Unlock()

	c.focusMu.Lock()
	st.FocusTracking = c.focusTracking
	st.FocusError = c.focusErr
	c.focusMu.Unlock()

	st.Running = c.running.Load()
	st.AudioDeviceAvailable = !c.deviceMissing.Load()
	st.PendingCommands = c.dispatcher.Pending()
	return st
}

func (c *Controller) subscribe() <-chan window.Handle {
	if c.source == nil {
		c.degrade(fmt.Errorf("no focus source configured"))
		return nil
	}

	events, err := c.source.Subscribe()
	if err != nil {
		c.degrade(fmt.Errorf("failed to subscribe to focus changes: %w", err))
		return nil
	}

	c.focusMu.Lock()
	c.focusTracking = true
	c.focusErr = ""
	c.focusMu.Unlock()

	c.logger.Info("focus tracking enabled")
	return events
}

func (c *Controller) degrade(err error) {
	c.focusMu.Lock()
	c.focusTracking = false
	c.focusErr = err.Error()
	c.focusMu.Unlock()

	c.logger.Error("focus tracking disabled, manual toggles only", zap.Error(err))
	c.recordError(models.ComponentFocus, err)
}

// intentsLocked computes one command per process name. Watched entries are
// grouped by name; a name is unmuted when any of its watched windows is
// focused. With includeUnwatched, names with no watched entry are unmuted.
func (c *Controller) intentsLocked(reason string, includeUnwatched bool) []Command {
	var cmds []Command
	index := make(map[string]int)

	for _, e := range c.entries {
		if !e.Watched {
			continue
		}
		focused := c.hasFocus && e.Handle == c.focused
		if i, ok := index[e.Name]; ok {
			if focused {
				cmds[i].Mute = false
			}
			continue
		}
		index[e.Name] = len(cmds)
		cmds = append(cmds, Command{
			Target:  audio.Target{Name: e.Name, PID: e.PID},
			Mute:    !focused,
			Reason:  reason,
			Focused: c.focused,
		})
	}

	if includeUnwatched {
		for _, e := range c.entries {
			if _, ok := index[e.Name]; ok {
				continue
			}
			index[e.Name] = len(cmds)
			cmds = append(cmds, c.unmuteCommandLocked(e, reason))
		}
	}

	return cmds
}

func (c *Controller) groupIntentLocked(entry catalog.Entry, reason string) Command {
	mute := true
	for _, e := range c.entries {
		if e.Watched && e.Name == entry.Name && c.hasFocus && e.Handle == c.focused {
			mute = false
			break
		}
	}
	return Command{
		Target:  audio.Target{Name: entry.Name, PID: entry.PID},
		Mute:    mute,
		Reason:  reason,
		Focused: c.focused,
	}
}

func (c *Controller) unmuteCommandLocked(entry catalog.Entry, reason string) Command {
	return Command{
		Target:  audio.Target{Name: entry.Name, PID: entry.PID},
		Mute:    false,
		Reason:  reason,
		Focused: c.focused,
	}
}

func (c *Controller) nameWatchedLocked(name string) bool {
	for _, e := range c.entries {
		if e.Watched && e.Name == name {
			return true
		}
	}
	return false
}

func (c *Controller) indexLocked(h window.Handle) int {
	for i, e := range c.entries {
		if e.Handle == h {
			return i
		}
	}
	return -1
}

func (c *Controller) logDroppedLocked(next []catalog.Entry) {
	present := make(map[window.Handle]struct{}, len(next))
	for _, e := range next {
		present[e.Handle] = struct{}{}
	}
	for _, e := range c.entries {
		if !e.Watched {
			continue
		}
		if _, ok := present[e.Handle]; !ok {
			c.logger.Info("watched window is gone, dropping it",
				zap.String("process", e.Name),
				zap.Stringer("handle", e.Handle))
		}
	}
}

func (c *Controller) copyEntriesLocked() []catalog.Entry {
	out := make([]catalog.Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

func (c *Controller) updateGaugesLocked() {
	watched := 0
	for _, e := range c.entries {
		if e.Watched {
			watched++
		}
	}
	c.metrics.CatalogEntries.Set(float64(len(c.entries)))
	c.metrics.WatchedEntries.Set(float64(watched))
}

func (c *Controller) submit(cmds []Command) {
	for _, cmd := range cmds {
		if !c.dispatcher.Submit(cmd) {
			c.logger.Debug("dispatcher closed, command dropped",
				zap.String("process", cmd.Target.Name),
				zap.Bool("mute", cmd.Mute))
		}
	}
}

// execute runs on a dispatcher worker
func (c *Controller) execute(cmd Command) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("mute command panicked",
				zap.String("process", cmd.Target.Name),
				zap.Any("panic", r))
		}
	}()

	start := time.Now()
	res, err := c.muter.SetMute(cmd.Target, cmd.Mute)
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, audio.ErrDeviceUnavailable) {
			c.metrics.DeviceUnavailable.Inc()
			if c.deviceMissing.CompareAndSwap(false, true) {
				c.logger.Warn("audio output device unavailable, will retry on next command", zap.Error(err))
				c.recordError(models.ComponentAudio, err)
			}
			return
		}
		c.logger.Warn("mute command failed",
			zap.String("process", cmd.Target.Name),
			zap.Bool("mute", cmd.Mute),
			zap.Error(err))
		return
	}

	if c.deviceMissing.CompareAndSwap(true, false) {
		c.logger.Info("audio output device available again")
	}

	c.metrics.RecordMute(cmd.Mute, res.Failed, elapsed.Seconds())
	c.logger.Debug("mute applied",
		zap.String("process", cmd.Target.Name),
		zap.Bool("mute", cmd.Mute),
		zap.String("reason", cmd.Reason),
		zap.Int("sessions", res.Matched),
		zap.Int("failed", res.Failed),
		zap.Duration("elapsed", elapsed))

	if c.journal == nil {
		return
	}
	event := &models.MuteEvent{
		Timestamp:     start,
		ProcessName:   cmd.Target.Name,
		PID:           cmd.Target.PID,
		Muted:         cmd.Mute,
		Reason:        cmd.Reason,
		Matched:       res.Matched,
		Failed:        res.Failed,
		FocusedHandle: cmd.Focused.String(),
	}
	if err := c.journal.CreateMuteEvent(event); err != nil {
		c.logger.Debug("failed to journal mute event", zap.Error(err))
	}
}

func (c *Controller) recordError(component string, err error) {
	if c.journal == nil {
		return
	}
	errorLog := &models.ErrorLog{
		Timestamp: time.Now(),
		Component: component,
		ErrorMsg:  err.Error(),
	}
	if dbErr := c.journal.CreateErrorLog(errorLog); dbErr != nil {
		c.logger.Debug("failed to store error in journal",
			zap.Error(dbErr),
			zap.NamedError("original", err))
	}
}
