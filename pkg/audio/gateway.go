// Package audio mutes and unmutes per-process audio sessions on the default
// output device.
package audio

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrDeviceUnavailable is returned when there is no default output device.
// It is the only error SetMute reports to its caller.
var ErrDeviceUnavailable = errors.New("no default audio output device")

// Session is one live audio session on the output device.
type Session interface {
	SetMute(mute bool) error
}

// Mixer walks the sessions of the default output device. Implementations
// acquire and release every OS resource within a single call.
//
// VisitSessions calls fn once per session whose owning process id could be
// read. Sessions that fail an interface query are skipped and counted in
// the returned skipped value. ErrDeviceUnavailable is returned when no
// default device exists; any other error means the session list itself
// could not be read.
type Mixer interface {
	VisitSessions(fn func(pid uint32, s Session)) (skipped int, err error)
}

// ProcessLookup resolves a process name to every live instance.
type ProcessLookup interface {
	PIDsByName(name string) ([]uint32, error)
}

// Target identifies the process a mute command is aimed at. The command
// applies to every live process sharing Name; PID is used when the name
// cannot be resolved.
type Target struct {
	Name string
	PID  uint32
}

// Result summarises one SetMute pass.
type Result struct {
	PIDs    int // live processes sharing the target name
	Matched int // sessions whose mute flag was set
	Failed  int // sessions skipped because of a per-session failure
}

// Gateway is a stateless facade over the mixer.
type Gateway struct {
	mixer  Mixer
	lookup ProcessLookup
	logger *zap.Logger
}

// NewGateway creates a gateway. lookup may be nil, in which case only the
// target PID is used.
func NewGateway(mixer Mixer, lookup ProcessLookup, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		mixer:  mixer,
		lookup: lookup,
		logger: logger.Named("audio"),
	}
}

// SetMute sets the mute flag on every audio session owned by a process
// sharing the target's name. A process without sessions is a no-op.
func (g *Gateway) SetMute(target Target, mute bool) (Result, error) {
	pids := g.resolve(target)
	res := Result{PIDs: len(pids)}
	if len(pids) == 0 {
		return res, nil
	}

	skipped, err := g.mixer.VisitSessions(func(pid uint32, s Session) {
		if _, ok := pids[pid]; !ok {
			return
		}
		if err := s.SetMute(mute); err != nil {
			res.Failed++
			g.logger.Debug("session mute failed",
				zap.String("process", target.Name),
				zap.Uint32("pid", pid),
				zap.Error(err))
			return
		}
		res.Matched++
	})
	res.Failed += skipped

	if err != nil {
		if errors.Is(err, ErrDeviceUnavailable) {
			return res, err
		}
		g.logger.Warn("session enumeration failed",
			zap.String("process", target.Name),
			zap.Bool("mute", mute),
			zap.Error(err))
	}

	return res, nil
}

func (g *Gateway) resolve(target Target) map[uint32]struct{} {
	pids := make(map[uint32]struct{})

	if g.lookup != nil && target.Name != "" {
		found, err := g.lookup.PIDsByName(target.Name)
		if err != nil {
			g.logger.Debug("process lookup failed",
				zap.String("process", target.Name),
				zap.Error(err))
		}
		for _, pid := range found {
			pids[pid] = struct{}{}
		}
	}

	if len(pids) == 0 && target.PID != 0 {
		pids[target.PID] = struct{}{}
	}

	return pids
}
