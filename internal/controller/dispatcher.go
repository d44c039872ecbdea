package controller

import (
	"context"
	"sync"

	"github.com/focusmute/focusmute/pkg/audio"
	"github.com/focusmute/focusmute/pkg/window"
	"golang.org/x/sync/errgroup"
)

// Command is one desired mute state for a process name
type Command struct {
	Target  audio.Target
	Mute    bool
	Reason  string
	Focused window.Handle
}

func (c Command) key() string {
	return c.Target.Name
}

// Dispatcher runs mute commands on a fixed pool of workers. Pending commands
// are coalesced per process name: a newer command replaces an older one that
// has not started yet, and one name never runs on two workers at once.
// Submit never blocks.
type Dispatcher struct {
	mu       sync.Mutex
	cond     *sync.Cond
	pending  map[string]Command
	queue    []string
	inflight map[string]struct{}
	closed   bool

	exec  func(Command)
	group errgroup.Group
}

// NewDispatcher starts workers goroutines executing commands with exec
func NewDispatcher(workers int, exec func(Command)) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	d := &Dispatcher{
		pending:  make(map[string]Command),
		inflight: make(map[string]struct{}),
		exec:     exec,
	}
	d.cond = sync.NewCond(&d.mu)

	for i := 0; i < workers; i++ {
		d.group.Go(func() error {
			d.work()
			return nil
		})
	}
	return d
}

// Submit queues a command. It returns false once the dispatcher is closed.
func (d *Dispatcher) Submit(cmd Command) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return false
	}

	key := cmd.key()
	if _, queued := d.pending[key]; !queued {
		d.queue = append(d.queue, key)
	}
	d.pending[key] = cmd
	d.cond.Broadcast()
	return true
}

// Pending returns the number of commands waiting or running
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue) + len(d.inflight)
}

// Drain waits until every submitted command has run or ctx is done
func (d *Dispatcher) Drain(ctx context.Context) error {
	// wake the wait loop below when ctx ends
	stop := context.AfterFunc(ctx, func() {
		d.mu.Lock()
		d.cond.Broadcast()
		d.mu.Unlock()
	})
	defer stop()

	d.mu.Lock()
	defer d.mu.Unlock()
	for len(d.queue) > 0 || len(d.inflight) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		d.cond.Wait()
	}
	return nil
}

// Close stops accepting commands, runs what is already queued and waits for
// the workers to exit or ctx to be done.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.cond.Broadcast()
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = d.group.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) work() {
	for {
		cmd, ok := d.next()
		if !ok {
			return
		}
		d.exec(cmd)
		d.finish(cmd.key())
	}
}

func (d *Dispatcher) next() (Command, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for {
		for i, key := range d.queue {
			if _, busy := d.inflight[key]; busy {
				continue
			}
			d.queue = append(d.queue[:i], d.queue[i+1:]...)
			cmd := d.pending[key]
			delete(d.pending, key)
			d.inflight[key] = struct{}{}
			return cmd, true
		}

		if d.closed && len(d.queue) == 0 {
			return Command{}, false
		}
		d.cond.Wait()
	}
}

func (d *Dispatcher) finish(key string) {
	d.mu.Lock()
	delete(d.inflight, key)
	d.cond.Broadcast()
	d.mu.Unlock()
}
