package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/focusmute/focusmute/pkg/window"
	"go.uber.org/zap"
)

// DefaultDenylist holds shell processes that own windows but must never be
// user-controllable.
var DefaultDenylist = []string{"SystemSettings", "TextInputHost"}

// Entry is one candidate window-owning process in a catalog snapshot
type Entry struct {
	PID     uint32        `json:"pid" yaml:"pid"`
	Name    string        `json:"name" yaml:"name"`
	Title   string        `json:"title,omitempty" yaml:"title,omitempty"`
	Handle  window.Handle `json:"handle" yaml:"handle"`
	Label   string        `json:"label" yaml:"label"`
	Watched bool          `json:"watched" yaml:"watched"`
}

// Catalog builds snapshots of candidate processes
type Catalog struct {
	enum     window.Enumerator
	denylist map[string]struct{}
	logger   *zap.Logger
}

// New creates a catalog over the given enumerator. A nil denylist means
// DefaultDenylist; an empty non-nil one denies nothing.
func New(enum window.Enumerator, denylist []string, logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{
		enum:     enum,
		denylist: denySet(orDefault(denylist)),
		logger:   logger.Named("catalog"),
	}
}

// Refresh enumerates processes and reconciles them against prev. An error is
// returned only when enumeration fails as a whole.
func (c *Catalog) Refresh(prev []Entry) ([]Entry, error) {
	infos, err := c.Enumerate()
	if err != nil {
		return nil, err
	}
	return c.Build(infos, prev), nil
}

// Enumerate lists every visible process
func (c *Catalog) Enumerate() ([]window.ProcessInfo, error) {
	infos, err := c.enum.Processes()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate processes: %w", err)
	}
	return infos, nil
}

// Build reconciles enumerated processes against prev using the catalog's
// denylist.
func (c *Catalog) Build(infos []window.ProcessInfo, prev []Entry) []Entry {
	entries := reconcile(infos, prev, c.denylist)
	c.logger.Debug("catalog rebuilt",
		zap.Int("processes", len(infos)),
		zap.Int("entries", len(entries)))
	return entries
}

// Reconcile builds a new snapshot from enumerated processes, carrying the
// watched flag forward from prev by window handle. The denylist follows the
// same nil rule as New.
func Reconcile(infos []window.ProcessInfo, prev []Entry, denylist []string) []Entry {
	return reconcile(infos, prev, denySet(orDefault(denylist)))
}

func reconcile(infos []window.ProcessInfo, prev []Entry, deny map[string]struct{}) []Entry {
	watched := make(map[window.Handle]bool, len(prev))
	for _, e := range prev {
		if e.Watched {
			watched[e.Handle] = true
		}
	}

	seen := make(map[window.Handle]struct{}, len(infos))
	entries := make([]Entry, 0, len(infos))

	for _, info := range infos {
		if _, denied := deny[strings.ToLower(info.Name)]; denied {
			continue
		}
		if !info.HasWindow() {
			continue
		}
		if _, dup := seen[info.WindowHandle]; dup {
			continue
		}
		seen[info.WindowHandle] = struct{}{}

		entries = append(entries, Entry{
			PID:     info.PID,
			Name:    info.Name,
			Title:   info.WindowTitle,
			Handle:  info.WindowHandle,
			Label:   Label(info.Name, info.WindowTitle),
			Watched: watched[info.WindowHandle],
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Label < entries[j].Label
	})

	return entries
}

// Label computes the display label: "{title} ({name})", or the bare name when
// the title is empty or equal to the name.
func Label(name, title string) string {
	if title == "" || title == name {
		return name
	}
	return fmt.Sprintf("%s (%s)", title, name)
}

func orDefault(denylist []string) []string {
	if denylist == nil {
		return DefaultDenylist
	}
	return denylist
}

func denySet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		set[strings.ToLower(n)] = struct{}{}
	}
	return set
}
