package catalog

import (
	"errors"
	"testing"

	"github.com/focusmute/focusmute/pkg/window"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEnumerator struct {
	infos []window.ProcessInfo
	err   error
}

func (s *stubEnumerator) Processes() ([]window.ProcessInfo, error) { return s.infos, s.err }

func (s *stubEnumerator) PIDsByName(string) ([]uint32, error) { return nil, nil }

func TestLabel(t *testing.T) {
	tests := []struct {
		name     string
		procName string
		title    string
		want     string
	}{
		{name: "Title equals name", procName: "App", title: "App", want: "App"},
		{name: "Empty title", procName: "App", title: "", want: "App"},
		{name: "Distinct title", procName: "chat", title: "Chat - Inbox", want: "Chat - Inbox (chat)"},
		{name: "Case differs", procName: "app", title: "App", want: "App (app)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Label(tt.procName, tt.title))
		})
	}
}

func TestReconcileFiltersAndDedupes(t *testing.T) {
	infos := []window.ProcessInfo{
		{PID: 1, Name: "chat", WindowHandle: 0x10, WindowTitle: "Chat"},
		{PID: 2, Name: "chat", WindowHandle: 0x10, WindowTitle: "Chat duplicate"},
		{PID: 3, Name: "svchost"},
		{PID: 4, Name: "SystemSettings", WindowHandle: 0x30, WindowTitle: "Settings"},
		{PID: 5, Name: "textinputhost", WindowHandle: 0x31, WindowTitle: "Input"},
		{PID: 6, Name: "game", WindowHandle: 0x20, WindowTitle: "Game"},
		{PID: 7, Name: "hidden", WindowHandle: 0x40},
		{PID: 8, Name: "orphan", WindowTitle: "No handle"},
	}

	entries := Reconcile(infos, nil, DefaultDenylist)
	require.Len(t, entries, 2)

	handles := make(map[window.Handle]int)
	for _, e := range entries {
		handles[e.Handle]++
	}
	for h, n := range handles {
		assert.Equal(t, 1, n, "handle %v appears %d times", h, n)
	}

	assert.Equal(t, uint32(1), entries[0].PID, "first enumerated process wins a handle")
	assert.Equal(t, "Chat (chat)", entries[0].Label)
	assert.Equal(t, "Game (game)", entries[1].Label)
}

func TestReconcileCarriesWatchedByHandle(t *testing.T) {
	prev := []Entry{
		{PID: 1, Name: "chat", Handle: 0x10, Watched: true},
		{PID: 2, Name: "game", Handle: 0x20, Watched: false},
		{PID: 3, Name: "music", Handle: 0x30, Watched: true},
	}
	infos := []window.ProcessInfo{
		{PID: 11, Name: "chat", WindowHandle: 0x10, WindowTitle: "Chat"},
		{PID: 2, Name: "game", WindowHandle: 0x20, WindowTitle: "Game"},
		{PID: 4, Name: "editor", WindowHandle: 0x40, WindowTitle: "Editor"},
	}

	entries := Reconcile(infos, prev, nil)
	require.Len(t, entries, 3)

	byHandle := make(map[window.Handle]Entry)
	for _, e := range entries {
		byHandle[e.Handle] = e
	}

	assert.True(t, byHandle[0x10].Watched, "reappearing watched handle stays watched")
	assert.Equal(t, uint32(11), byHandle[0x10].PID, "identity fields come from the new snapshot")
	assert.False(t, byHandle[0x20].Watched)
	assert.False(t, byHandle[0x40].Watched, "new entries start unwatched")
	_, ok := byHandle[0x30]
	assert.False(t, ok, "vanished handle must be absent")
}

func TestReconcileOrdersByLabel(t *testing.T) {
	infos := []window.ProcessInfo{
		{PID: 1, Name: "zed", WindowHandle: 1, WindowTitle: "zed"},
		{PID: 2, Name: "Beta", WindowHandle: 2, WindowTitle: "Beta"},
		{PID: 3, Name: "alpha", WindowHandle: 3, WindowTitle: "alpha"},
		{PID: 4, Name: "Alpha", WindowHandle: 4, WindowTitle: "Alpha"},
	}

	entries := Reconcile(infos, nil, nil)
	labels := make([]string, len(entries))
	for i, e := range entries {
		labels[i] = e.Label
	}

	assert.Equal(t, []string{"Alpha", "Beta", "alpha", "zed"}, labels)
}

func TestReconcileStableTies(t *testing.T) {
	infos := []window.ProcessInfo{
		{PID: 1, Name: "app", WindowHandle: 1, WindowTitle: "app"},
		{PID: 2, Name: "app", WindowHandle: 2, WindowTitle: "app"},
		{PID: 3, Name: "app", WindowHandle: 3, WindowTitle: "app"},
	}

	entries := Reconcile(infos, nil, nil)
	require.Len(t, entries, 3)
	for i, e := range entries {
		assert.Equal(t, uint32(i+1), e.PID)
	}
}

func TestReconcileCustomDenylist(t *testing.T) {
	infos := []window.ProcessInfo{
		{PID: 1, Name: "Explorer", WindowHandle: 1, WindowTitle: "Files"},
		{PID: 2, Name: "SystemSettings", WindowHandle: 2, WindowTitle: "Settings"},
	}

	entries := Reconcile(infos, nil, []string{" explorer ", ""})
	require.Len(t, entries, 1)
	assert.Equal(t, "SystemSettings", entries[0].Name)
}

func TestReconcileNilDenylistMatchesNew(t *testing.T) {
	infos := []window.ProcessInfo{
		{PID: 1, Name: "chat", WindowHandle: 1, WindowTitle: "Chat"},
		{PID: 2, Name: "SystemSettings", WindowHandle: 2, WindowTitle: "Settings"},
	}

	fromNew := New(&stubEnumerator{}, nil, nil).Build(infos, nil)
	fromReconcile := Reconcile(infos, nil, nil)
	assert.Equal(t, fromNew, fromReconcile)
	require.Len(t, fromReconcile, 1)
	assert.Equal(t, "chat", fromReconcile[0].Name)

	// empty but non-nil denies nothing
	assert.Len(t, Reconcile(infos, nil, []string{}), 2)
	assert.Len(t, New(&stubEnumerator{}, []string{}, nil).Build(infos, nil), 2)
}

func TestCatalogRefresh(t *testing.T) {
	enum := &stubEnumerator{infos: []window.ProcessInfo{
		{PID: 1, Name: "chat", WindowHandle: 0x10, WindowTitle: "Chat - Inbox"},
		{PID: 2, Name: "game", WindowHandle: 0x20, WindowTitle: "Game"},
	}}
	c := New(enum, nil, nil)

	first, err := c.Refresh(nil)
	require.NoError(t, err)
	require.Len(t, first, 2)

	first[0].Watched = true
	second, err := c.Refresh(first)
	require.NoError(t, err)
	assert.True(t, second[0].Watched)
	assert.False(t, second[1].Watched)
}

func TestCatalogRefreshEnumerationFailure(t *testing.T) {
	c := New(&stubEnumerator{err: errors.New("access denied")}, nil, nil)

	entries, err := c.Refresh(nil)
	assert.Error(t, err)
	assert.Nil(t, entries)
}

func BenchmarkReconcile(b *testing.B) {
	infos := make([]window.ProcessInfo, 200)
	for i := range infos {
		infos[i] = window.ProcessInfo{PID: uint32(i), Name: "proc", WindowHandle: window.Handle(i + 1), WindowTitle: "Window"}
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Reconcile(infos, nil, DefaultDenylist)
	}
}
