package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/focusmute/focusmute/internal/catalog"
	"github.com/focusmute/focusmute/internal/config"
	"github.com/focusmute/focusmute/internal/controller"
	"github.com/focusmute/focusmute/internal/metrics"
	"github.com/focusmute/focusmute/internal/models"
	"github.com/focusmute/focusmute/pkg/window"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeController struct {
	mu         sync.Mutex
	entries    []catalog.Entry
	refreshErr error
	unmuted    bool
}

func (f *fakeController) Entries() []catalog.Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]catalog.Entry(nil), f.entries...)
}

func (f *fakeController) Refresh() ([]catalog.Entry, error) {
	return f.Entries(), f.refreshErr
}

func (f *fakeController) ToggleWatch(h window.Handle, watched bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.entries {
		if f.entries[i].Handle == h {
			f.entries[i].Watched = watched
			return nil
		}
	}
	return fmt.Errorf("%w: %s", controller.ErrUnknownHandle, h)
}

func (f *fakeController) SetWatchList(handles []window.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := map[window.Handle]bool{}
	for _, h := range handles {
		want[h] = true
	}
	for h := range want {
		found := false
		for _, e := range f.entries {
			found = found || e.Handle == h
		}
		if !found {
			return fmt.Errorf("%w: %s", controller.ErrUnknownHandle, h)
		}
	}
	for i := range f.entries {
		f.entries[i].Watched = want[f.entries[i].Handle]
	}
	return nil
}

func (f *fakeController) UnmuteAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unmuted = true
	for i := range f.entries {
		f.entries[i].Watched = false
	}
}

func (f *fakeController) Status() controller.Status {
	return controller.Status{Running: true, FocusTracking: true, Entries: len(f.Entries()), AudioDeviceAvailable: true}
}

type fakeJournal struct {
	events []*models.MuteEvent
	limit  int
}

func (j *fakeJournal) GetLatest() (*models.MuteEvent, error) {
	if len(j.events) == 0 {
		return nil, nil
	}
	return j.events[len(j.events)-1], nil
}

func (j *fakeJournal) GetRecentEvents(limit int) ([]*models.MuteEvent, error) {
	j.limit = limit
	if limit < len(j.events) {
		return j.events[len(j.events)-limit:], nil
	}
	return j.events, nil
}

func (j *fakeJournal) GetAppSummarySince(time.Time) ([]models.AppSummary, error) {
	return []models.AppSummary{{ProcessName: "chat", MuteCount: 2, EventCount: 2}}, nil
}

func newTestServer(t *testing.T, journal Journal, shutdown func()) (*httptest.Server, *fakeController) {
	t.Helper()

	ctrl := &fakeController{entries: []catalog.Entry{
		{PID: 1, Name: "chat", Title: "Inbox", Handle: 0x10, Label: "Inbox (chat)"},
		{PID: 2, Name: "game", Title: "Game", Handle: 0x20, Label: "Game (game)"},
	}}
	deps := Deps{Controller: ctrl, Metrics: metrics.New(), Shutdown: shutdown}
	if journal != nil {
		deps.Journal = journal
	}

	srv := httptest.NewServer(NewServer(config.Default(), deps).Handler())
	t.Cleanup(srv.Close)
	return srv, ctrl
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func do(t *testing.T, method, url, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestListProcesses(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)

	resp := do(t, http.MethodGet, srv.URL+"/api/processes", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	entries := decode[[]catalog.Entry](t, resp)
	require.Len(t, entries, 2)
	assert.Equal(t, window.Handle(0x10), entries[0].Handle)
	assert.Equal(t, "Inbox (chat)", entries[0].Label)
}

func TestListProcessesMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)

	resp := do(t, http.MethodDelete, srv.URL+"/api/processes", "")
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestRefresh(t *testing.T) {
	srv, ctrl := newTestServer(t, nil, nil)

	resp := do(t, http.MethodPost, srv.URL+"/api/processes/refresh", "")
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctrl.refreshErr = errors.New("snapshot failed")
	resp = do(t, http.MethodPost, srv.URL+"/api/processes/refresh", "")
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestWatch(t *testing.T) {
	srv, ctrl := newTestServer(t, nil, nil)

	resp := do(t, http.MethodPost, srv.URL+"/api/processes/0x20/watch", `{"watched":true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entries := decode[[]catalog.Entry](t, resp)
	assert.True(t, entries[1].Watched)
	assert.True(t, ctrl.Entries()[1].Watched)

	resp = do(t, http.MethodPost, srv.URL+"/api/processes/0x99/watch", `{"watched":true}`)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/api/processes/window/watch", `{"watched":true}`)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/api/processes/0x20/watch", `{"watched":`)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWatchFromDashboard(t *testing.T) {
	srv, ctrl := newTestServer(t, nil, nil)

	// json-enc sends hx-vals as strings
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/processes/0x10/watch", strings.NewReader(`{"watched":"true"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("HX-Request", "true")
	req.Header.Set("Origin", srv.URL)
	req.Header.Set("Sec-Fetch-Site", "same-origin")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.True(t, ctrl.Entries()[0].Watched)
}

func TestWatchRequiresJSON(t *testing.T) {
	srv, ctrl := newTestServer(t, nil, nil)

	form := url.Values{"watched": {"true"}}
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/processes/0x10/watch", strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
	assert.False(t, ctrl.Entries()[0].Watched)
}

func TestWatchRequestDecoding(t *testing.T) {
	tests := []struct {
		body    string
		want    bool
		wantErr bool
	}{
		{body: `{"watched":true}`, want: true},
		{body: `{"watched":false}`, want: false},
		{body: `{"watched":"true"}`, want: true},
		{body: `{"watched":"false"}`, want: false},
		{body: `{"watched":"maybe"}`, wantErr: true},
		{body: `{"watched":1}`, wantErr: true},
		{body: `{}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			var req WatchRequest
			err := json.Unmarshal([]byte(tt.body), &req)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, req.Watched)
		})
	}
}

func TestCrossOriginWritesRejected(t *testing.T) {
	called := make(chan struct{}, 1)
	srv, ctrl := newTestServer(t, nil, func() { called <- struct{}{} })

	tests := []struct {
		name        string
		method      string
		path        string
		contentType string
		body        string
		origin      string
		fetchSite   string
	}{
		{
			name:        "form post from another site",
			method:      http.MethodPost,
			path:        "/api/processes/0x10/watch",
			contentType: "application/x-www-form-urlencoded",
			body:        "watched=true",
			origin:      "https://evil.example",
			fetchSite:   "cross-site",
		},
		{
			name:        "json post with foreign origin",
			method:      http.MethodPost,
			path:        "/api/processes/0x10/watch",
			contentType: "application/json",
			body:        `{"watched":true}`,
			origin:      "https://evil.example",
		},
		{
			name:      "shutdown from another site",
			method:    http.MethodPost,
			path:      "/api/shutdown",
			fetchSite: "cross-site",
		},
		{
			name:   "unmute all with null origin",
			method: http.MethodPost,
			path:   "/api/unmute-all",
			origin: "null",
		},
		{
			name:        "watchlist from another port",
			method:      http.MethodPut,
			path:        "/api/watchlist",
			contentType: "application/json",
			body:        `{"handles":[16]}`,
			origin:      "http://localhost:1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, srv.URL+tt.path, strings.NewReader(tt.body))
			require.NoError(t, err)
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.fetchSite != "" {
				req.Header.Set("Sec-Fetch-Site", tt.fetchSite)
			}

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			resp.Body.Close()

			assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		})
	}

	for _, e := range ctrl.Entries() {
		assert.False(t, e.Watched, "entry %s changed", e.Handle)
	}
	assert.False(t, ctrl.unmuted)
	select {
	case <-called:
		t.Fatal("shutdown ran for a cross-origin request")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCrossOriginReadsAllowed(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/processes", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Sec-Fetch-Site", "cross-site")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"), "no CORS grant to other sites")
}

func TestSetWatchList(t *testing.T) {
	srv, ctrl := newTestServer(t, nil, nil)

	resp := do(t, http.MethodPut, srv.URL+"/api/watchlist", `{"handles":["0x10","0x20"]}`)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	for _, e := range ctrl.Entries() {
		assert.True(t, e.Watched)
	}

	resp = do(t, http.MethodPut, srv.URL+"/api/watchlist", `{"handles":["0x10","0x77"]}`)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, http.MethodPut, srv.URL+"/api/watchlist", `{"handles":[16]}`)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUnmuteAll(t *testing.T) {
	srv, ctrl := newTestServer(t, nil, nil)

	resp := do(t, http.MethodPost, srv.URL+"/api/unmute-all", "")
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, ctrl.unmuted)
}

func TestStatus(t *testing.T) {
	journal := &fakeJournal{events: []*models.MuteEvent{{ProcessName: "chat", Muted: true}}}
	srv, _ := newTestServer(t, journal, nil)

	resp := do(t, http.MethodGet, srv.URL+"/api/status", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	status := decode[StatusResponse](t, resp)
	assert.True(t, status.Running)
	assert.Equal(t, 2, status.Entries)
	assert.True(t, status.JournalEnabled)
	require.NotNil(t, status.LatestEvent)
	assert.Equal(t, "chat", status.LatestEvent.ProcessName)
}

func TestEvents(t *testing.T) {
	journal := &fakeJournal{}
	for i := 0; i < 5; i++ {
		journal.events = append(journal.events, &models.MuteEvent{ProcessName: fmt.Sprintf("p%d", i)})
	}
	srv, _ := newTestServer(t, journal, nil)

	resp := do(t, http.MethodGet, srv.URL+"/api/events?limit=2", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	events := decode[[]models.MuteEvent](t, resp)
	require.Len(t, events, 2)
	assert.Equal(t, "p4", events[1].ProcessName)

	resp = do(t, http.MethodGet, srv.URL+"/api/events?limit=99999", "")
	resp.Body.Close()
	assert.Equal(t, maxEventLimit, journal.limit)

	resp = do(t, http.MethodGet, srv.URL+"/api/events?limit=-1", "")
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestJournalDisabled(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)

	for _, path := range []string{"/api/events", "/api/report"} {
		resp := do(t, http.MethodGet, srv.URL+path, "")
		resp.Body.Close()
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode, path)
	}
}

func TestReport(t *testing.T) {
	srv, _ := newTestServer(t, &fakeJournal{}, nil)

	resp := do(t, http.MethodGet, srv.URL+"/api/report?period=week", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	report := decode[models.Report](t, resp)
	assert.Equal(t, "week", report.Period.Type)
	assert.Equal(t, int64(2), report.TotalMutes)

	resp = do(t, http.MethodGet, srv.URL+"/api/report?period=year", "")
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestShutdown(t *testing.T) {
	called := make(chan struct{})
	srv, _ := newTestServer(t, nil, func() { close(called) })

	resp := do(t, http.MethodPost, srv.URL+"/api/shutdown", "")
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("shutdown callback not invoked")
	}
}

func TestShutdownUnavailable(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)

	resp := do(t, http.MethodPost, srv.URL+"/api/shutdown", "")
	resp.Body.Close()
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)

	resp := do(t, http.MethodGet, srv.URL+"/health", "")
	health := decode[map[string]string](t, resp)
	assert.Equal(t, "healthy", health["status"])

	resp = do(t, http.MethodGet, srv.URL+"/metrics", "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestIndex(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)

	resp := do(t, http.MethodGet, srv.URL+"/", "")
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/nope", "")
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestProcessesHTMLEscapesLabels(t *testing.T) {
	ctrl := &fakeController{entries: []catalog.Entry{
		{Name: "x", Handle: 0x1, Label: "<script> (x)", Watched: true},
	}}
	h := NewHandler(config.Default(), Deps{Controller: ctrl})
	mux := http.NewServeMux()
	h.SetupRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/api/processes", nil)
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	body := rec.Body.String()
	assert.Contains(t, body, "&lt;script&gt;")
	assert.Contains(t, body, "Unwatch")
	assert.Contains(t, body, "/api/processes/0x1/watch")
}
