package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/focusmute/focusmute/internal/catalog"
	"github.com/focusmute/focusmute/internal/config"
	"github.com/focusmute/focusmute/internal/controller"
	"github.com/focusmute/focusmute/internal/metrics"
	"github.com/focusmute/focusmute/internal/models"
	"github.com/focusmute/focusmute/internal/reporter"
	"github.com/focusmute/focusmute/pkg/utils"
	"github.com/focusmute/focusmute/pkg/window"
	"go.uber.org/zap"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 1000
)

// Controller is the part of the mute controller exposed over HTTP
type Controller interface {
	Entries() []catalog.Entry
	Refresh() ([]catalog.Entry, error)
	ToggleWatch(h window.Handle, watched bool) error
	SetWatchList(handles []window.Handle) error
	UnmuteAll()
	Status() controller.Status
}

// Journal is the read side of the mute journal
type Journal interface {
	GetLatest() (*models.MuteEvent, error)
	GetRecentEvents(limit int) ([]*models.MuteEvent, error)
	GetAppSummarySince(since time.Time) ([]models.AppSummary, error)
}

// Deps are the collaborators the API serves
type Deps struct {
	Controller Controller
	Journal    Journal // nil when journaling is disabled
	Metrics    *metrics.Metrics
	Shutdown   func() // invoked after POST /api/shutdown has been answered
	Logger     *zap.Logger
}

// StatusResponse is the body of GET /api/status
type StatusResponse struct {
	controller.Status `yaml:",inline"`
	Uptime            string            `json:"uptime" yaml:"uptime"`
	JournalEnabled    bool              `json:"journal_enabled" yaml:"journal_enabled"`
	LatestEvent       *models.MuteEvent `json:"latest_event,omitempty" yaml:"latest_event,omitempty"`
}

// WatchRequest is the body of POST /api/processes/{handle}/watch
type WatchRequest struct {
	Watched bool `json:"watched"`
}

// UnmarshalJSON also takes "true"/"false" strings, which is what the
// dashboard's json-enc extension sends for hx-vals.
func (req *WatchRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		Watched json.RawMessage `json:"watched"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw.Watched) == 0 {
		return errors.New("watched is required")
	}

	if err := json.Unmarshal(raw.Watched, &req.Watched); err == nil {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw.Watched, &s); err != nil {
		return errors.New("watched must be true or false")
	}
	watched, err := strconv.ParseBool(s)
	if err != nil {
		return errors.New("watched must be true or false")
	}
	req.Watched = watched
	return nil
}

// WatchListRequest is the body of PUT /api/watchlist
type WatchListRequest struct {
	Handles []window.Handle `json:"handles"`
}

type Handler struct {
	config   *config.Config
	ctrl     Controller
	journal  Journal
	reporter *reporter.Reporter
	metrics  *metrics.Metrics
	shutdown func()
	logger   *zap.Logger
	started  time.Time
}

func NewHandler(cfg *config.Config, deps Deps) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	h := &Handler{
		config:   cfg,
		ctrl:     deps.Controller,
		journal:  deps.Journal,
		metrics:  deps.Metrics,
		shutdown: deps.Shutdown,
		logger:   logger.Named("web"),
		started:  time.Now(),
	}
	if deps.Journal != nil {
		h.reporter = reporter.New(cfg, deps.Journal)
	}
	return h
}

func (h *Handler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/processes", h.handleProcesses)
	mux.HandleFunc("/api/processes/refresh", h.handleRefresh)
	mux.HandleFunc("/api/processes/{handle}/watch", h.handleWatch)
	mux.HandleFunc("/api/watchlist", h.handleWatchList)
	mux.HandleFunc("/api/unmute-all", h.handleUnmuteAll)
	mux.HandleFunc("/api/status", h.handleStatus)
	mux.HandleFunc("/api/events", h.handleEvents)
	mux.HandleFunc("/api/report", h.handleReport)
	mux.HandleFunc("/api/shutdown", h.handleShutdown)

	mux.HandleFunc("/health", h.handleHealth)
	if h.metrics != nil {
		mux.Handle("/metrics", h.metrics.Handler())
	}

	mux.HandleFunc("/", h.handleIndex)
}

func (h *Handler) handleProcesses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.respondEntries(w, r, h.ctrl.Entries())
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	entries, err := h.ctrl.Refresh()
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to refresh processes: %v", err), http.StatusInternalServerError)
		return
	}

	h.respondEntries(w, r, entries)
}

func (h *Handler) handleWatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	handle, err := window.ParseHandle(r.PathValue("handle"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if !isJSON(r) {
		http.Error(w, "Content-Type must be application/json", http.StatusUnsupportedMediaType)
		return
	}

	var req WatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	if err := h.ctrl.ToggleWatch(handle, req.Watched); err != nil {
		h.respondControllerError(w, err)
		return
	}

	h.respondEntries(w, r, h.ctrl.Entries())
}

func (h *Handler) handleWatchList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !isJSON(r) {
		http.Error(w, "Content-Type must be application/json", http.StatusUnsupportedMediaType)
		return
	}

	var req WatchListRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	if err := h.ctrl.SetWatchList(req.Handles); err != nil {
		h.respondControllerError(w, err)
		return
	}

	respondJSON(w, h.ctrl.Entries())
}

func (h *Handler) handleUnmuteAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.ctrl.UnmuteAll()
	h.respondEntries(w, r, h.ctrl.Entries())
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := StatusResponse{
		Status:         h.ctrl.Status(),
		Uptime:         utils.FormatRoundedUnit(int64(time.Since(h.started).Seconds())),
		JournalEnabled: h.journal != nil,
	}

	if h.journal != nil {
		if latest, err := h.journal.GetLatest(); err == nil {
			status.LatestEvent = latest
		}
	}

	if r.Header.Get("HX-Request") == "true" {
		h.respondStatusHTML(w, status)
		return
	}

	respondJSON(w, status)
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.journal == nil {
		http.Error(w, "Journal is disabled", http.StatusServiceUnavailable)
		return
	}

	limit := defaultEventLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil || l <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(l, maxEventLimit)
	}

	events, err := h.journal.GetRecentEvents(limit)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to fetch events: %v", err), http.StatusInternalServerError)
		return
	}

	respondJSON(w, events)
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.reporter == nil {
		http.Error(w, "Journal is disabled", http.StatusServiceUnavailable)
		return
	}

	periodType := r.URL.Query().Get("period")
	if periodType == "" {
		periodType = "day"
	}

	switch periodType {
	case "day", "today", "week", "month":
	default:
		http.Error(w, fmt.Sprintf("invalid period type: %s (valid: day, week, month)", periodType), http.StatusBadRequest)
		return
	}

	report, err := h.reporter.GenerateReport(periodType)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to generate report: %v", err), http.StatusInternalServerError)
		return
	}

	respondJSON(w, report)
}

func (h *Handler) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.shutdown == nil {
		http.Error(w, "Shutdown is not available", http.StatusNotImplemented)
		return
	}

	h.logger.Info("shutdown requested over API", zap.String("remote", r.RemoteAddr))
	respondJSON(w, map[string]string{"status": "shutting down"})

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	go h.shutdown()
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (h *Handler) respondControllerError(w http.ResponseWriter, err error) {
	if errors.Is(err, controller.ErrUnknownHandle) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func (h *Handler) respondEntries(w http.ResponseWriter, r *http.Request, entries []catalog.Entry) {
	if r.Header.Get("HX-Request") == "true" {
		h.respondEntriesHTML(w, entries)
		return
	}
	respondJSON(w, entries)
}

func (h *Handler) respondEntriesHTML(w http.ResponseWriter, entries []catalog.Entry) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if len(entries) == 0 {
		w.Write([]byte(`<div class="loading">No windowed processes found</div>`))
		return
	}

	var b strings.Builder
	b.WriteString(`<div class="listing">`)
	for _, e := range entries {
		class := "app-item"
		if e.Watched {
			class += " watched"
		}
		fmt.Fprintf(&b, `
		<div class="%s">
			<span class="app-name">%s</span>
			<div>
				<span class="app-time">%s</span>
				<button class="watch-btn" hx-post="/api/processes/%s/watch" hx-vals='{"watched": %t}' hx-target="#processes" hx-swap="innerHTML">%s</button>
			</div>
		</div>`,
			class,
			html.EscapeString(e.Label),
			e.Handle,
			e.Handle,
			!e.Watched,
			watchButtonLabel(e.Watched))
	}
	b.WriteString(`</div>`)

	w.Write([]byte(b.String()))
}

func (h *Handler) respondStatusHTML(w http.ResponseWriter, status StatusResponse) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	focus := "on"
	if !status.FocusTracking {
		focus = "off"
		if status.FocusError != "" {
			focus += " (" + html.EscapeString(status.FocusError) + ")"
		}
	}
	device := "available"
	if !status.AudioDeviceAvailable {
		device = "unavailable"
	}

	last := "none"
	if status.LatestEvent != nil {
		last = fmt.Sprintf("%s %s %s",
			html.EscapeString(status.LatestEvent.ProcessName),
			utils.MuteLabel(status.LatestEvent.Muted),
			utils.FormatAgo(status.LatestEvent.Timestamp, time.Now()))
	}

	fmt.Fprintf(w, `<div class="listing">
		<div class="app-item"><span class="app-name">Focus tracking</span><span class="app-time">%s</span></div>
		<div class="app-item"><span class="app-name">Audio device</span><span class="app-time">%s</span></div>
		<div class="app-item"><span class="app-name">Watched</span><span class="app-time">%d of %d</span></div>
		<div class="app-item"><span class="app-name">Last command</span><span class="app-time">%s</span></div>
	</div>
	<div class="total">Up %s</div>`,
		focus, device, status.Watched, status.Entries, last, status.Uptime)
}

func watchButtonLabel(watched bool) string {
	if watched {
		return "Unwatch"
	}
	return "Watch"
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(indexHTML))
}

func isJSON(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
