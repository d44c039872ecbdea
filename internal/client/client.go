// Package client talks to a running focusmute instance over its HTTP API.
package client

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/focusmute/focusmute/internal/catalog"
	"github.com/focusmute/focusmute/internal/models"
	"github.com/focusmute/focusmute/internal/web"
	"github.com/focusmute/focusmute/pkg/window"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

// ErrNotRunning is returned when nothing answers on the API address
var ErrNotRunning = errors.New("focusmute is not running")

// ErrUnknownHandle is returned when the instance has no entry for a handle
var ErrUnknownHandle = errors.New("unknown window handle")

// Client is a typed wrapper over the focusmute API
type Client struct {
	resty *resty.Client
}

// New creates a client for the instance listening on addr (host:port)
func New(addr string) *Client {
	r := resty.New().
		SetBaseURL("http://"+addr).
		SetTimeout(10*time.Second).
		SetHeader("User-Agent", "focusmute-cli/1.0").
		SetHeader("Accept", "application/json")

	return &Client{resty: r}
}

// SetTransport replaces the HTTP transport, for tests
func (c *Client) SetTransport(rt http.RoundTripper) {
	c.resty.SetTransport(rt)
}

func (c *Client) Processes(ctx context.Context) ([]catalog.Entry, error) {
	var entries []catalog.Entry
	err := c.do(ctx, http.MethodGet, "/api/processes", nil, &entries)
	return entries, err
}

func (c *Client) Refresh(ctx context.Context) ([]catalog.Entry, error) {
	var entries []catalog.Entry
	err := c.do(ctx, http.MethodPost, "/api/processes/refresh", nil, &entries)
	return entries, err
}

// Watch sets or clears the watched flag of one entry
func (c *Client) Watch(ctx context.Context, h window.Handle, watched bool) ([]catalog.Entry, error) {
	var entries []catalog.Entry
	path := "/api/processes/" + h.String() + "/watch"
	err := c.do(ctx, http.MethodPost, path, web.WatchRequest{Watched: watched}, &entries)
	return entries, err
}

// SetWatchList replaces the whole watched set
func (c *Client) SetWatchList(ctx context.Context, handles []window.Handle) ([]catalog.Entry, error) {
	var entries []catalog.Entry
	err := c.do(ctx, http.MethodPut, "/api/watchlist", web.WatchListRequest{Handles: handles}, &entries)
	return entries, err
}

func (c *Client) UnmuteAll(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/unmute-all", nil, nil)
}

func (c *Client) Status(ctx context.Context) (*web.StatusResponse, error) {
	var status web.StatusResponse
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Events returns up to limit journal entries, oldest first
func (c *Client) Events(ctx context.Context, limit int) ([]*models.MuteEvent, error) {
	var events []*models.MuteEvent
	path := "/api/events?limit=" + strconv.Itoa(limit)
	err := c.do(ctx, http.MethodGet, path, nil, &events)
	return events, err
}

func (c *Client) Report(ctx context.Context, period string) (*models.Report, error) {
	var report models.Report
	if err := c.do(ctx, http.MethodGet, "/api/report?period="+period, nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// Shutdown asks the instance to unmute everything and exit
func (c *Client) Shutdown(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/shutdown", nil, nil)
}

// Ping reports whether an instance answers the health check
func (c *Client) Ping(ctx context.Context) bool {
	return c.do(ctx, http.MethodGet, "/health", nil, nil) == nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	req := c.resty.R().SetContext(ctx)
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	if out != nil {
		req.SetResult(out)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return errors.Wrap(ErrNotRunning, err.Error())
	}

	if resp.IsError() {
		msg := strings.TrimSpace(resp.String())
		if resp.StatusCode() == http.StatusNotFound && strings.HasPrefix(path, "/api/processes/") {
			return errors.Wrap(ErrUnknownHandle, msg)
		}
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status(), msg)
	}

	return nil
}
