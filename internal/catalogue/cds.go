package catalogue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/climdiff/climdiff/internal/config"
	"github.com/climdiff/climdiff/internal/grid"
)

// Task states reported by the CDS API.
const (
	stateQueued    = "queued"
	stateRunning   = "running"
	stateCompleted = "completed"
	stateFailed    = "failed"
)

// maxErrorBody caps how much of a failed response body ends up in errors.
const maxErrorBody = 512

// task is the CDS response to a submit or poll.
type task struct {
	State     string `json:"state"`
	RequestID string `json:"request_id"`
	Location  string `json:"location"`
	Error     *struct {
		Message string `json:"message"`
		Reason  string `json:"reason"`
	} `json:"error,omitempty"`
}

// CDS retrieves datasets from the Copernicus Climate Data Store API.
type CDS struct {
	endpoint string
	client   *http.Client
	poll     time.Duration
	timeout  time.Duration
	cache    *archiveCache
	observer Observer
}

// NewCDS builds a CDS client from the catalogue configuration.
func NewCDS(cfg config.CatalogueConfig, obs Observer) (*CDS, error) {
	client, err := NewHTTPClient(cfg)
	if err != nil {
		return nil, err
	}
	c := &CDS{
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		client:   client,
		poll:     cfg.PollInterval,
		timeout:  cfg.Timeout,
		observer: obs,
	}
	if cfg.CacheDir != "" {
		if c.cache, err = newArchiveCache(cfg.CacheDir); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Retrieve implements Catalogue.
func (c *CDS) Retrieve(ctx context.Context, req Request) (*grid.Series, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if s, ok := c.fromCache(req); ok {
		c.notify(req, SourceCache)
		return s, nil
	}
	s, err := c.fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	c.notify(req, SourceRemote)
	return s, nil
}

func (c *CDS) notify(req Request, source string) {
	if c.observer != nil {
		c.observer(req, source)
	}
}

// fromCache decodes the cached archive for req. An entry that no longer
// decodes is dropped so the next fetch replaces it.
func (c *CDS) fromCache(req Request) (*grid.Series, bool) {
	if c.cache == nil {
		return nil, false
	}
	data, ok, err := c.cache.get(req)
	if err != nil {
		slog.Warn("catalogue: cache read failed, fetching", "request", req.FileStem(), "err", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	s, err := DecodeArchive(data, req)
	if err != nil {
		slog.Warn("catalogue: dropping undecodable cache entry", "request", req.FileStem(), "err", err)
		if err := c.cache.remove(req); err != nil {
			slog.Warn("catalogue: cache remove failed", "request", req.FileStem(), "err", err)
		}
		return nil, false
	}
	slog.Debug("catalogue: cache hit", "request", req.FileStem())
	return s, true
}

// fetch submits req, waits for the task and decodes the download. Only
// archives that decode are cached.
func (c *CDS) fetch(ctx context.Context, req Request) (*grid.Series, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	t, err := c.submit(ctx, req)
	if err != nil {
		return nil, err
	}
	slog.Info("catalogue: request submitted",
		"request", req.FileStem(), "request_id", t.RequestID, "state", t.State)

	t, err = c.wait(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("catalogue: %s: %w", req.FileStem(), err)
	}

	data, err := c.download(ctx, t.Location)
	if err != nil {
		return nil, fmt.Errorf("catalogue: %s: %w", req.FileStem(), err)
	}
	slog.Info("catalogue: archive downloaded", "request", req.FileStem(), "bytes", len(data))

	s, err := DecodeArchive(data, req)
	if err != nil {
		return nil, err
	}
	if c.cache != nil {
		if err := c.cache.put(req, data); err != nil {
			slog.Warn("catalogue: cache write failed", "request", req.FileStem(), "err", err)
		}
	}
	return s, nil
}

func (c *CDS) submit(ctx context.Context, req Request) (*task, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("catalogue: encode request: %w", err)
	}
	u := c.endpoint + "/resources/" + url.PathEscape(req.Dataset)
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("catalogue: build request: %w", err)
	}
	hreq.Header.Set("Content-Type", "application/json")

	t, err := c.doTask(hreq)
	if err != nil {
		return nil, fmt.Errorf("catalogue: submit %s: %w", req.FileStem(), err)
	}
	return t, nil
}

// wait polls the task until it completes, fails or ctx ends.
func (c *CDS) wait(ctx context.Context, t *task) (*task, error) {
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	for {
		switch t.State {
		case stateCompleted:
			if t.Location == "" {
				return nil, fmt.Errorf("task %s completed without a location", t.RequestID)
			}
			return t, nil
		case stateFailed:
			msg := "no reason given"
			if t.Error != nil {
				msg = strings.TrimSpace(t.Error.Message + " " + t.Error.Reason)
			}
			return nil, fmt.Errorf("task %s failed: %s", t.RequestID, msg)
		case stateQueued, stateRunning:
		default:
			return nil, fmt.Errorf("task %s: unexpected state %q", t.RequestID, t.State)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		hreq, err := http.NewRequestWithContext(ctx, http.MethodGet,
			c.endpoint+"/tasks/"+url.PathEscape(t.RequestID), nil)
		if err != nil {
			return nil, fmt.Errorf("build poll request: %w", err)
		}
		next, err := c.doTask(hreq)
		if err != nil {
			return nil, fmt.Errorf("poll: %w", err)
		}
		if next.RequestID == "" {
			next.RequestID = t.RequestID
		}
		slog.Debug("catalogue: task polled", "request_id", next.RequestID, "state", next.State)
		t = next
	}
}

func (c *CDS) doTask(hreq *http.Request) (*task, error) {
	hreq.Header.Set("Accept", "application/json")
	resp, err := c.client.Do(hreq)
	if err != nil {
		return nil, fmt.Errorf("http %s: %w", hreq.Method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp)
	}
	var t task
	if err := json.NewDecoder(resp.Body).Decode(&t); err != nil {
		return nil, fmt.Errorf("decode task: %w", err)
	}
	return &t, nil
}

func (c *CDS) download(ctx context.Context, location string) ([]byte, error) {
	u, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("parse location: %w", err)
	}
	if !u.IsAbs() {
		base, err := url.Parse(c.endpoint + "/")
		if err != nil {
			return nil, fmt.Errorf("parse endpoint: %w", err)
		}
		u = base.ResolveReference(u)
	}

	hreq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}
	resp, err := c.client.Do(hreq)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	return data, nil
}

func statusError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(b))
	if msg == "" {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, msg)
}
