package radarr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"marquee/internal/services"
)

// Movie is the subset of a Radarr movie record the engine cares about.
type Movie struct {
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	TMDBID  int64  `json:"tmdbId"`
	Year    int    `json:"year"`
	HasFile bool   `json:"hasFile"`
}

// Phase is the engine-facing classification of a movie's download state.
type Phase string

const (
	PhaseQueued      Phase = "queued"
	PhaseDownloading Phase = "downloading"
	PhaseCompleted   Phase = "completed"
	PhaseFailed      Phase = "failed"
	PhaseNotFound    Phase = "not_found"
)

// Status reports the current download state for one movie.
type Status struct {
	Phase   Phase
	Percent float64
	Reason  string
}

// AddRequest describes a movie to queue for download.
type AddRequest struct {
	TMDBID           int64
	Title            string
	Year             int
	QualityProfileID int64
	RootFolder       string
	SearchNow        bool
}

// Manager defines the download-manager operations used by the monitor and
// the agent.
type Manager interface {
	LookupByTMDBID(ctx context.Context, tmdbID int64) (*Movie, error)
	Add(ctx context.Context, req AddRequest) (*Movie, error)
	MovieStatus(ctx context.Context, movieID int64) (Status, error)
	TriggerSearch(ctx context.Context, movieID int64) error
}

// Client talks to the Radarr v3 API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

var _ Manager = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New creates a Radarr client.
func New(baseURL, apiKey string, timeout time.Duration, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, services.Wrap(services.ErrConfiguration, "radarr", "new", "base url required", nil)
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "radarr", "new", "api key required", nil)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// LookupByTMDBID finds the Radarr movie record tracking a TMDB id, if one
// exists.
func (c *Client) LookupByTMDBID(ctx context.Context, tmdbID int64) (*Movie, error) {
	if tmdbID <= 0 {
		return nil, errors.New("tmdb id must be positive")
	}
	endpoint := c.baseURL + "/api/v3/movie?tmdbId=" + strconv.FormatInt(tmdbID, 10)

	var movies []Movie
	if err := c.do(ctx, http.MethodGet, endpoint, nil, "lookup", &movies); err != nil {
		return nil, err
	}
	if len(movies) == 0 {
		return nil, services.Wrap(services.ErrNotFound, "radarr", "lookup",
			fmt.Sprintf("tmdb id %d not tracked", tmdbID), nil)
	}
	return &movies[0], nil
}

// Add queues a movie with Radarr. When SearchNow is set Radarr starts
// searching for a release immediately.
func (c *Client) Add(ctx context.Context, req AddRequest) (*Movie, error) {
	if req.TMDBID <= 0 {
		return nil, errors.New("tmdb id must be positive")
	}
	payload := map[string]any{
		"tmdbId":           req.TMDBID,
		"title":            req.Title,
		"year":             req.Year,
		"qualityProfileId": req.QualityProfileID,
		"rootFolderPath":   req.RootFolder,
		"monitored":        true,
		"addOptions": map[string]any{
			"searchForMovie": req.SearchNow,
		},
	}

	var movie Movie
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/api/v3/movie", payload, "add movie", &movie); err != nil {
		return nil, err
	}
	return &movie, nil
}

// queuePage models the paginated /api/v3/queue response.
type queuePage struct {
	Records []queueRecord `json:"records"`
}

type queueRecord struct {
	MovieID              int64   `json:"movieId"`
	Status               string  `json:"status"`
	TrackedDownloadState string  `json:"trackedDownloadState"`
	Size                 float64 `json:"size"`
	SizeLeft             float64 `json:"sizeleft"`
	ErrorMessage         string  `json:"errorMessage"`
}

// MovieStatus derives the movie's download phase from the Radarr queue and
// the movie record itself. A movie with a file is completed; a queue entry
// maps to queued, downloading, or failed; neither means Radarr lost track of
// it.
func (c *Client) MovieStatus(ctx context.Context, movieID int64) (Status, error) {
	if movieID <= 0 {
		return Status{}, errors.New("movie id must be positive")
	}

	var movie Movie
	endpoint := fmt.Sprintf("%s/api/v3/movie/%d", c.baseURL, movieID)
	if err := c.do(ctx, http.MethodGet, endpoint, nil, "movie status", &movie); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return Status{Phase: PhaseNotFound}, nil
		}
		return Status{}, err
	}
	if movie.HasFile {
		return Status{Phase: PhaseCompleted, Percent: 100}, nil
	}

	params := url.Values{}
	params.Set("movieId", strconv.FormatInt(movieID, 10))
	params.Set("pageSize", "50")
	var page queuePage
	if err := c.do(ctx, http.MethodGet, c.baseURL+"/api/v3/queue?"+params.Encode(), nil, "queue", &page); err != nil {
		return Status{}, err
	}

	for _, record := range page.Records {
		if record.MovieID != movieID {
			continue
		}
		switch {
		case record.Status == "failed" || record.TrackedDownloadState == "importFailed":
			reason := record.ErrorMessage
			if reason == "" {
				reason = "download failed"
			}
			return Status{Phase: PhaseFailed, Reason: reason}, nil
		case record.Status == "downloading" && record.Size > 0:
			percent := 100 * (record.Size - record.SizeLeft) / record.Size
			return Status{Phase: PhaseDownloading, Percent: percent}, nil
		case record.Status == "downloading":
			return Status{Phase: PhaseDownloading}, nil
		default:
			return Status{Phase: PhaseQueued}, nil
		}
	}

	// Not in the queue and no file yet: still waiting for a release.
	return Status{Phase: PhaseQueued}, nil
}

// TriggerSearch asks Radarr to search for releases of an already-tracked
// movie.
func (c *Client) TriggerSearch(ctx context.Context, movieID int64) error {
	if movieID <= 0 {
		return errors.New("movie id must be positive")
	}
	payload := map[string]any{
		"name":     "MoviesSearch",
		"movieIds": []int64{movieID},
	}
	return c.do(ctx, http.MethodPost, c.baseURL+"/api/v3/command", payload, "trigger search", nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload any, operation string, out any) error {
	var body *bytes.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode payload: %w", err)
		}
		body = bytes.NewReader(encoded)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return services.Wrap(services.ErrUnavailable, "radarr", operation,
			fmt.Sprintf("execute request (latency=%v)", latency), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return services.Wrap(services.ErrNotFound, "radarr", operation, "no match", nil)
	case resp.StatusCode >= 400:
		return services.Wrap(services.ErrUnavailable, "radarr", operation,
			fmt.Sprintf("returned %d (latency=%v)", resp.StatusCode, latency), nil)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode radarr response: %w", err)
	}
	return nil
}
