package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"marquee/internal/identify"
	"marquee/internal/logging"
	"marquee/internal/requests"
	"marquee/internal/services"
	"marquee/internal/services/llm"
	"marquee/internal/services/tmdb"
)

// Deps carries the collaborators the built-in actions run against.
type Deps struct {
	Store  *requests.Store
	TMDB   tmdb.Searcher
	Logger *slog.Logger

	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// DefaultRegistry builds the action set the oracle can choose from.
func DefaultRegistry(deps Deps) *Registry {
	if deps.Logger == nil {
		deps.Logger = logging.NewNop()
	}
	return NewRegistry(
		resolveMovieAction(deps),
		requestDownloadAction(deps),
		checkRequestAction(deps),
	)
}

type resolveMovieArgs struct {
	Title string `json:"title"`
	Year  int    `json:"year"`
}

type resolveMovieResult struct {
	Found       bool   `json:"found"`
	TMDBID      int64  `json:"tmdb_id,omitempty"`
	Title       string `json:"title,omitempty"`
	Year        int    `json:"year,omitempty"`
	ReleaseDate string `json:"release_date,omitempty"`
	Released    bool   `json:"released,omitempty"`
	Note        string `json:"note,omitempty"`
}

func resolveMovieAction(deps Deps) Action {
	return Action{
		Name:        "resolve_movie",
		Description: "Look up a movie by title (and optional year) and return its metadata identifier, release year, and whether it is released yet. Call this before requesting a download.",
		Parameters: json.RawMessage(`{
            "type": "object",
            "properties": {
                "title": {"type": "string", "description": "The movie title as the user said it"},
                "year": {"type": "integer", "description": "Release year if the user mentioned one"}
            },
            "required": ["title"]
        }`),
		Handle: func(ctx context.Context, raw json.RawMessage) (string, error) {
			var args resolveMovieArgs
			if err := decodeArgs(raw, &args); err != nil {
				return "", err
			}
			title := identify.NormalizeTitle(args.Title)
			if title == "" {
				return "", services.Wrap(services.ErrValidation, "agent", "resolve_movie", "title is required", nil)
			}

			response, err := deps.TMDB.SearchMovie(ctx, title, tmdb.SearchOptions{Year: args.Year})
			if err != nil {
				return "", err
			}
			best := identify.SelectBest(deps.Logger, title, args.Year, response)
			if best == nil {
				return encodeResult(resolveMovieResult{Found: false, Note: "no confident match for that title"})
			}

			// The search payload omits release status, so confirm with a
			// details call when available.
			released := best.Released(deps.now())
			if details, detailErr := deps.TMDB.MovieDetails(ctx, best.ID); detailErr == nil && details != nil {
				best = details
				released = details.Released(deps.now())
			}

			return encodeResult(resolveMovieResult{
				Found:       true,
				TMDBID:      best.ID,
				Title:       best.Title,
				Year:        best.Year(),
				ReleaseDate: best.ReleaseDate,
				Released:    released,
			})
		},
	}
}

type requestDownloadArgs struct {
	TMDBID int64  `json:"tmdb_id"`
	Title  string `json:"title"`
	Year   int    `json:"year"`
}

type requestStatusResult struct {
	TMDBID   int64   `json:"tmdb_id"`
	Title    string  `json:"title"`
	State    string  `json:"state"`
	Progress float64 `json:"progress_percent,omitempty"`
	Note     string  `json:"note,omitempty"`
}

func requestDownloadAction(deps Deps) Action {
	return Action{
		Name:        "request_download",
		Description: "Start tracking a movie download for the current user. Requires the tmdb_id from resolve_movie. Safe to call for a movie someone else already requested.",
		Parameters: json.RawMessage(`{
            "type": "object",
            "properties": {
                "tmdb_id": {"type": "integer", "description": "TMDB identifier from resolve_movie"},
                "title": {"type": "string", "description": "Movie title from resolve_movie"},
                "year": {"type": "integer", "description": "Release year from resolve_movie"}
            },
            "required": ["tmdb_id", "title"]
        }`),
		Handle: func(ctx context.Context, raw json.RawMessage) (string, error) {
			var args requestDownloadArgs
			if err := decodeArgs(raw, &args); err != nil {
				return "", err
			}
			if args.TMDBID <= 0 {
				return "", services.Wrap(services.ErrValidation, "agent", "request_download", "tmdb_id is required", nil)
			}
			if strings.TrimSpace(args.Title) == "" {
				return "", services.Wrap(services.ErrValidation, "agent", "request_download", "title is required", nil)
			}
			phone, ok := services.PhoneFromContext(ctx)
			if !ok {
				return "", errors.New("request_download: no requester phone on context")
			}

			rec, err := createOrAttach(ctx, deps.Store, args, phone)
			if err != nil {
				return "", err
			}

			// A terminal record means the movie was already handled; report
			// its status instead of restarting anything.
			note := "tracking the download, the user will be texted as it progresses"
			if rec.State == requests.StateCompleted {
				note = "this movie already finished downloading and is available"
			}
			return encodeResult(requestStatusResult{
				TMDBID:   rec.TMDBID,
				Title:    rec.DisplayTitle(),
				State:    string(rec.State),
				Progress: rec.ProgressPercent,
				Note:     note,
			})
		},
	}
}

// createOrAttach records the requester against a new or existing request.
// Both paths race with the monitor and other conversations, so writes retry
// on conflict by re-reading and replaying.
func createOrAttach(ctx context.Context, store *requests.Store, args requestDownloadArgs, phone string) (*requests.Request, error) {
	for {
		rec, err := store.Get(ctx, args.TMDBID)
		if errors.Is(err, requests.ErrNotFound) {
			created, createErr := store.Create(ctx, &requests.Request{
				TMDBID:     args.TMDBID,
				Title:      args.Title,
				Year:       args.Year,
				Requesters: []string{phone},
				State:      requests.StatePendingLookup,
			})
			if errors.Is(createErr, requests.ErrExists) {
				continue
			}
			if createErr != nil {
				return nil, createErr
			}
			return created, nil
		}
		if err != nil {
			return nil, err
		}

		if !rec.AddRequester(phone) {
			return rec, nil
		}
		if err := store.Update(ctx, rec); err != nil {
			if errors.Is(err, requests.ErrConflict) {
				continue
			}
			return nil, err
		}
		return rec, nil
	}
}

type checkRequestArgs struct {
	TMDBID int64 `json:"tmdb_id"`
}

func checkRequestAction(deps Deps) Action {
	return Action{
		Name:        "check_request",
		Description: "Check the current status of a tracked movie download by tmdb_id.",
		Parameters: json.RawMessage(`{
            "type": "object",
            "properties": {
                "tmdb_id": {"type": "integer", "description": "TMDB identifier of the movie"}
            },
            "required": ["tmdb_id"]
        }`),
		Handle: func(ctx context.Context, raw json.RawMessage) (string, error) {
			var args checkRequestArgs
			if err := decodeArgs(raw, &args); err != nil {
				return "", err
			}
			if args.TMDBID <= 0 {
				return "", services.Wrap(services.ErrValidation, "agent", "check_request", "tmdb_id is required", nil)
			}

			rec, err := deps.Store.Get(ctx, args.TMDBID)
			if errors.Is(err, requests.ErrNotFound) {
				return encodeResult(requestStatusResult{
					TMDBID: args.TMDBID,
					Note:   "this movie is not being tracked",
				})
			}
			if err != nil {
				return "", err
			}
			result := requestStatusResult{
				TMDBID:   rec.TMDBID,
				Title:    rec.DisplayTitle(),
				State:    string(rec.State),
				Progress: rec.ProgressPercent,
			}
			if rec.State == requests.StateFailed && rec.LastError != "" {
				result.Note = "failed: " + rec.LastError
			}
			if rec.State == requests.StateNotYetReleased && rec.ReleaseDate != nil {
				result.Note = "not released until " + rec.ReleaseDate.Format("2006-01-02")
			}
			return encodeResult(result)
		},
	}
}

func decodeArgs(raw json.RawMessage, target any) error {
	if err := llm.DecodeArguments(string(raw), target); err != nil {
		return services.Wrap(services.ErrValidation, "agent", "arguments", err.Error(), nil)
	}
	return nil
}

func encodeResult(result any) (string, error) {
	encoded, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("encode action result: %w", err)
	}
	return string(encoded), nil
}
