package requests

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"marquee/internal/config"
)

// Store manages request persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the request database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.DatabasePath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

const requestColumns = `tmdb_id, title, year, requesters, state, radarr_movie_id,
        release_date, progress_percent, last_error, created_at, updated_at, revision`

// Create inserts a new request. It returns ErrExists when a row for the TMDB
// id is already present, which callers treat as "attach to the existing
// request" rather than a failure.
func (s *Store) Create(ctx context.Context, req *Request) (*Request, error) {
	if req == nil {
		return nil, fmt.Errorf("create request: nil request")
	}
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	requesters, err := json.Marshal(req.Requesters)
	if err != nil {
		return nil, fmt.Errorf("marshal requesters: %w", err)
	}

	state := req.State
	if state == "" {
		state = StatePendingLookup
	}

	res, err := s.db.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO requests (
            tmdb_id, title, year, requesters, state, radarr_movie_id,
            release_date, progress_percent, last_error, created_at, updated_at, revision
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		req.TMDBID,
		req.Title,
		req.Year,
		string(requesters),
		string(state),
		req.RadarrMovieID,
		nullableTime(req.ReleaseDate),
		req.ProgressPercent,
		nullableString(req.LastError),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert request: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, ErrExists
	}

	return s.Get(ctx, req.TMDBID)
}

// Get loads a single request, including its notification markers.
func (s *Store) Get(ctx context.Context, tmdbID int64) (*Request, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+requestColumns+` FROM requests WHERE tmdb_id = ?`, tmdbID)
	req, err := scanRequest(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get request %d: %w", tmdbID, err)
	}

	if err := s.loadMarkers(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// Update persists the request with an optimistic-concurrency check on the
// revision column. On success the stored revision is bumped and the in-memory
// record is refreshed to match. ErrConflict means another writer got there
// first; re-read and replay.
func (s *Store) Update(ctx context.Context, req *Request) error {
	if req == nil {
		return fmt.Errorf("update request: nil request")
	}
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	requesters, err := json.Marshal(req.Requesters)
	if err != nil {
		return fmt.Errorf("marshal requesters: %w", err)
	}

	res, err := s.db.ExecContext(
		ctx,
		`UPDATE requests SET
            title = ?, year = ?, requesters = ?, state = ?, radarr_movie_id = ?,
            release_date = ?, progress_percent = ?, last_error = ?, updated_at = ?,
            revision = revision + 1
        WHERE tmdb_id = ? AND revision = ?`,
		req.Title,
		req.Year,
		string(requesters),
		string(req.State),
		req.RadarrMovieID,
		nullableTime(req.ReleaseDate),
		req.ProgressPercent,
		nullableString(req.LastError),
		timestamp,
		req.TMDBID,
		req.Revision,
	)
	if err != nil {
		return fmt.Errorf("update request %d: %w", req.TMDBID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		var exists int
		if scanErr := s.db.QueryRowContext(ctx,
			"SELECT COUNT(1) FROM requests WHERE tmdb_id = ?", req.TMDBID).Scan(&exists); scanErr != nil {
			return fmt.Errorf("check request %d: %w", req.TMDBID, scanErr)
		}
		if exists == 0 {
			return ErrNotFound
		}
		return ErrConflict
	}

	req.Revision++
	req.UpdatedAt = now
	return nil
}

// List returns requests in the given states ordered by creation time. With no
// states it returns everything.
func (s *Store) List(ctx context.Context, states ...State) ([]*Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests`
	args := make([]any, 0, len(states))
	if len(states) > 0 {
		query += ` WHERE state IN (` + makePlaceholders(len(states)) + `)`
		for _, state := range states {
			args = append(args, string(state))
		}
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	defer rows.Close()

	var result []*Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		result = append(result, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate requests: %w", err)
	}

	for _, req := range result {
		if err := s.loadMarkers(ctx, req); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// Active returns requests still moving through the lifecycle.
func (s *Store) Active(ctx context.Context) ([]*Request, error) {
	return s.List(ctx, ActiveStates()...)
}

// Summary reports request counts per state.
func (s *Store) Summary(ctx context.Context) (Summary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(1) FROM requests GROUP BY state`)
	if err != nil {
		return Summary{}, fmt.Errorf("summarize requests: %w", err)
	}
	defer rows.Close()

	var summary Summary
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return Summary{}, fmt.Errorf("scan summary: %w", err)
		}
		summary.Total += count
		switch State(state) {
		case StatePendingLookup:
			summary.Pending = count
		case StateNotYetReleased:
			summary.Unreleased = count
		case StateQueued:
			summary.Queued = count
		case StateDownloading:
			summary.Downloading = count
		case StateCompleted:
			summary.Completed = count
		case StateFailed:
			summary.Failed = count
		}
	}
	if err := rows.Err(); err != nil {
		return Summary{}, fmt.Errorf("iterate summary: %w", err)
	}
	return summary, nil
}

// ClaimNotification records intent to send a notification for (tmdb_id,
// state, phone). It returns true when this caller won the claim and must
// send; false when the marker already exists and the message has been (or is
// being) sent elsewhere. Markers are never released, so a send failure after
// a claim stays unsent rather than risking a duplicate.
func (s *Store) ClaimNotification(ctx context.Context, tmdbID int64, state State, phone string) (bool, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO notified (tmdb_id, state, phone, claimed_at) VALUES (?, ?, ?, ?)`,
		tmdbID, string(state), phone, timestamp)
	if err != nil {
		return false, fmt.Errorf("claim notification: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// AppendMessage records one turn of a phone number's conversation.
func (s *Store) AppendMessage(ctx context.Context, phone, role, body string) error {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (phone, role, body, created_at) VALUES (?, ?, ?, ?)`,
		phone, role, body, timestamp)
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// History returns the most recent limit messages for a phone number in
// chronological order.
func (s *Store) History(ctx context.Context, phone string, limit int) ([]Message, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, body, created_at FROM conversations
         WHERE phone = ? ORDER BY id DESC LIMIT ?`, phone, limit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var msg Message
		var created string
		if err := rows.Scan(&msg.Role, &msg.Body, &created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.CreatedAt, err = parseTime(created)
		if err != nil {
			return nil, fmt.Errorf("message created_at: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (s *Store) loadMarkers(ctx context.Context, req *Request) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT state, phone FROM notified WHERE tmdb_id = ?`, req.TMDBID)
	if err != nil {
		return fmt.Errorf("load markers: %w", err)
	}
	defer rows.Close()

	req.Notified = make(map[string]struct{})
	for rows.Next() {
		var state, phone string
		if err := rows.Scan(&state, &phone); err != nil {
			return fmt.Errorf("scan marker: %w", err)
		}
		req.Notified[MarkerKey(State(state), phone)] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate markers: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*Request, error) {
	var (
		req         Request
		requesters  string
		state       string
		releaseDate sql.NullString
		lastError   sql.NullString
		createdAt   string
		updatedAt   string
	)
	if err := row.Scan(
		&req.TMDBID,
		&req.Title,
		&req.Year,
		&requesters,
		&state,
		&req.RadarrMovieID,
		&releaseDate,
		&req.ProgressPercent,
		&lastError,
		&createdAt,
		&updatedAt,
		&req.Revision,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(requesters), &req.Requesters); err != nil {
		return nil, fmt.Errorf("decode requesters: %w", err)
	}
	req.State = State(state)
	if releaseDate.Valid && releaseDate.String != "" {
		parsed, err := parseTime(releaseDate.String)
		if err != nil {
			return nil, fmt.Errorf("release_date: %w", err)
		}
		req.ReleaseDate = &parsed
	}
	req.LastError = lastError.String
	created, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("created_at: %w", err)
	}
	req.CreatedAt = created
	updated, err := parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("updated_at: %w", err)
	}
	req.UpdatedAt = updated
	return &req, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil || value.IsZero() {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	if parsed, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return parsed, nil
	}
	if parsed, err := time.Parse("2006-01-02", value); err == nil {
		return parsed, nil
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", count), ", ")
}
