// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package registry persists Source records in SQLite. The unique index on url
// is the final guard of the one-row-per-URL invariant; lookups by URL are the
// dedup gate every fetch path goes through.
package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/pdiddy/rivalry-research/pkg/types"
)

// timeLayout is fixed width so that text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned when a source id does not exist.
var ErrNotFound = errors.New("source not found")

// DuplicateSourceError reports an insert that lost the unique url race.
type DuplicateSourceError struct {
	URL      string
	SourceID string
}

func (e *DuplicateSourceError) Error() string {
	return fmt.Sprintf("source already registered for url %s (id %s)", e.URL, e.SourceID)
}

// Store manages the sources database.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for recoverable row warnings.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Open opens or creates the database at path and creates the schema if it
// does not exist. All access goes through a single pooled connection, which
// serializes writers from concurrent fetch tasks.
func Open(path string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating database directory: %w", types.ErrStorageUnavailable, err)
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %w", types.ErrStorageUnavailable, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: connecting to %s: %w", types.ErrStorageUnavailable, path, err)
	}

	s := &Store{db: db, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: creating schema: %w", types.ErrStorageUnavailable, err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sources (
			source_id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			title TEXT NOT NULL,
			authors TEXT,
			publication TEXT,
			publication_date TEXT,
			url TEXT NOT NULL,
			doi TEXT,
			isbn TEXT,
			retrieved_at TEXT NOT NULL,
			credibility_score REAL NOT NULL,
			is_primary_source INTEGER NOT NULL DEFAULT 0,
			stored_content_path TEXT,
			content_hash TEXT,
			is_manual INTEGER NOT NULL DEFAULT 0,
			details TEXT,
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_sources_url ON sources(url)`,
		`CREATE INDEX IF NOT EXISTS idx_sources_hash ON sources(content_hash)`,
		`CREATE TABLE IF NOT EXISTS source_entities (
			source_id TEXT NOT NULL REFERENCES sources(source_id),
			entity_id TEXT NOT NULL,
			PRIMARY KEY (source_id, entity_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_source_entities_entity ON source_entities(entity_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

const sourceColumns = `source_id, type, title, authors, publication, publication_date,
	url, doi, isbn, retrieved_at, credibility_score, is_primary_source,
	stored_content_path, content_hash, is_manual, details`

// GetByURL returns the source registered for url, or nil when there is none.
func (s *Store) GetByURL(ctx context.Context, url string) (*types.Source, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sourceColumns+` FROM sources WHERE url = ?`, url)
	src, err := s.scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: looking up url %s: %w", types.ErrStorageUnavailable, url, err)
	}
	return &src, nil
}

// GetByID returns the source with id, or ErrNotFound.
func (s *Store) GetByID(ctx context.Context, id string) (types.Source, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sourceColumns+` FROM sources WHERE source_id = ?`, id)
	src, err := s.scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Source{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return types.Source{}, fmt.Errorf("%w: looking up %s: %w", types.ErrStorageUnavailable, id, err)
	}
	return src, nil
}

// GetByIDs returns the sources among ids that exist, keyed by source id.
func (s *Store) GetByIDs(ctx context.Context, ids []string) (map[string]types.Source, error) {
	out := make(map[string]types.Source, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE source_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: querying sources: %w", types.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		src, err := s.scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning source: %w", types.ErrStorageUnavailable, err)
		}
		out[src.SourceID] = src
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating sources: %w", types.ErrStorageUnavailable, err)
	}
	return out, nil
}

// Insert adds a new source. It fails with *DuplicateSourceError when the url
// is already registered; callers normally check GetByURL first, so this
// failure only shows up when two writers race.
func (s *Store) Insert(ctx context.Context, src types.Source) (types.Source, error) {
	src = normalize(src)
	args, err := insertArgs(src)
	if err != nil {
		return types.Source{}, err
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO sources (`+sourceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return types.Source{}, &DuplicateSourceError{URL: src.URL, SourceID: src.SourceID}
		}
		return types.Source{}, fmt.Errorf("%w: inserting source %s: %w", types.ErrStorageUnavailable, src.SourceID, err)
	}
	return src, nil
}

// InsertOrGet inserts src unless its url is already registered, and returns
// the stored record either way. The check and the insert run in a single
// transaction guarded by the unique index. created reports whether this call
// inserted the row.
func (s *Store) InsertOrGet(ctx context.Context, src types.Source) (stored types.Source, created bool, err error) {
	args, err := insertArgs(normalize(src))
	if err != nil {
		return types.Source{}, false, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Source{}, false, fmt.Errorf("%w: beginning transaction: %w", types.ErrStorageUnavailable, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `INSERT INTO sources (`+sourceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`, args...)
	if err != nil {
		return types.Source{}, false, fmt.Errorf("%w: inserting source %s: %w", types.ErrStorageUnavailable, src.SourceID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return types.Source{}, false, fmt.Errorf("%w: reading insert result: %w", types.ErrStorageUnavailable, err)
	}

	row := tx.QueryRowContext(ctx, `SELECT `+sourceColumns+` FROM sources WHERE url = ?`, src.URL)
	stored, err = s.scanSource(row)
	if err != nil {
		return types.Source{}, false, fmt.Errorf("%w: reading back %s: %w", types.ErrStorageUnavailable, src.URL, err)
	}

	if err := tx.Commit(); err != nil {
		return types.Source{}, false, fmt.Errorf("%w: committing insert: %w", types.ErrStorageUnavailable, err)
	}
	return stored, n == 1, nil
}

// UpdateContentMetadata records where a source's content lives and its hash.
// It is the only mutation allowed after insertion.
func (s *Store) UpdateContentMetadata(ctx context.Context, sourceID, contentPath, contentHash string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sources SET stored_content_path = ?, content_hash = ? WHERE source_id = ?`,
		nullIfEmpty(contentPath), nullIfEmpty(contentHash), sourceID)
	if err != nil {
		return fmt.Errorf("%w: updating content metadata for %s: %w", types.ErrStorageUnavailable, sourceID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: reading update result: %w", types.ErrStorageUnavailable, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", sourceID, ErrNotFound)
	}
	return nil
}

// LinkEntity records that sourceID was collected for entityID. Linking twice
// is a no-op.
func (s *Store) LinkEntity(ctx context.Context, sourceID, entityID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO source_entities (source_id, entity_id) VALUES (?, ?) ON CONFLICT DO NOTHING`,
		sourceID, entityID)
	if err != nil {
		return fmt.Errorf("%w: linking %s to %s: %w", types.ErrStorageUnavailable, sourceID, entityID, err)
	}
	return nil
}

// ListByEntity returns the sources linked to entityID, most credible first,
// then by retrieval time, then by id.
func (s *Store) ListByEntity(ctx context.Context, entityID string) ([]types.Source, error) {
	return s.query(ctx,
		`SELECT `+prefixed("s.", sourceColumns)+`
		FROM sources s
		JOIN source_entities se ON se.source_id = s.source_id
		WHERE se.entity_id = ?
		ORDER BY s.credibility_score DESC, s.retrieved_at ASC, s.source_id ASC`, entityID)
}

// List returns every registered source in catalog order.
func (s *Store) List(ctx context.Context) ([]types.Source, error) {
	return s.query(ctx,
		`SELECT `+sourceColumns+` FROM sources
		ORDER BY credibility_score DESC, retrieved_at ASC, source_id ASC`)
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]types.Source, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: querying sources: %w", types.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var out []types.Source
	for rows.Next() {
		src, err := s.scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning source: %w", types.ErrStorageUnavailable, err)
		}
		out = append(out, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating sources: %w", types.ErrStorageUnavailable, err)
	}
	return out, nil
}

// Stats holds registry counts.
type Stats struct {
	Total     int                          `json:"total_sources" yaml:"total_sources"`
	ByType    map[types.SourceCategory]int `json:"by_type" yaml:"by_type"`
	Primary   int                          `json:"primary_sources" yaml:"primary_sources"`
	Secondary int                          `json:"secondary_sources" yaml:"secondary_sources"`
	Manual    int                          `json:"manual_sources" yaml:"manual_sources"`
	Auto      int                          `json:"auto_sources" yaml:"auto_sources"`
}

// Stats counts registered sources.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	st := Stats{ByType: map[types.SourceCategory]int{}}

	err := s.db.QueryRowContext(ctx,
		`SELECT count(*), COALESCE(SUM(is_primary_source), 0), COALESCE(SUM(is_manual), 0) FROM sources`,
	).Scan(&st.Total, &st.Primary, &st.Manual)
	if err != nil {
		return Stats{}, fmt.Errorf("%w: counting sources: %w", types.ErrStorageUnavailable, err)
	}
	st.Secondary = st.Total - st.Primary
	st.Auto = st.Total - st.Manual

	rows, err := s.db.QueryContext(ctx, `SELECT type, count(*) FROM sources GROUP BY type`)
	if err != nil {
		return Stats{}, fmt.Errorf("%w: counting by type: %w", types.ErrStorageUnavailable, err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			typ   string
			count int
		)
		if err := rows.Scan(&typ, &count); err != nil {
			return Stats{}, fmt.Errorf("%w: scanning counts: %w", types.ErrStorageUnavailable, err)
		}
		st.ByType[types.SourceCategory(typ)] = count
	}
	if err := rows.Err(); err != nil {
		return Stats{}, fmt.Errorf("%w: iterating counts: %w", types.ErrStorageUnavailable, err)
	}
	return st, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanSource reads one row. A row whose type or details cannot be decoded is
// still returned as metadata; the problem is logged.
func (s *Store) scanSource(r rowScanner) (types.Source, error) {
	var (
		src                                   types.Source
		typ, retrievedAt                      string
		authors, publication, publicationDate sql.NullString
		doi, isbn, contentPath, contentHash   sql.NullString
		details                               sql.NullString
		primary, manual                       bool
	)
	err := r.Scan(&src.SourceID, &typ, &src.Title, &authors, &publication, &publicationDate,
		&src.URL, &doi, &isbn, &retrievedAt, &src.CredibilityScore, &primary,
		&contentPath, &contentHash, &manual, &details)
	if err != nil {
		return types.Source{}, err
	}

	src.Publication = publication.String
	src.PublicationDate = publicationDate.String
	src.DOI = doi.String
	src.ISBN = isbn.String
	src.StoredContentPath = contentPath.String
	src.ContentHash = contentHash.String
	src.IsPrimarySource = primary
	src.IsManual = manual

	if cat, err := types.ParseSourceCategory(typ); err == nil {
		src.Type = cat
	} else {
		src.Type = types.SourceCategory(typ)
		s.logger.Warn().Str("source_id", src.SourceID).Err(err).Msg("registry row has unknown type")
	}

	if authors.Valid && authors.String != "" {
		if err := json.Unmarshal([]byte(authors.String), &src.Authors); err != nil {
			s.logger.Warn().Str("source_id", src.SourceID).Err(err).Msg("registry row has unreadable authors")
		}
	}

	if t, err := time.Parse(timeLayout, retrievedAt); err == nil {
		src.RetrievedAt = t
	} else if t, err := time.Parse(time.RFC3339Nano, retrievedAt); err == nil {
		src.RetrievedAt = t
	}

	if details.Valid && details.String != "" {
		d, err := types.UnmarshalDetails([]byte(details.String))
		if err != nil {
			s.logger.Warn().
				Str("source_id", src.SourceID).
				Err(fmt.Errorf("%w: %w", types.ErrMalformedExistingRecord, err)).
				Msg("registry row details unreadable, using metadata only")
		} else {
			src.Details = d
		}
	}
	return src, nil
}

// insertArgs validates src and returns the column values for an insert.
func insertArgs(src types.Source) ([]any, error) {
	if src.URL == "" {
		return nil, fmt.Errorf("source has no url")
	}
	if want := types.SourceID(src.URL); src.SourceID != want {
		return nil, fmt.Errorf("source id %q does not match url %s (want %q)", src.SourceID, src.URL, want)
	}
	if _, err := types.ParseSourceCategory(string(src.Type)); err != nil {
		return nil, err
	}
	if src.CredibilityScore < 0 || src.CredibilityScore > 1 {
		return nil, fmt.Errorf("credibility score %v out of range", src.CredibilityScore)
	}
	if src.Details != nil && src.Details.Category() != src.Type {
		return nil, fmt.Errorf("details kind %s does not match source type %s", src.Details.Category(), src.Type)
	}

	authorsJSON, err := json.Marshal(src.Authors)
	if err != nil {
		return nil, fmt.Errorf("marshaling authors: %w", err)
	}

	var details any
	if src.Details != nil {
		raw, err := types.MarshalDetails(src.Details)
		if err != nil {
			return nil, err
		}
		details = string(raw)
	}

	return []any{
		src.SourceID, string(src.Type), src.Title, string(authorsJSON),
		nullIfEmpty(src.Publication), nullIfEmpty(src.PublicationDate),
		src.URL, nullIfEmpty(src.DOI), nullIfEmpty(src.ISBN),
		src.RetrievedAt.UTC().Format(timeLayout), src.CredibilityScore, src.IsPrimarySource,
		nullIfEmpty(src.StoredContentPath), nullIfEmpty(src.ContentHash),
		src.IsManual, details,
	}, nil
}

// normalize applies the same time rounding a round trip through the
// database would, so Insert returns what GetByURL later reads.
func normalize(src types.Source) types.Source {
	if src.RetrievedAt.IsZero() {
		src.RetrievedAt = time.Now()
	}
	src.RetrievedAt = src.RetrievedAt.UTC()
	return src
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func prefixed(prefix, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = prefix + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
