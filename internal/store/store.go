// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists finished analyses and their drug results in SQLite
// so past reports can be listed and re-rendered without re-running the
// pipeline.
package store

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

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/protocol-analyzer/pkg/types"
)

const (
	defaultPath    = "data/analysis.db"
	defaultPerPage = 10

	// timeLayout is fixed-width so created_at sorts correctly as text.
	timeLayout = "2006-01-02T15:04:05.000000000Z"
)

// ErrNotFound is returned by Get for an unknown analysis ID.
var ErrNotFound = errors.New("analysis not found")

// Store manages the analysis history database.
type Store struct {
	db      *sql.DB
	perPage int
}

// Summary is one row of the history listing.
type Summary struct {
	ID             string    `json:"id" yaml:"id"`
	Filename       string    `json:"filename" yaml:"filename"`
	DiseaseContext string    `json:"disease_context" yaml:"disease_context"`
	CreatedAt      time.Time `json:"created_at" yaml:"created_at"`
	Drugs          int       `json:"drugs" yaml:"drugs"`
}

// New opens or creates the database at cfg.Path and creates the schema if it
// does not exist.
func New(cfg types.StoreConfig) (*Store, error) {
	path := cfg.Path
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	perPage := cfg.PerPage
	if perPage <= 0 {
		perPage = defaultPerPage
	}

	s := &Store{db: db, perPage: perPage}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS analyses (
			id TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			disease_context TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS drug_results (
			analysis_id TEXT NOT NULL REFERENCES analyses(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			inn_protocol TEXT NOT NULL,
			usage_protocol TEXT,
			loe_protocol TEXT,
			parsed_dosage TEXT,
			parsed_units TEXT,
			parsed_frequency TEXT,
			parsed_route_raw TEXT,
			normalized_route TEXT,
			inn_english TEXT,
			brief_description TEXT,
			pubmed_links TEXT,
			fda_status TEXT,
			ema_status TEXT,
			who_eml_status TEXT,
			system_loe TEXT,
			failures TEXT,
			PRIMARY KEY (analysis_id, position)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Save writes the analysis and all its results in one transaction. Saving an
// ID that already exists replaces its results.
func (s *Store) Save(ctx context.Context, a *types.Analysis) error {
	if a.ID == "" {
		return errors.New("saving analysis: empty ID")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO analyses (id, filename, disease_context, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			filename=excluded.filename, disease_context=excluded.disease_context,
			created_at=excluded.created_at`,
		a.ID, a.Filename, a.DiseaseContext, a.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("upserting analysis: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM drug_results WHERE analysis_id = ?`, a.ID); err != nil {
		return fmt.Errorf("deleting old results: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO drug_results (analysis_id, position, inn_protocol, usage_protocol, loe_protocol,
			parsed_dosage, parsed_units, parsed_frequency, parsed_route_raw, normalized_route,
			inn_english, brief_description, pubmed_links, fda_status, ema_status, who_eml_status,
			system_loe, failures)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range a.Results {
		failuresJSON := ""
		if len(r.Failures) > 0 {
			b, _ := json.Marshal(r.Failures)
			failuresJSON = string(b)
		}
		_, err := stmt.ExecContext(ctx,
			a.ID, i, r.INNProtocol, r.UsageProtocol, r.LOEProtocol,
			r.ParsedDosage, r.ParsedUnits, r.ParsedFrequency, r.ParsedRouteRaw, r.NormalizedRoute,
			r.INNEnglish, r.BriefDescription, strings.Join(r.PubMedLinks, "\n"),
			string(r.FDAStatus), string(r.EMAStatus), string(r.WHOEMLStatus),
			r.SystemLOE, failuresJSON,
		)
		if err != nil {
			return fmt.Errorf("inserting result %d (%s): %w", i, r.INNProtocol, err)
		}
	}

	return tx.Commit()
}

// List returns one page of analyses, newest first. Pages start at 1; a
// non-positive perPage uses the configured default.
func (s *Store) List(ctx context.Context, page, perPage int) ([]Summary, error) {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = s.perPage
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id, a.filename, COALESCE(a.disease_context, ''), a.created_at,
			(SELECT count(*) FROM drug_results d WHERE d.analysis_id = a.id)
		 FROM analyses a
		 ORDER BY a.created_at DESC, a.rowid DESC
		 LIMIT ? OFFSET ?`,
		perPage, (page-1)*perPage,
	)
	if err != nil {
		return nil, fmt.Errorf("listing analyses: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		var created string
		if err := rows.Scan(&sum.ID, &sum.Filename, &sum.DiseaseContext, &created, &sum.Drugs); err != nil {
			return nil, fmt.Errorf("scanning analysis: %w", err)
		}
		if sum.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Count returns the number of stored analyses.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM analyses`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting analyses: %w", err)
	}
	return n, nil
}

// Get returns the analysis with id and its results in extraction order.
func (s *Store) Get(ctx context.Context, id string) (*types.Analysis, error) {
	a := &types.Analysis{ID: id}
	var created string
	err := s.db.QueryRowContext(ctx,
		`SELECT filename, COALESCE(disease_context, ''), created_at FROM analyses WHERE id = ?`, id,
	).Scan(&a.Filename, &a.DiseaseContext, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading analysis %s: %w", id, err)
	}
	if a.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT inn_protocol, usage_protocol, loe_protocol,
			parsed_dosage, parsed_units, parsed_frequency, parsed_route_raw, normalized_route,
			inn_english, brief_description, pubmed_links, fda_status, ema_status, who_eml_status,
			system_loe, failures
		 FROM drug_results WHERE analysis_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("loading results for %s: %w", id, err)
	}
	defer rows.Close()

	a.Results = []types.EnrichedDrugRecord{}
	for rows.Next() {
		var r types.EnrichedDrugRecord
		var links, fda, ema, who, failures string
		if err := rows.Scan(
			&r.INNProtocol, &r.UsageProtocol, &r.LOEProtocol,
			&r.ParsedDosage, &r.ParsedUnits, &r.ParsedFrequency, &r.ParsedRouteRaw, &r.NormalizedRoute,
			&r.INNEnglish, &r.BriefDescription, &links, &fda, &ema, &who,
			&r.SystemLOE, &failures,
		); err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		r.PubMedLinks = splitLinks(links)
		r.FDAStatus = types.RegistryStatus(fda)
		r.EMAStatus = types.RegistryStatus(ema)
		r.WHOEMLStatus = types.RegistryStatus(who)
		if failures != "" {
			if err := json.Unmarshal([]byte(failures), &r.Failures); err != nil {
				return nil, fmt.Errorf("decoding failures for %s: %w", r.INNProtocol, err)
			}
		}
		a.Results = append(a.Results, r)
	}
	return a, rows.Err()
}

func splitLinks(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, "\n")
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}
