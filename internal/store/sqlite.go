package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("store: not found")

// Company is a persisted company record. Raw holds the source record as
// returned by a scraper; the orchestration layer passes it around opaquely.
type Company struct {
	ID        int64          `json:"id"`
	Name      string         `json:"name"`
	Location  string         `json:"location"`
	Vertical  string         `json:"vertical"`
	Source    string         `json:"source"`
	Raw       map[string]any `json:"raw"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Score is a persisted scoring outcome for a company.
type Score struct {
	ID        int64          `json:"id"`
	CompanyID int64          `json:"company_id"`
	Value     float64        `json:"value"`
	Qualified bool           `json:"qualified"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"created_at"`
}

// SQLiteStore persists companies and scores in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the database at path and ensures the schema.
func NewSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init(ctx context.Context) error {
	ddl := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA foreign_keys=ON;`,
		`CREATE TABLE IF NOT EXISTS companies (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			location TEXT,
			vertical TEXT,
			source TEXT,
			raw_json TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_companies_name ON companies(name);`,
		`CREATE TABLE IF NOT EXISTS scores (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			company_id INTEGER NOT NULL,
			value REAL NOT NULL,
			qualified INTEGER NOT NULL,
			detail_json TEXT,
			created_at TEXT NOT NULL,
			FOREIGN KEY(company_id) REFERENCES companies(id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_scores_company_id ON scores(company_id);`,
	}
	for _, stmt := range ddl {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// CreateCompany inserts a company and returns it with ID and timestamps set.
func (s *SQLiteStore) CreateCompany(ctx context.Context, company Company) (Company, error) {
	raw, err := json.Marshal(company.Raw)
	if err != nil {
		return Company{}, fmt.Errorf("marshal raw record: %w", err)
	}
	now := time.Now().UTC()

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO companies (name, location, vertical, source, raw_json, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		company.Name, company.Location, company.Vertical, company.Source,
		string(raw), now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Company{}, fmt.Errorf("insert company: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return Company{}, fmt.Errorf("company id: %w", err)
	}

	company.ID = id
	company.CreatedAt = now
	company.UpdatedAt = now
	return company, nil
}

// FindCompany returns the company with the given id.
func (s *SQLiteStore) FindCompany(ctx context.Context, id int64) (Company, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, location, vertical, source, raw_json, created_at, updated_at
		 FROM companies WHERE id = ?`, id)
	return scanCompany(row)
}

// FindCompanyByName returns the first company matching name exactly.
func (s *SQLiteStore) FindCompanyByName(ctx context.Context, name string) (Company, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, location, vertical, source, raw_json, created_at, updated_at
		 FROM companies WHERE name = ? ORDER BY id LIMIT 1`, name)
	return scanCompany(row)
}

// ListCompanies returns up to limit companies, newest first.
func (s *SQLiteStore) ListCompanies(ctx context.Context, limit int) ([]Company, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, location, vertical, source, raw_json, created_at, updated_at
		 FROM companies ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var companies []Company
	for rows.Next() {
		company, err := scanCompany(rows)
		if err != nil {
			return nil, err
		}
		companies = append(companies, company)
	}
	return companies, rows.Err()
}

// UpdateCompanyRaw replaces a company's raw record.
func (s *SQLiteStore) UpdateCompanyRaw(ctx context.Context, id int64, raw map[string]any) error {
	encoded, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("marshal raw record: %w", err)
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE companies SET raw_json = ?, updated_at = ? WHERE id = ?`,
		string(encoded), time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("update company: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateScore records a scoring outcome for a company.
func (s *SQLiteStore) CreateScore(ctx context.Context, score Score) (Score, error) {
	detail, err := json.Marshal(score.Detail)
	if err != nil {
		return Score{}, fmt.Errorf("marshal score detail: %w", err)
	}
	now := time.Now().UTC()

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO scores (company_id, value, qualified, detail_json, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		score.CompanyID, score.Value, boolToInt(score.Qualified),
		string(detail), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Score{}, fmt.Errorf("insert score: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return Score{}, fmt.Errorf("score id: %w", err)
	}

	score.ID = id
	score.CreatedAt = now
	return score, nil
}

// ScoresForCompany returns all scores for a company, newest first.
func (s *SQLiteStore) ScoresForCompany(ctx context.Context, companyID int64) ([]Score, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, company_id, value, qualified, detail_json, created_at
		 FROM scores WHERE company_id = ? ORDER BY id DESC`, companyID)
	if err != nil {
		return nil, fmt.Errorf("list scores: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var scores []Score
	for rows.Next() {
		var (
			score      Score
			qualified  int
			detailJSON sql.NullString
			createdAt  string
		)
		if err := rows.Scan(&score.ID, &score.CompanyID, &score.Value, &qualified, &detailJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		score.Qualified = qualified != 0
		if detailJSON.Valid && detailJSON.String != "" {
			if err := json.Unmarshal([]byte(detailJSON.String), &score.Detail); err != nil {
				return nil, fmt.Errorf("decode score detail: %w", err)
			}
		}
		score.CreatedAt = parseTimestamp(createdAt)
		scores = append(scores, score)
	}
	return scores, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCompany(row rowScanner) (Company, error) {
	var (
		company   Company
		rawJSON   string
		createdAt string
		updatedAt string
	)
	err := row.Scan(&company.ID, &company.Name, &company.Location, &company.Vertical,
		&company.Source, &rawJSON, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Company{}, ErrNotFound
	}
	if err != nil {
		return Company{}, fmt.Errorf("scan company: %w", err)
	}
	if rawJSON != "" {
		if err := json.Unmarshal([]byte(rawJSON), &company.Raw); err != nil {
			return Company{}, fmt.Errorf("decode raw record: %w", err)
		}
	}
	company.CreatedAt = parseTimestamp(createdAt)
	company.UpdatedAt = parseTimestamp(updatedAt)
	return company, nil
}

func parseTimestamp(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
