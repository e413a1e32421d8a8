package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/harborview/claims-triage/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It is the
// zero-setup backend for local development and single-node deployments.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS claims (
	claim_id                TEXT PRIMARY KEY,
	source_filename         TEXT NOT NULL,
	source                  TEXT NOT NULL DEFAULT 'upload',
	document_type           TEXT,
	file_path               TEXT,
	extracted_data          TEXT,
	extracted_text          TEXT,
	severity_score          REAL,
	complexity_score        REAL,
	fraud_flags             TEXT,
	routing_decision        TEXT,
	status                  TEXT NOT NULL DEFAULT 'uploaded',
	processing_time_seconds REAL,
	task_id                 TEXT,
	review_check_id         TEXT,
	created_at              DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at              DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_claims_status ON claims(status);
CREATE INDEX IF NOT EXISTS idx_claims_source_filename ON claims(source_filename);

CREATE TABLE IF NOT EXISTS adjusters (
	adjuster_id           TEXT PRIMARY KEY,
	name                  TEXT NOT NULL,
	email                 TEXT NOT NULL DEFAULT '',
	phone                 TEXT,
	specializations       TEXT NOT NULL DEFAULT '[]',
	experience_level      TEXT NOT NULL DEFAULT 'junior',
	years_experience      INTEGER NOT NULL DEFAULT 0,
	max_claim_amount      REAL NOT NULL DEFAULT 0,
	max_concurrent_claims INTEGER NOT NULL DEFAULT 15,
	current_workload      INTEGER NOT NULL DEFAULT 0,
	territories           TEXT NOT NULL DEFAULT '[]',
	available             INTEGER NOT NULL DEFAULT 1,
	created_at            DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at            DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS routing_history (
	id          TEXT PRIMARY KEY,
	claim_id    TEXT NOT NULL,
	adjuster_id TEXT,
	decision    TEXT NOT NULL,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_routing_history_claim_id ON routing_history(claim_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return eris.Wrap(s.db.Close(), "sqlite: close")
}

func (s *SQLiteStore) SaveClaim(ctx context.Context, claim *model.Claim) error {
	now := time.Now().UTC()
	if claim.CreatedAt.IsZero() {
		claim.CreatedAt = now
	}
	claim.UpdatedAt = now

	dataJSON, flagsJSON, decisionJSON, err := marshalClaimJSON(claim)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO claims (`+claimColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (claim_id) DO UPDATE SET
		   source_filename = excluded.source_filename, source = excluded.source,
		   document_type = excluded.document_type, file_path = excluded.file_path,
		   extracted_data = excluded.extracted_data, extracted_text = excluded.extracted_text,
		   severity_score = excluded.severity_score, complexity_score = excluded.complexity_score,
		   fraud_flags = excluded.fraud_flags, routing_decision = excluded.routing_decision,
		   status = excluded.status, processing_time_seconds = excluded.processing_time_seconds,
		   task_id = excluded.task_id, review_check_id = excluded.review_check_id,
		   updated_at = excluded.updated_at`,
		claim.ClaimID, claim.SourceFilename, claim.Source, claim.DocumentType, claim.FilePath,
		nullableBytes(dataJSON), claim.ExtractedText, claim.SeverityScore, claim.ComplexityScore,
		nullableBytes(flagsJSON), nullableBytes(decisionJSON), string(claim.Status),
		claim.ProcessingTimeSeconds, claim.TaskID, claim.ReviewCheckID,
		claim.CreatedAt, claim.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: save claim %s", claim.ClaimID)
}

func (s *SQLiteStore) GetClaim(ctx context.Context, claimID string) (*model.Claim, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+claimColumns+` FROM claims WHERE claim_id = ?`, claimID)
	claim, err := scanSQLiteClaim(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get claim %s", claimID)
	}
	return claim, nil
}

func (s *SQLiteStore) GetClaimByFilename(ctx context.Context, sourceFilename string) (*model.Claim, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+claimColumns+` FROM claims WHERE source_filename = ? ORDER BY created_at DESC LIMIT 1`,
		sourceFilename)
	claim, err := scanSQLiteClaim(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get claim by filename %s", sourceFilename)
	}
	return claim, nil
}

func (s *SQLiteStore) ListClaims(ctx context.Context, filter ClaimFilter) ([]model.Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM claims WHERE 1=1`
	args := []any{}

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Source != "" {
		query += ` AND source = ?`
		args = append(args, filter.Source)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	return s.queryClaims(ctx, "list claims", query, args...)
}

func (s *SQLiteStore) ListQueue(ctx context.Context) ([]model.Claim, error) {
	return s.queryClaims(ctx, "list queue",
		`SELECT `+claimColumns+` FROM claims
		 WHERE status IN ('uploaded', 'extracting', 'scoring', 'routing')
		 ORDER BY created_at ASC`)
}

func (s *SQLiteStore) ListFlagged(ctx context.Context) ([]model.Claim, error) {
	return s.queryClaims(ctx, "list flagged",
		`SELECT `+claimColumns+` FROM claims
		 WHERE fraud_flags IS NOT NULL AND fraud_flags != '' AND fraud_flags != '[]'
		 ORDER BY created_at DESC`)
}

func (s *SQLiteStore) queryClaims(ctx context.Context, op, query string, args ...any) ([]model.Claim, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: %s", op)
	}
	defer rows.Close()

	var claims []model.Claim
	for rows.Next() {
		claim, err := scanSQLiteClaim(rows)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: %s scan", op)
		}
		claims = append(claims, *claim)
	}
	return claims, eris.Wrapf(rows.Err(), "sqlite: %s iterate", op)
}

func (s *SQLiteStore) UpdateClaimStatus(ctx context.Context, claimID string, status model.ClaimStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE claims SET status = ?, updated_at = ? WHERE claim_id = ?`,
		string(status), time.Now().UTC(), claimID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update claim status %s", claimID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Errorf("claim not found: %s", claimID)
	}
	return nil
}

func (s *SQLiteStore) DeleteClaim(ctx context.Context, claimID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM claims WHERE claim_id = ?`, claimID)
	return eris.Wrapf(err, "sqlite: delete claim %s", claimID)
}

func (s *SQLiteStore) SaveAdjuster(ctx context.Context, adjuster *model.Adjuster) error {
	now := time.Now().UTC()
	if adjuster.CreatedAt.IsZero() {
		adjuster.CreatedAt = now
	}
	adjuster.UpdatedAt = now

	specsJSON, err := json.Marshal(adjuster.Specializations)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal specializations")
	}
	territoriesJSON, err := json.Marshal(adjuster.Territories)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal territories")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO adjusters (`+adjusterColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (adjuster_id) DO UPDATE SET
		   name = excluded.name, email = excluded.email, phone = excluded.phone,
		   specializations = excluded.specializations, experience_level = excluded.experience_level,
		   years_experience = excluded.years_experience, max_claim_amount = excluded.max_claim_amount,
		   max_concurrent_claims = excluded.max_concurrent_claims,
		   current_workload = excluded.current_workload, territories = excluded.territories,
		   available = excluded.available, updated_at = excluded.updated_at`,
		adjuster.AdjusterID, adjuster.Name, adjuster.Email, adjuster.Phone,
		string(specsJSON), string(adjuster.ExperienceLevel), adjuster.YearsExperience,
		adjuster.MaxClaimAmount, adjuster.MaxConcurrentClaims, adjuster.CurrentWorkload,
		string(territoriesJSON), adjuster.Available, adjuster.CreatedAt, adjuster.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: save adjuster %s", adjuster.AdjusterID)
}

func (s *SQLiteStore) GetAdjuster(ctx context.Context, adjusterID string) (*model.Adjuster, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+adjusterColumns+` FROM adjusters WHERE adjuster_id = ?`, adjusterID)
	adjuster, err := scanSQLiteAdjuster(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get adjuster %s", adjusterID)
	}
	return adjuster, nil
}

func (s *SQLiteStore) ListAdjusters(ctx context.Context, availableOnly bool) ([]model.Adjuster, error) {
	query := `SELECT ` + adjusterColumns + ` FROM adjusters`
	if availableOnly {
		query += ` WHERE available = 1`
	}
	query += ` ORDER BY adjuster_id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list adjusters")
	}
	defer rows.Close()

	var adjusters []model.Adjuster
	for rows.Next() {
		adjuster, err := scanSQLiteAdjuster(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan adjuster")
		}
		adjusters = append(adjusters, *adjuster)
	}
	return adjusters, eris.Wrap(rows.Err(), "sqlite: list adjusters iterate")
}

func (s *SQLiteStore) AdjustWorkload(ctx context.Context, adjusterID string, delta int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE adjusters SET current_workload = MAX(current_workload + ?, 0), updated_at = ? WHERE adjuster_id = ?`,
		delta, time.Now().UTC(), adjusterID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: adjust workload %s", adjusterID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Errorf("adjuster not found: %s", adjusterID)
	}
	return nil
}

func (s *SQLiteStore) SaveRoutingRecord(ctx context.Context, claimID string, decision *model.RoutingDecision) error {
	decisionJSON, err := json.Marshal(decision)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal routing decision")
	}

	var adjusterID *string
	if decision != nil {
		adjusterID = decision.AdjusterID
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO routing_history (id, claim_id, adjuster_id, decision, created_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), claimID, adjusterID, string(decisionJSON), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save routing record %s", claimID)
}

func (s *SQLiteStore) ListRoutingHistory(ctx context.Context, claimID string) ([]RoutingRecord, error) {
	query := `SELECT id, claim_id, adjuster_id, decision, created_at FROM routing_history`
	args := []any{}
	if claimID != "" {
		query += ` WHERE claim_id = ?`
		args = append(args, claimID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list routing history")
	}
	defer rows.Close()

	var records []RoutingRecord
	for rows.Next() {
		var r RoutingRecord
		var adjusterID *string
		var decisionJSON string
		if err := rows.Scan(&r.ID, &r.ClaimID, &adjusterID, &decisionJSON, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan routing record")
		}
		if adjusterID != nil {
			r.AdjusterID = *adjusterID
		}
		if decisionJSON != "" {
			r.Decision = &model.RoutingDecision{}
			if err := json.Unmarshal([]byte(decisionJSON), r.Decision); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal routing decision")
			}
		}
		records = append(records, r)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: list routing history iterate")
}

func (s *SQLiteStore) Metrics(ctx context.Context) (*Metrics, error) {
	var m Metrics
	var avg *float64
	err := s.db.QueryRowContext(ctx,
		`SELECT
		   COUNT(*),
		   COUNT(CASE WHEN status = 'assigned' THEN 1 END),
		   COUNT(CASE WHEN status = 'completed' THEN 1 END),
		   AVG(CASE WHEN processing_time_seconds > 0 THEN processing_time_seconds END)
		 FROM claims`,
	).Scan(&m.TotalClaims, &m.AssignedClaims, &m.CompletedClaims, &avg)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: metrics")
	}
	if avg != nil {
		m.AvgProcessingTimeSeconds = *avg
	}
	return &m, nil
}

// scanner abstracts *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSQLiteClaim(row scanner) (*model.Claim, error) {
	var c model.Claim
	var status string
	var documentType, filePath, dataJSON, extractedText, flagsJSON, decisionJSON, taskID, reviewCheckID sql.NullString
	var processingTime sql.NullFloat64

	err := row.Scan(
		&c.ClaimID, &c.SourceFilename, &c.Source, &documentType, &filePath,
		&dataJSON, &extractedText, &c.SeverityScore, &c.ComplexityScore,
		&flagsJSON, &decisionJSON, &status, &processingTime,
		&taskID, &reviewCheckID, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Status = model.ClaimStatus(status)
	c.DocumentType = documentType.String
	c.FilePath = filePath.String
	c.ExtractedText = extractedText.String
	c.ProcessingTimeSeconds = processingTime.Float64
	c.TaskID = taskID.String
	c.ReviewCheckID = reviewCheckID.String

	if dataJSON.String != "" {
		c.ExtractedData = &model.ExtractedData{}
		if err := json.Unmarshal([]byte(dataJSON.String), c.ExtractedData); err != nil {
			return nil, eris.Wrap(err, "unmarshal extracted data")
		}
	}
	if flagsJSON.String != "" {
		if err := json.Unmarshal([]byte(flagsJSON.String), &c.FraudFlags); err != nil {
			return nil, eris.Wrap(err, "unmarshal fraud flags")
		}
	}
	if decisionJSON.String != "" {
		c.RoutingDecision = &model.RoutingDecision{}
		if err := json.Unmarshal([]byte(decisionJSON.String), c.RoutingDecision); err != nil {
			return nil, eris.Wrap(err, "unmarshal routing decision")
		}
	}
	return &c, nil
}

func scanSQLiteAdjuster(row scanner) (*model.Adjuster, error) {
	var a model.Adjuster
	var level, specsJSON, territoriesJSON string
	var phone sql.NullString

	err := row.Scan(
		&a.AdjusterID, &a.Name, &a.Email, &phone, &specsJSON, &level,
		&a.YearsExperience, &a.MaxClaimAmount, &a.MaxConcurrentClaims,
		&a.CurrentWorkload, &territoriesJSON, &a.Available, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.ExperienceLevel = model.ExperienceLevel(level)
	a.Phone = phone.String
	if specsJSON != "" {
		if err := json.Unmarshal([]byte(specsJSON), &a.Specializations); err != nil {
			return nil, eris.Wrap(err, "unmarshal specializations")
		}
	}
	if territoriesJSON != "" {
		if err := json.Unmarshal([]byte(territoriesJSON), &a.Territories); err != nil {
			return nil, eris.Wrap(err, "unmarshal territories")
		}
	}
	return &a, nil
}

// nullableBytes maps empty JSON to NULL so absent sub-documents stay
// distinguishable from empty ones.
func nullableBytes(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
