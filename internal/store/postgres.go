package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/harborview/claims-triage/internal/db"
	"github.com/harborview/claims-triage/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot-path store operations.
var preparedStatements = map[string]string{
	"get_claim":             `SELECT claim_id, source_filename, source, document_type, file_path, extracted_data, extracted_text, severity_score, complexity_score, fraud_flags, routing_decision, status, processing_time_seconds, task_id, review_check_id, created_at, updated_at FROM claims WHERE claim_id = $1`,
	"get_claim_by_filename": `SELECT claim_id, source_filename, source, document_type, file_path, extracted_data, extracted_text, severity_score, complexity_score, fraud_flags, routing_decision, status, processing_time_seconds, task_id, review_check_id, created_at, updated_at FROM claims WHERE source_filename = $1 ORDER BY created_at DESC LIMIT 1`,
	"update_claim_status":   `UPDATE claims SET status = $1, updated_at = $2 WHERE claim_id = $3`,
	"get_adjuster":          `SELECT adjuster_id, name, email, phone, specializations, experience_level, years_experience, max_claim_amount, max_concurrent_claims, current_workload, territories, available, created_at, updated_at FROM adjusters WHERE adjuster_id = $1`,
	"adjust_workload":       `UPDATE adjusters SET current_workload = GREATEST(current_workload + $1, 0), updated_at = $2 WHERE adjuster_id = $3`,
	"insert_routing_record": `INSERT INTO routing_history (id, claim_id, adjuster_id, decision, created_at) VALUES ($1, $2, $3, $4, $5)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. Tests use it with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: pool.Close}
}

// Pool returns the underlying database pool for subsystems that need
// direct query access (e.g., roster bulk seeding).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS claims (
	claim_id                TEXT PRIMARY KEY,
	source_filename         TEXT NOT NULL,
	source                  TEXT NOT NULL DEFAULT 'upload',
	document_type           TEXT,
	file_path               TEXT,
	extracted_data          JSONB,
	extracted_text          TEXT,
	severity_score          DOUBLE PRECISION,
	complexity_score        DOUBLE PRECISION,
	fraud_flags             JSONB,
	routing_decision        JSONB,
	status                  TEXT NOT NULL DEFAULT 'uploaded',
	processing_time_seconds DOUBLE PRECISION,
	task_id                 TEXT,
	review_check_id         TEXT,
	created_at              TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at              TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_claims_status ON claims(status);
CREATE INDEX IF NOT EXISTS idx_claims_source_filename ON claims(source_filename);
CREATE INDEX IF NOT EXISTS idx_claims_created_at ON claims(created_at DESC);

CREATE TABLE IF NOT EXISTS adjusters (
	adjuster_id           TEXT PRIMARY KEY,
	name                  TEXT NOT NULL,
	email                 TEXT NOT NULL DEFAULT '',
	phone                 TEXT,
	specializations       JSONB NOT NULL DEFAULT '[]',
	experience_level      TEXT NOT NULL DEFAULT 'junior',
	years_experience      INTEGER NOT NULL DEFAULT 0,
	max_claim_amount      DOUBLE PRECISION NOT NULL DEFAULT 0,
	max_concurrent_claims INTEGER NOT NULL DEFAULT 15,
	current_workload      INTEGER NOT NULL DEFAULT 0,
	territories           JSONB NOT NULL DEFAULT '[]',
	available             BOOLEAN NOT NULL DEFAULT true,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_adjusters_available ON adjusters(available);

CREATE TABLE IF NOT EXISTS routing_history (
	id          TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	claim_id    TEXT NOT NULL,
	adjuster_id TEXT,
	decision    JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_routing_history_claim_id ON routing_history(claim_id);
CREATE INDEX IF NOT EXISTS idx_routing_history_adjuster_id ON routing_history(adjuster_id);
`

const claimColumns = `claim_id, source_filename, source, document_type, file_path, extracted_data, extracted_text, severity_score, complexity_score, fraud_flags, routing_decision, status, processing_time_seconds, task_id, review_check_id, created_at, updated_at`

const adjusterColumns = `adjuster_id, name, email, phone, specializations, experience_level, years_experience, max_claim_amount, max_concurrent_claims, current_workload, territories, available, created_at, updated_at`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// SaveClaim upserts the full claim record keyed by claim_id.
func (s *PostgresStore) SaveClaim(ctx context.Context, claim *model.Claim) error {
	now := time.Now().UTC()
	if claim.CreatedAt.IsZero() {
		claim.CreatedAt = now
	}
	claim.UpdatedAt = now

	dataJSON, flagsJSON, decisionJSON, err := marshalClaimJSON(claim)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO claims (`+claimColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		 ON CONFLICT (claim_id) DO UPDATE SET
		   source_filename = $2, source = $3, document_type = $4, file_path = $5,
		   extracted_data = $6, extracted_text = $7, severity_score = $8, complexity_score = $9,
		   fraud_flags = $10, routing_decision = $11, status = $12, processing_time_seconds = $13,
		   task_id = $14, review_check_id = $15, updated_at = $17`,
		claim.ClaimID, claim.SourceFilename, claim.Source, claim.DocumentType, claim.FilePath,
		dataJSON, claim.ExtractedText, claim.SeverityScore, claim.ComplexityScore,
		flagsJSON, decisionJSON, string(claim.Status), claim.ProcessingTimeSeconds,
		claim.TaskID, claim.ReviewCheckID, claim.CreatedAt, claim.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: save claim %s", claim.ClaimID)
}

func (s *PostgresStore) GetClaim(ctx context.Context, claimID string) (*model.Claim, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+claimColumns+` FROM claims WHERE claim_id = $1`,
		claimID,
	)
	claim, err := scanClaim(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get claim %s", claimID)
	}
	return claim, nil
}

func (s *PostgresStore) GetClaimByFilename(ctx context.Context, sourceFilename string) (*model.Claim, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+claimColumns+` FROM claims WHERE source_filename = $1 ORDER BY created_at DESC LIMIT 1`,
		sourceFilename,
	)
	claim, err := scanClaim(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get claim by filename %s", sourceFilename)
	}
	return claim, nil
}

func (s *PostgresStore) ListClaims(ctx context.Context, filter ClaimFilter) ([]model.Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM claims WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Source != "" {
		query += fmt.Sprintf(` AND source = $%d`, argIdx)
		args = append(args, filter.Source)
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
		argIdx++
	}

	return s.queryClaims(ctx, "list claims", query, args...)
}

// ListQueue returns claims still in triage (not yet assigned), oldest
// first so intake order is preserved.
func (s *PostgresStore) ListQueue(ctx context.Context) ([]model.Claim, error) {
	return s.queryClaims(ctx, "list queue",
		`SELECT `+claimColumns+` FROM claims
		 WHERE status IN ('uploaded', 'extracting', 'scoring', 'routing')
		 ORDER BY created_at ASC`)
}

// ListFlagged returns claims carrying at least one fraud flag.
func (s *PostgresStore) ListFlagged(ctx context.Context) ([]model.Claim, error) {
	return s.queryClaims(ctx, "list flagged",
		`SELECT `+claimColumns+` FROM claims
		 WHERE fraud_flags IS NOT NULL AND jsonb_array_length(fraud_flags) > 0
		 ORDER BY created_at DESC`)
}

func (s *PostgresStore) queryClaims(ctx context.Context, op, query string, args ...any) ([]model.Claim, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: %s", op)
	}
	defer rows.Close()

	var claims []model.Claim
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: %s scan", op)
		}
		claims = append(claims, *claim)
	}
	return claims, eris.Wrapf(rows.Err(), "postgres: %s iterate", op)
}

func (s *PostgresStore) UpdateClaimStatus(ctx context.Context, claimID string, status model.ClaimStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE claims SET status = $1, updated_at = $2 WHERE claim_id = $3`,
		string(status), time.Now().UTC(), claimID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update claim status %s", claimID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("claim not found: %s", claimID)
	}
	return nil
}

func (s *PostgresStore) DeleteClaim(ctx context.Context, claimID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM claims WHERE claim_id = $1`, claimID)
	return eris.Wrapf(err, "postgres: delete claim %s", claimID)
}

// SaveAdjuster upserts the adjuster profile keyed by adjuster_id.
func (s *PostgresStore) SaveAdjuster(ctx context.Context, adjuster *model.Adjuster) error {
	now := time.Now().UTC()
	if adjuster.CreatedAt.IsZero() {
		adjuster.CreatedAt = now
	}
	adjuster.UpdatedAt = now

	specsJSON, err := json.Marshal(adjuster.Specializations)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal specializations")
	}
	territoriesJSON, err := json.Marshal(adjuster.Territories)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal territories")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO adjusters (`+adjusterColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 ON CONFLICT (adjuster_id) DO UPDATE SET
		   name = $2, email = $3, phone = $4, specializations = $5, experience_level = $6,
		   years_experience = $7, max_claim_amount = $8, max_concurrent_claims = $9,
		   current_workload = $10, territories = $11, available = $12, updated_at = $14`,
		adjuster.AdjusterID, adjuster.Name, adjuster.Email, adjuster.Phone,
		specsJSON, string(adjuster.ExperienceLevel), adjuster.YearsExperience,
		adjuster.MaxClaimAmount, adjuster.MaxConcurrentClaims, adjuster.CurrentWorkload,
		territoriesJSON, adjuster.Available, adjuster.CreatedAt, adjuster.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: save adjuster %s", adjuster.AdjusterID)
}

func (s *PostgresStore) GetAdjuster(ctx context.Context, adjusterID string) (*model.Adjuster, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+adjusterColumns+` FROM adjusters WHERE adjuster_id = $1`,
		adjusterID,
	)
	adjuster, err := scanAdjuster(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get adjuster %s", adjusterID)
	}
	return adjuster, nil
}

func (s *PostgresStore) ListAdjusters(ctx context.Context, availableOnly bool) ([]model.Adjuster, error) {
	query := `SELECT ` + adjusterColumns + ` FROM adjusters`
	if availableOnly {
		query += ` WHERE available = true`
	}
	query += ` ORDER BY adjuster_id`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list adjusters")
	}
	defer rows.Close()

	var adjusters []model.Adjuster
	for rows.Next() {
		adjuster, err := scanAdjuster(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan adjuster")
		}
		adjusters = append(adjusters, *adjuster)
	}
	return adjusters, eris.Wrap(rows.Err(), "postgres: list adjusters iterate")
}

// AdjustWorkload applies a workload delta, clamped at zero.
func (s *PostgresStore) AdjustWorkload(ctx context.Context, adjusterID string, delta int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE adjusters SET current_workload = GREATEST(current_workload + $1, 0), updated_at = $2 WHERE adjuster_id = $3`,
		delta, time.Now().UTC(), adjusterID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: adjust workload %s", adjusterID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("adjuster not found: %s", adjusterID)
	}
	return nil
}

func (s *PostgresStore) SaveRoutingRecord(ctx context.Context, claimID string, decision *model.RoutingDecision) error {
	decisionJSON, err := json.Marshal(decision)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal routing decision")
	}

	var adjusterID *string
	if decision != nil {
		adjusterID = decision.AdjusterID
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO routing_history (id, claim_id, adjuster_id, decision, created_at) VALUES ($1, $2, $3, $4, $5)`,
		uuid.New().String(), claimID, adjusterID, decisionJSON, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: save routing record %s", claimID)
}

func (s *PostgresStore) ListRoutingHistory(ctx context.Context, claimID string) ([]RoutingRecord, error) {
	query := `SELECT id, claim_id, adjuster_id, decision, created_at FROM routing_history`
	args := []any{}
	if claimID != "" {
		query += ` WHERE claim_id = $1`
		args = append(args, claimID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list routing history")
	}
	defer rows.Close()

	var records []RoutingRecord
	for rows.Next() {
		var r RoutingRecord
		var adjusterID *string
		var decisionJSON []byte
		if err := rows.Scan(&r.ID, &r.ClaimID, &adjusterID, &decisionJSON, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan routing record")
		}
		if adjusterID != nil {
			r.AdjusterID = *adjusterID
		}
		if len(decisionJSON) > 0 {
			r.Decision = &model.RoutingDecision{}
			if err := json.Unmarshal(decisionJSON, r.Decision); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal routing decision")
			}
		}
		records = append(records, r)
	}
	return records, eris.Wrap(rows.Err(), "postgres: list routing history iterate")
}

func (s *PostgresStore) Metrics(ctx context.Context) (*Metrics, error) {
	var m Metrics
	var avg *float64
	err := s.pool.QueryRow(ctx,
		`SELECT
		   COUNT(*),
		   COUNT(*) FILTER (WHERE status = 'assigned'),
		   COUNT(*) FILTER (WHERE status = 'completed'),
		   AVG(processing_time_seconds) FILTER (WHERE processing_time_seconds > 0)
		 FROM claims`,
	).Scan(&m.TotalClaims, &m.AssignedClaims, &m.CompletedClaims, &avg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: metrics")
	}
	if avg != nil {
		m.AvgProcessingTimeSeconds = *avg
	}
	return &m, nil
}

// scanClaim reads one claim row. Works for both QueryRow and Query
// iteration since pgx.Rows satisfies pgx.Row.
func scanClaim(row pgx.Row) (*model.Claim, error) {
	var c model.Claim
	var status string
	var documentType, filePath, extractedText, taskID, reviewCheckID *string
	var processingTime *float64
	var dataJSON, flagsJSON, decisionJSON []byte

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
	if documentType != nil {
		c.DocumentType = *documentType
	}
	if filePath != nil {
		c.FilePath = *filePath
	}
	if extractedText != nil {
		c.ExtractedText = *extractedText
	}
	if processingTime != nil {
		c.ProcessingTimeSeconds = *processingTime
	}
	if taskID != nil {
		c.TaskID = *taskID
	}
	if reviewCheckID != nil {
		c.ReviewCheckID = *reviewCheckID
	}

	if len(dataJSON) > 0 {
		c.ExtractedData = &model.ExtractedData{}
		if err := json.Unmarshal(dataJSON, c.ExtractedData); err != nil {
			return nil, eris.Wrap(err, "unmarshal extracted data")
		}
	}
	if len(flagsJSON) > 0 {
		if err := json.Unmarshal(flagsJSON, &c.FraudFlags); err != nil {
			return nil, eris.Wrap(err, "unmarshal fraud flags")
		}
	}
	if len(decisionJSON) > 0 {
		c.RoutingDecision = &model.RoutingDecision{}
		if err := json.Unmarshal(decisionJSON, c.RoutingDecision); err != nil {
			return nil, eris.Wrap(err, "unmarshal routing decision")
		}
	}
	return &c, nil
}

func scanAdjuster(row pgx.Row) (*model.Adjuster, error) {
	var a model.Adjuster
	var level string
	var phone *string
	var specsJSON, territoriesJSON []byte

	err := row.Scan(
		&a.AdjusterID, &a.Name, &a.Email, &phone, &specsJSON, &level,
		&a.YearsExperience, &a.MaxClaimAmount, &a.MaxConcurrentClaims,
		&a.CurrentWorkload, &territoriesJSON, &a.Available, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.ExperienceLevel = model.ExperienceLevel(level)
	if phone != nil {
		a.Phone = *phone
	}
	if len(specsJSON) > 0 {
		if err := json.Unmarshal(specsJSON, &a.Specializations); err != nil {
			return nil, eris.Wrap(err, "unmarshal specializations")
		}
	}
	if len(territoriesJSON) > 0 {
		if err := json.Unmarshal(territoriesJSON, &a.Territories); err != nil {
			return nil, eris.Wrap(err, "unmarshal territories")
		}
	}
	return &a, nil
}

func marshalClaimJSON(claim *model.Claim) (dataJSON, flagsJSON, decisionJSON []byte, err error) {
	if claim.ExtractedData != nil {
		dataJSON, err = json.Marshal(claim.ExtractedData)
		if err != nil {
			return nil, nil, nil, eris.Wrap(err, "postgres: marshal extracted data")
		}
	}
	if claim.FraudFlags != nil {
		flagsJSON, err = json.Marshal(claim.FraudFlags)
		if err != nil {
			return nil, nil, nil, eris.Wrap(err, "postgres: marshal fraud flags")
		}
	}
	if claim.RoutingDecision != nil {
		decisionJSON, err = json.Marshal(claim.RoutingDecision)
		if err != nil {
			return nil, nil, nil, eris.Wrap(err, "postgres: marshal routing decision")
		}
	}
	return dataJSON, flagsJSON, decisionJSON, nil
}
