// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (*SQLRepository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 && cfg.SQLitePath != memoryPath {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
		now:    time.Now,
	}

	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SaveResults stores the artifacts of one batch atomically. Re-saving a
// message's artifacts replaces the earlier rows.
func (r *SQLRepository) SaveResults(ctx context.Context, tenantID string, txs []domain.ProcessedTransaction, scores []domain.FraudScore, decisions []domain.RoutingDecision) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i := range scores {
		if err := r.saveFraudScore(ctx, tx, tenantID, &scores[i]); err != nil {
			return fmt.Errorf("failed to save fraud score %s: %w", scores[i].MessageID, err)
		}
	}
	for i := range decisions {
		if err := r.saveDecision(ctx, tx, tenantID, &decisions[i]); err != nil {
			return fmt.Errorf("failed to save decision %s: %w", decisions[i].MessageID, err)
		}
	}
	for i := range txs {
		if err := r.saveProcessedTransaction(ctx, tx, tenantID, &txs[i]); err != nil {
			return fmt.Errorf("failed to save transaction %s: %w", txs[i].ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit results: %w", err)
	}
	return nil
}

func (r *SQLRepository) saveFraudScore(ctx context.Context, ex execer, tenantID string, score *domain.FraudScore) error {
	doc, err := json.Marshal(score)
	if err != nil {
		return err
	}

	mode := score.Mode
	if mode == "" {
		mode = domain.ScoringWeighted
	}

	query := `
		INSERT INTO fraud_scores (
			message_id, tenant_id, mode, score, critical, scored_at, document
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, message_id, mode) DO UPDATE SET
			score = excluded.score,
			critical = excluded.critical,
			scored_at = excluded.scored_at,
			document = excluded.document
	`

	_, err = ex.ExecContext(ctx, r.rebind(query),
		score.MessageID, tenantID, string(mode), score.Score,
		boolInt(score.Critical), score.ScoredAt.UTC(), string(doc),
	)
	return err
}

func (r *SQLRepository) saveDecision(ctx context.Context, ex execer, tenantID string, decision *domain.RoutingDecision) error {
	doc, err := json.Marshal(decision)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO routing_decisions (
			message_id, tenant_id, disposition, status, score, escalated, decided_at, document
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, message_id) DO UPDATE SET
			disposition = excluded.disposition,
			status = excluded.status,
			score = excluded.score,
			escalated = excluded.escalated,
			decided_at = excluded.decided_at,
			document = excluded.document
	`

	_, err = ex.ExecContext(ctx, r.rebind(query),
		decision.MessageID, tenantID, string(decision.Disposition), string(decision.Status),
		decision.Score, boolInt(decision.Escalated), decision.DecidedAt.UTC(), string(doc),
	)
	return err
}

func (r *SQLRepository) saveProcessedTransaction(ctx context.Context, ex execer, tenantID string, ptx *domain.ProcessedTransaction) error {
	doc, err := json.Marshal(ptx)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO processed_transactions (
			id, tenant_id, message_id, original_amount, currency, balanced, created_at, document
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, id) DO UPDATE SET
			balanced = excluded.balanced,
			document = excluded.document
	`

	_, err = ex.ExecContext(ctx, r.rebind(query),
		ptx.ID, tenantID, ptx.MessageID, ptx.OriginalAmount.StringFixed(2), ptx.Currency,
		boolInt(ptx.Balanced), ptx.CreatedAt.UTC(), string(doc),
	)
	return err
}

// GetFraudScore retrieves the weighted score of a message with tenant isolation.
func (r *SQLRepository) GetFraudScore(ctx context.Context, tenantID string, messageID string) (*domain.FraudScore, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT document FROM fraud_scores
		WHERE tenant_id = ? AND message_id = ? AND mode = ?
	`

	var score domain.FraudScore
	if err := r.getDocument(ctx, &score, query, tenantID, messageID, string(domain.ScoringWeighted)); err != nil {
		return nil, err
	}
	return &score, nil
}

// GetDecision retrieves the routing decision of a message with tenant isolation.
func (r *SQLRepository) GetDecision(ctx context.Context, tenantID string, messageID string) (*domain.RoutingDecision, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT document FROM routing_decisions
		WHERE tenant_id = ? AND message_id = ?
	`

	var decision domain.RoutingDecision
	if err := r.getDocument(ctx, &decision, query, tenantID, messageID); err != nil {
		return nil, err
	}
	return &decision, nil
}

// GetProcessedTransaction retrieves a processed transaction with tenant isolation.
func (r *SQLRepository) GetProcessedTransaction(ctx context.Context, tenantID string, txID string) (*domain.ProcessedTransaction, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT document FROM processed_transactions
		WHERE tenant_id = ? AND id = ?
	`

	var ptx domain.ProcessedTransaction
	if err := r.getDocument(ctx, &ptx, query, tenantID, txID); err != nil {
		return nil, err
	}
	return &ptx, nil
}

// ListDecisionsByStatus retrieves decisions in a final status, oldest first.
func (r *SQLRepository) ListDecisionsByStatus(ctx context.Context, tenantID string, status domain.FinalStatus) ([]*domain.RoutingDecision, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT document FROM routing_decisions
		WHERE tenant_id = ? AND status = ?
		ORDER BY decided_at, message_id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions []*domain.RoutingDecision
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}

		var d domain.RoutingDecision
		if err := json.Unmarshal([]byte(doc), &d); err != nil {
			return nil, fmt.Errorf("failed to decode decision: %w", err)
		}
		decisions = append(decisions, &d)
	}

	return decisions, rows.Err()
}

// SaveRuleConfig stores a rule configuration with tenant isolation.
func (r *SQLRepository) SaveRuleConfig(ctx context.Context, tenantID string, rule *domain.RuleConfig) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if rule.ID == "" || rule.Expression == "" {
		return fmt.Errorf("%w: rule id and expression are required", ErrInvalidInput)
	}

	bands, err := json.Marshal(rule.Bands)
	if err != nil {
		return fmt.Errorf("failed to encode bands: %w", err)
	}

	version := rule.Version
	if version == "" {
		version = "1.0.0"
	}

	now := r.now().UTC()

	query := `
		INSERT INTO rule_configs (
			id, tenant_id, name, description, version, expression, bands, weight, enabled, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id, version) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			expression = excluded.expression,
			bands = excluded.bands,
			weight = excluded.weight,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		rule.ID, tenantID, rule.Name, rule.Description,
		version, rule.Expression, string(bands), rule.Weight, boolInt(rule.Enabled),
		now, now,
	)
	return err
}

// GetRuleConfig retrieves the latest enabled version of a rule with tenant isolation.
func (r *SQLRepository) GetRuleConfig(ctx context.Context, tenantID string, ruleID string) (*domain.RuleConfig, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression, bands, weight, enabled
		FROM rule_configs
		WHERE tenant_id = ? AND id = ? AND enabled = 1
		ORDER BY version DESC
		LIMIT 1
	`

	cfg, err := scanRuleConfig(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, ruleID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// ListRuleConfigs retrieves all enabled rule configurations for a tenant.
func (r *SQLRepository) ListRuleConfigs(ctx context.Context, tenantID string) ([]*domain.RuleConfig, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, description, version, expression, bands, weight, enabled
		FROM rule_configs
		WHERE tenant_id = ? AND enabled = 1
		ORDER BY name, id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []*domain.RuleConfig
	for rows.Next() {
		cfg, err := scanRuleConfig(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}

	return configs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRuleConfig(s scanner) (*domain.RuleConfig, error) {
	var cfg domain.RuleConfig
	var description sql.NullString
	var bands string
	var enabled int

	if err := s.Scan(
		&cfg.ID, &cfg.TenantID, &cfg.Name, &description,
		&cfg.Version, &cfg.Expression, &bands, &cfg.Weight, &enabled,
	); err != nil {
		return nil, err
	}

	cfg.Description = description.String
	cfg.Enabled = enabled == 1
	if err := json.Unmarshal([]byte(bands), &cfg.Bands); err != nil {
		return nil, fmt.Errorf("failed to parse bands for rule %s: %w", cfg.ID, err)
	}
	return &cfg, nil
}

// SaveBatchReport stores a batch report with tenant isolation.
func (r *SQLRepository) SaveBatchReport(ctx context.Context, tenantID string, report *domain.BatchReport) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}
	if report.ID == "" {
		return fmt.Errorf("%w: batch id is required", ErrInvalidInput)
	}

	doc, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode batch report: %w", err)
	}

	query := `
		INSERT INTO batch_reports (
			id, tenant_id, total, failed, canceled, started_at, finished_at, document
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		report.ID, tenantID, report.Summary.Total, report.Summary.Failed, boolInt(report.Canceled),
		report.StartedAt.UTC(), report.FinishedAt.UTC(), string(doc),
	)
	return err
}

// GetBatchReport retrieves a batch report with tenant isolation.
func (r *SQLRepository) GetBatchReport(ctx context.Context, tenantID string, batchID string) (*domain.BatchReport, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT document FROM batch_reports
		WHERE tenant_id = ? AND id = ?
	`

	var report domain.BatchReport
	if err := r.getDocument(ctx, &report, query, tenantID, batchID); err != nil {
		return nil, err
	}
	return &report, nil
}

// getDocument scans a single JSON document column into dst.
func (r *SQLRepository) getDocument(ctx context.Context, dst any, query string, args ...any) error {
	var doc string
	err := r.db.QueryRowContext(ctx, r.rebind(query), args...).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(doc), dst); err != nil {
		return fmt.Errorf("failed to decode stored document: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			n++
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ domain.Repository = (*SQLRepository)(nil)
