// Package domain defines the core interfaces and types for Harrier.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	ResultSink

	// Result lookups
	GetFraudScore(ctx context.Context, tenantID string, messageID string) (*FraudScore, error)
	GetDecision(ctx context.Context, tenantID string, messageID string) (*RoutingDecision, error)
	GetProcessedTransaction(ctx context.Context, tenantID string, txID string) (*ProcessedTransaction, error)
	ListDecisionsByStatus(ctx context.Context, tenantID string, status FinalStatus) ([]*RoutingDecision, error)

	// Rule configuration operations
	SaveRuleConfig(ctx context.Context, tenantID string, rule *RuleConfig) error
	GetRuleConfig(ctx context.Context, tenantID string, ruleID string) (*RuleConfig, error)
	ListRuleConfigs(ctx context.Context, tenantID string) ([]*RuleConfig, error)

	// Batch run reports
	SaveBatchReport(ctx context.Context, tenantID string, report *BatchReport) error
	GetBatchReport(ctx context.Context, tenantID string, batchID string) (*BatchReport, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
