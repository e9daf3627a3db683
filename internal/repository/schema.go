package repository

// Schema definitions for the Harrier result store.
// Compatible with both SQLite and PostgreSQL.

// Each artifact row keeps its queryable columns next to a JSON document of the
// full record; reads decode the document.

const schemaFraudScores = `
CREATE TABLE IF NOT EXISTS fraud_scores (
    message_id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    mode TEXT NOT NULL,
    score REAL NOT NULL,
    critical INTEGER NOT NULL DEFAULT 0,
    scored_at TIMESTAMP NOT NULL,
    document TEXT NOT NULL,
    PRIMARY KEY (tenant_id, message_id, mode)
);

CREATE INDEX IF NOT EXISTS idx_fraud_scores_score ON fraud_scores(tenant_id, score);
`

const schemaRoutingDecisions = `
CREATE TABLE IF NOT EXISTS routing_decisions (
    message_id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    disposition TEXT NOT NULL,
    status TEXT NOT NULL,
    score REAL NOT NULL,
    escalated INTEGER NOT NULL DEFAULT 0,
    decided_at TIMESTAMP NOT NULL,
    document TEXT NOT NULL,
    PRIMARY KEY (tenant_id, message_id)
);

CREATE INDEX IF NOT EXISTS idx_routing_decisions_status ON routing_decisions(tenant_id, status);
`

const schemaProcessedTransactions = `
CREATE TABLE IF NOT EXISTS processed_transactions (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    message_id TEXT NOT NULL,
    original_amount TEXT NOT NULL,
    currency TEXT NOT NULL,
    balanced INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL,
    document TEXT NOT NULL,
    PRIMARY KEY (tenant_id, id)
);

CREATE INDEX IF NOT EXISTS idx_processed_transactions_message ON processed_transactions(tenant_id, message_id);
`

const schemaRuleConfigs = `
CREATE TABLE IF NOT EXISTS rule_configs (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    version TEXT NOT NULL,
    expression TEXT NOT NULL,
    bands TEXT NOT NULL,
    weight REAL NOT NULL DEFAULT 1.0,
    enabled INTEGER NOT NULL DEFAULT 1,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    PRIMARY KEY (id, tenant_id, version)
);

CREATE INDEX IF NOT EXISTS idx_rule_configs_enabled ON rule_configs(tenant_id, enabled);
`

const schemaBatchReports = `
CREATE TABLE IF NOT EXISTS batch_reports (
    id TEXT NOT NULL,
    tenant_id TEXT NOT NULL,
    total INTEGER NOT NULL,
    failed INTEGER NOT NULL,
    canceled INTEGER NOT NULL DEFAULT 0,
    started_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP NOT NULL,
    document TEXT NOT NULL,
    PRIMARY KEY (tenant_id, id)
);

CREATE INDEX IF NOT EXISTS idx_batch_reports_started ON batch_reports(tenant_id, started_at);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaFraudScores,
		schemaRoutingDecisions,
		schemaProcessedTransactions,
		schemaRuleConfigs,
		schemaBatchReports,
	}
}
