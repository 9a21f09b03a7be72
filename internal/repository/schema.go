package repository

// Schema definitions shared by SQLite and PostgreSQL. Types are kept to
// the common subset both engines accept; amounts are TEXT so decimal
// values round-trip exactly.

const schemaTransactions = `
CREATE TABLE IF NOT EXISTS transactions (
	id              TEXT PRIMARY KEY,
	entity_id       TEXT NOT NULL,
	counterparty_id TEXT NOT NULL DEFAULT '',
	amount          TEXT NOT NULL,
	currency        TEXT NOT NULL,
	jurisdiction    TEXT NOT NULL,
	timestamp       TIMESTAMP NOT NULL,
	created_at      TIMESTAMP NOT NULL
)`

const schemaTransactionsEntityIdx = `
CREATE INDEX IF NOT EXISTS idx_transactions_entity_time
ON transactions (entity_id, timestamp)`

const schemaCheckResults = `
CREATE TABLE IF NOT EXISTS check_results (
	id             TEXT PRIMARY KEY,
	request_id     TEXT NOT NULL,
	entity_id      TEXT NOT NULL,
	jurisdiction   TEXT NOT NULL,
	status         TEXT NOT NULL,
	risk_score     INTEGER NOT NULL,
	kyc_score      INTEGER NOT NULL,
	aml_score      INTEGER NOT NULL,
	velocity_score INTEGER NOT NULL,
	flags          TEXT NOT NULL DEFAULT '[]',
	reasoning      TEXT NOT NULL,
	rules_version  TEXT NOT NULL,
	evaluated_at   TIMESTAMP NOT NULL
)`

const schemaCheckResultsEntityIdx = `
CREATE INDEX IF NOT EXISTS idx_check_results_entity_time
ON check_results (entity_id, evaluated_at)`

const schemaCheckResultsRequestIdx = `
CREATE INDEX IF NOT EXISTS idx_check_results_request
ON check_results (request_id)`

// AllSchemas returns the migration statements in execution order.
func AllSchemas() []string {
	return []string{
		schemaTransactions,
		schemaTransactionsEntityIdx,
		schemaCheckResults,
		schemaCheckResultsEntityIdx,
		schemaCheckResultsRequestIdx,
	}
}
