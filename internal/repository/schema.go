package repository

// Schema definitions for the CreditX database.
// Compatible with both SQLite and PostgreSQL.

const schemaWeightsDocuments = `
CREATE TABLE IF NOT EXISTS weights_documents (
    version TEXT PRIMARY KEY,
    document TEXT NOT NULL,
    loaded_from TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_weights_documents_created ON weights_documents(created_at);
`

const schemaBatchAudits = `
CREATE TABLE IF NOT EXISTS batch_audits (
    id TEXT PRIMARY KEY,
    operation TEXT NOT NULL,
    record_count INTEGER NOT NULL,
    failure_count INTEGER NOT NULL,
    weights_version TEXT NOT NULL,
    duration_ms INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_batch_audits_operation ON batch_audits(operation);
CREATE INDEX IF NOT EXISTS idx_batch_audits_created ON batch_audits(created_at);
CREATE INDEX IF NOT EXISTS idx_batch_audits_version ON batch_audits(weights_version);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaWeightsDocuments,
		schemaBatchAudits,
	}
}
