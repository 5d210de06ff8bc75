// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/creditx-oss/creditx/internal/domain"
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
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
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

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
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
	}

	// Run migrations
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

// SaveWeightsDocument stores a weights document keyed by version.
// Re-saving an existing version replaces its bytes, which keeps reload
// from a corrected document under the same version possible.
func (r *SQLRepository) SaveWeightsDocument(ctx context.Context, doc *domain.WeightsDocument) error {
	if doc == nil || doc.Version == "" {
		return fmt.Errorf("%w: document version is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO weights_documents (version, document, loaded_from, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(version) DO UPDATE SET
			document = excluded.document,
			loaded_from = excluded.loaded_from,
			created_at = excluded.created_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		doc.Version, string(doc.Document), doc.LoadedFrom, doc.CreatedAt,
	)
	return err
}

// GetWeightsDocument retrieves a weights document by version.
func (r *SQLRepository) GetWeightsDocument(ctx context.Context, version string) (*domain.WeightsDocument, error) {
	if version == "" {
		return nil, fmt.Errorf("%w: version is required", ErrInvalidInput)
	}

	query := `
		SELECT version, document, loaded_from, created_at
		FROM weights_documents
		WHERE version = ?
	`

	return r.scanDocument(r.db.QueryRowContext(ctx, r.rebind(query), version))
}

// LatestWeightsDocument retrieves the most recently stored document.
func (r *SQLRepository) LatestWeightsDocument(ctx context.Context) (*domain.WeightsDocument, error) {
	query := `
		SELECT version, document, loaded_from, created_at
		FROM weights_documents
		ORDER BY created_at DESC
		LIMIT 1
	`

	return r.scanDocument(r.db.QueryRowContext(ctx, query))
}

func (r *SQLRepository) scanDocument(row *sql.Row) (*domain.WeightsDocument, error) {
	var doc domain.WeightsDocument
	var document string

	err := row.Scan(&doc.Version, &document, &doc.LoadedFrom, &doc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	doc.Document = []byte(document)
	return &doc, nil
}

// ListWeightsVersions returns stored versions, newest first.
func (r *SQLRepository) ListWeightsVersions(ctx context.Context) ([]string, error) {
	query := `
		SELECT version
		FROM weights_documents
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []string
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		versions = append(versions, version)
	}

	return versions, rows.Err()
}

// SaveBatchAudit stores one batch audit row.
func (r *SQLRepository) SaveBatchAudit(ctx context.Context, audit *domain.BatchAudit) error {
	if audit == nil || audit.ID == "" {
		return fmt.Errorf("%w: audit id is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO batch_audits (
			id, operation, record_count, failure_count,
			weights_version, duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		audit.ID, string(audit.Operation),
		audit.RecordCount, audit.FailureCount,
		audit.WeightsVersion, audit.DurationMs, audit.CreatedAt,
	)
	return err
}

// ListBatchAudits returns recent batch audits, newest first.
func (r *SQLRepository) ListBatchAudits(ctx context.Context, limit int) ([]*domain.BatchAudit, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, operation, record_count, failure_count,
			   weights_version, duration_ms, created_at
		FROM batch_audits
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var audits []*domain.BatchAudit
	for rows.Next() {
		var audit domain.BatchAudit
		var operation string

		if err := rows.Scan(
			&audit.ID, &operation,
			&audit.RecordCount, &audit.FailureCount,
			&audit.WeightsVersion, &audit.DurationMs, &audit.CreatedAt,
		); err != nil {
			return nil, err
		}

		audit.Operation = domain.Operation(operation)
		audits = append(audits, &audit)
	}

	return audits, rows.Err()
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

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
