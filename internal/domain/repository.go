package domain

import (
	"context"
	"time"
)

// WeightsDocument is one stored weights configuration document (raw
// YAML bytes plus identity). Documents are append-only: a reload never
// rewrites history.
type WeightsDocument struct {
	Version    string    `json:"version"`
	Document   []byte    `json:"document"`
	LoadedFrom string    `json:"loadedFrom"` // "file" or "api"
	CreatedAt  time.Time `json:"createdAt"`
}

// BatchAudit records one completed batch run for later inspection.
// Only metadata is stored; uploaded files and record payloads are not
// persisted.
type BatchAudit struct {
	ID             string    `json:"id"`
	Operation      Operation `json:"operation"`
	RecordCount    int       `json:"recordCount"`
	FailureCount   int       `json:"failureCount"`
	WeightsVersion string    `json:"weightsVersion"`
	DurationMs     int64     `json:"durationMs"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Repository defines the interface for data persistence.
type Repository interface {
	// Weights document operations
	SaveWeightsDocument(ctx context.Context, doc *WeightsDocument) error
	GetWeightsDocument(ctx context.Context, version string) (*WeightsDocument, error)
	LatestWeightsDocument(ctx context.Context) (*WeightsDocument, error)
	ListWeightsVersions(ctx context.Context) ([]string, error)

	// Batch audit operations
	SaveBatchAudit(ctx context.Context, audit *BatchAudit) error
	ListBatchAudits(ctx context.Context, limit int) ([]*BatchAudit, error)

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
