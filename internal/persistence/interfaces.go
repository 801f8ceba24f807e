// Package persistence defines the storage contracts for scores and token
// metadata. Concrete implementations live in subpackages.
package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/aimaneth/blitzproof/internal/score"
)

// ErrNotFound is returned when no row exists for the requested token.
var ErrNotFound = errors.New("persistence: not found")

// ErrDuplicate is returned when an insert collides with an existing row.
var ErrDuplicate = errors.New("persistence: duplicate row")

// TokenInfo is curated metadata about a token, editable by admins.
type TokenInfo struct {
	TokenID         string            `json:"token_id" db:"token_id"`
	Name            string            `json:"name" db:"name"`
	Symbol          string            `json:"symbol" db:"symbol"`
	Rank            int               `json:"rank" db:"rank"`
	Audits          int               `json:"audits" db:"audits"`
	ContractAddress string            `json:"contract_address" db:"contract_address"`
	ContractScore   int               `json:"contract_score" db:"contract_score"`
	Description     string            `json:"description" db:"description"`
	Website         string            `json:"website" db:"website"`
	Tags            []string          `json:"tags"`
	Socials         map[string]string `json:"socials"`
	UpdatedAt       time.Time         `json:"updated_at" db:"updated_at"`
}

// ScoresRepo stores one score row per token.
type ScoresRepo interface {
	// Upsert writes the score, replacing any existing row for the token.
	Upsert(ctx context.Context, s score.BlitzProofScore) error

	// Insert writes the score and fails with ErrDuplicate when a row for
	// the token already exists.
	Insert(ctx context.Context, s score.BlitzProofScore) error

	// Get returns the stored score or ErrNotFound.
	Get(ctx context.Context, tokenID string) (score.BlitzProofScore, error)

	// Delete removes the score row. Deleting a missing row is not an error.
	Delete(ctx context.Context, tokenID string) error
}

// TokenInfoRepo stores curated token metadata.
type TokenInfoRepo interface {
	// Upsert writes the metadata, replacing any existing row.
	Upsert(ctx context.Context, info TokenInfo) error

	// Get returns the stored metadata or ErrNotFound.
	Get(ctx context.Context, tokenID string) (TokenInfo, error)

	// Delete removes the metadata row. Deleting a missing row is not an
	// error.
	Delete(ctx context.Context, tokenID string) error
}

// Repository aggregates all storage interfaces behind one handle.
type Repository struct {
	Scores    ScoresRepo
	TokenInfo TokenInfoRepo
}

// HealthCheck reports storage connectivity and pool state.
type HealthCheck struct {
	Healthy        bool           `json:"healthy"`
	Errors         []string       `json:"errors,omitempty"`
	ConnectionPool map[string]int `json:"connection_pool"`
	LastCheck      time.Time      `json:"last_check"`
	ResponseTimeMS int64          `json:"response_time_ms"`
}

// RepositoryHealth exposes storage health to the HTTP surface.
type RepositoryHealth interface {
	Health(ctx context.Context) HealthCheck
	Ping(ctx context.Context) error
}
