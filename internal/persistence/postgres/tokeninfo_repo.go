package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/aimaneth/blitzproof/internal/persistence"
)

// tokenInfoRepo implements persistence.TokenInfoRepo for PostgreSQL. Tags
// and socials are stored as JSONB.
type tokenInfoRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewTokenInfoRepo creates a PostgreSQL token info repository.
func NewTokenInfoRepo(db *sqlx.DB, timeout time.Duration) persistence.TokenInfoRepo {
	return &tokenInfoRepo{
		db:      db,
		timeout: timeout,
	}
}

// Upsert writes the metadata, replacing any existing row.
func (r *tokenInfoRepo) Upsert(ctx context.Context, info persistence.TokenInfo) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tagsJSON, err := json.Marshal(info.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}
	socialsJSON, err := json.Marshal(info.Socials)
	if err != nil {
		return fmt.Errorf("failed to marshal socials: %w", err)
	}

	query := `
		INSERT INTO token_info (token_id, name, symbol, rank, audits, contract_address, contract_score, description, website, tags, socials, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (token_id) DO UPDATE SET
			name = EXCLUDED.name,
			symbol = EXCLUDED.symbol,
			rank = EXCLUDED.rank,
			audits = EXCLUDED.audits,
			contract_address = EXCLUDED.contract_address,
			contract_score = EXCLUDED.contract_score,
			description = EXCLUDED.description,
			website = EXCLUDED.website,
			tags = EXCLUDED.tags,
			socials = EXCLUDED.socials,
			updated_at = EXCLUDED.updated_at`

	if _, err := r.db.ExecContext(ctx, query,
		info.TokenID, info.Name, info.Symbol, info.Rank, info.Audits,
		info.ContractAddress, info.ContractScore, info.Description,
		info.Website, tagsJSON, socialsJSON, info.UpdatedAt); err != nil {
		return fmt.Errorf("failed to upsert token info for %s: %w", info.TokenID, err)
	}

	return nil
}

// Get returns the stored metadata or persistence.ErrNotFound.
func (r *tokenInfoRepo) Get(ctx context.Context, tokenID string) (persistence.TokenInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT token_id, name, symbol, rank, audits, contract_address, contract_score, description, website, tags, socials, updated_at
		FROM token_info
		WHERE token_id = $1`

	var (
		info        persistence.TokenInfo
		tagsJSON    []byte
		socialsJSON []byte
	)

	err := r.db.QueryRowxContext(ctx, query, tokenID).Scan(
		&info.TokenID, &info.Name, &info.Symbol, &info.Rank, &info.Audits,
		&info.ContractAddress, &info.ContractScore, &info.Description,
		&info.Website, &tagsJSON, &socialsJSON, &info.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.TokenInfo{}, persistence.ErrNotFound
		}
		return persistence.TokenInfo{}, fmt.Errorf("failed to query token info for %s: %w", tokenID, err)
	}

	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &info.Tags); err != nil {
			return persistence.TokenInfo{}, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
	}
	if len(socialsJSON) > 0 {
		if err := json.Unmarshal(socialsJSON, &info.Socials); err != nil {
			return persistence.TokenInfo{}, fmt.Errorf("failed to unmarshal socials: %w", err)
		}
	}

	return info, nil
}

// Delete removes the metadata row if present.
func (r *tokenInfoRepo) Delete(ctx context.Context, tokenID string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `DELETE FROM token_info WHERE token_id = $1`, tokenID); err != nil {
		return fmt.Errorf("failed to delete token info for %s: %w", tokenID, err)
	}

	return nil
}
