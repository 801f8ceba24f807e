package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/aimaneth/blitzproof/internal/persistence"
	"github.com/aimaneth/blitzproof/internal/score"
)

// uniqueViolation is the PostgreSQL error code for a unique constraint hit.
const uniqueViolation = "23505"

// scoresRepo implements persistence.ScoresRepo for PostgreSQL.
type scoresRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewScoresRepo creates a PostgreSQL scores repository.
func NewScoresRepo(db *sqlx.DB, timeout time.Duration) persistence.ScoresRepo {
	return &scoresRepo{
		db:      db,
		timeout: timeout,
	}
}

// scoreRow flattens the nested score entity onto the blitzproof_scores
// columns.
type scoreRow struct {
	TokenID            string       `db:"token_id"`
	OverallScore       int          `db:"overall_score"`
	Rating             score.Rating `db:"rating"`
	CodeSecurity       int          `db:"code_security"`
	Market             int          `db:"market"`
	Governance         int          `db:"governance"`
	Fundamental        int          `db:"fundamental"`
	Community          int          `db:"community"`
	Operational        int          `db:"operational"`
	VerifiedCount      int          `db:"verified_count"`
	InformationalCount int          `db:"informational_count"`
	WarningsCount      int          `db:"warnings_count"`
	CriticalCount      int          `db:"critical_count"`
	LastUpdated        time.Time    `db:"last_updated"`
	UpdatedBy          string       `db:"updated_by"`
}

func toRow(s score.BlitzProofScore) scoreRow {
	return scoreRow{
		TokenID:            s.TokenID,
		OverallScore:       s.OverallScore,
		Rating:             s.Rating,
		CodeSecurity:       s.Categories.CodeSecurity,
		Market:             s.Categories.Market,
		Governance:         s.Categories.Governance,
		Fundamental:        s.Categories.Fundamental,
		Community:          s.Categories.Community,
		Operational:        s.Categories.Operational,
		VerifiedCount:      s.Summary.Verified,
		InformationalCount: s.Summary.Informational,
		WarningsCount:      s.Summary.Warnings,
		CriticalCount:      s.Summary.Critical,
		LastUpdated:        s.LastUpdated,
		UpdatedBy:          s.UpdatedBy,
	}
}

func (r scoreRow) toScore() score.BlitzProofScore {
	return score.BlitzProofScore{
		TokenID:      r.TokenID,
		OverallScore: r.OverallScore,
		Rating:       r.Rating,
		Categories: score.CategoryScores{
			CodeSecurity: r.CodeSecurity,
			Market:       r.Market,
			Governance:   r.Governance,
			Fundamental:  r.Fundamental,
			Community:    r.Community,
			Operational:  r.Operational,
		},
		Summary: score.VulnerabilitySummary{
			Verified:      r.VerifiedCount,
			Informational: r.InformationalCount,
			Warnings:      r.WarningsCount,
			Critical:      r.CriticalCount,
		},
		LastUpdated: r.LastUpdated,
		UpdatedBy:   r.UpdatedBy,
	}
}

const scoreColumns = `token_id, overall_score, rating,
	code_security, market, governance, fundamental, community, operational,
	verified_count, informational_count, warnings_count, critical_count,
	last_updated, updated_by`

const scoreValues = `:token_id, :overall_score, :rating,
	:code_security, :market, :governance, :fundamental, :community, :operational,
	:verified_count, :informational_count, :warnings_count, :critical_count,
	:last_updated, :updated_by`

// Upsert writes the score, replacing any existing row for the token.
func (r *scoresRepo) Upsert(ctx context.Context, s score.BlitzProofScore) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := fmt.Sprintf(`
		INSERT INTO blitzproof_scores (%s)
		VALUES (%s)
		ON CONFLICT (token_id) DO UPDATE SET
			overall_score = EXCLUDED.overall_score,
			rating = EXCLUDED.rating,
			code_security = EXCLUDED.code_security,
			market = EXCLUDED.market,
			governance = EXCLUDED.governance,
			fundamental = EXCLUDED.fundamental,
			community = EXCLUDED.community,
			operational = EXCLUDED.operational,
			verified_count = EXCLUDED.verified_count,
			informational_count = EXCLUDED.informational_count,
			warnings_count = EXCLUDED.warnings_count,
			critical_count = EXCLUDED.critical_count,
			last_updated = EXCLUDED.last_updated,
			updated_by = EXCLUDED.updated_by`, scoreColumns, scoreValues)

	if _, err := r.db.NamedExecContext(ctx, query, toRow(s)); err != nil {
		return fmt.Errorf("failed to upsert score for %s: %w", s.TokenID, err)
	}

	return nil
}

// Insert writes the score and surfaces ErrDuplicate on a token_id collision.
func (r *scoresRepo) Insert(ctx context.Context, s score.BlitzProofScore) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := fmt.Sprintf(`INSERT INTO blitzproof_scores (%s) VALUES (%s)`,
		scoreColumns, scoreValues)

	if _, err := r.db.NamedExecContext(ctx, query, toRow(s)); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("score for %s already exists: %w", s.TokenID, persistence.ErrDuplicate)
		}
		return fmt.Errorf("failed to insert score for %s: %w", s.TokenID, err)
	}

	return nil
}

// Get returns the stored score or persistence.ErrNotFound.
func (r *scoresRepo) Get(ctx context.Context, tokenID string) (score.BlitzProofScore, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := fmt.Sprintf(`SELECT %s FROM blitzproof_scores WHERE token_id = $1`, scoreColumns)

	var row scoreRow
	if err := r.db.GetContext(ctx, &row, query, tokenID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return score.BlitzProofScore{}, persistence.ErrNotFound
		}
		return score.BlitzProofScore{}, fmt.Errorf("failed to query score for %s: %w", tokenID, err)
	}

	return row.toScore(), nil
}

// Delete removes the score row if present.
func (r *scoresRepo) Delete(ctx context.Context, tokenID string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx, `DELETE FROM blitzproof_scores WHERE token_id = $1`, tokenID); err != nil {
		return fmt.Errorf("failed to delete score for %s: %w", tokenID, err)
	}

	return nil
}
