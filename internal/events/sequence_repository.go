package events

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SequenceRepository numbers the envelopes published for one partition key.
type SequenceRepository interface {
	NextSequence(ctx context.Context, partitionKey string) (int64, error)
}

type sqlSequenceRepository struct {
	db *sql.DB
}

func NewSequenceRepository(db *sql.DB) SequenceRepository {
	return &sqlSequenceRepository{db: db}
}

const nextSequenceSQL = `
INSERT INTO event_sequences AS s (partition_key, last_sequence, updated_at)
VALUES ($1, 1, NOW())
ON CONFLICT (partition_key) DO UPDATE
SET last_sequence = s.last_sequence + 1, updated_at = NOW()
RETURNING last_sequence`

// NextSequence bumps the counter of partitionKey in a single upsert. The first
// call for a key returns 1.
func (r *sqlSequenceRepository) NextSequence(ctx context.Context, partitionKey string) (int64, error) {
	if partitionKey == "" {
		return 0, errors.New("partition key is required")
	}

	var next int64
	if err := r.db.QueryRowContext(ctx, nextSequenceSQL, partitionKey).Scan(&next); err != nil {
		return 0, fmt.Errorf("next sequence for %s: %w", partitionKey, err)
	}
	return next, nil
}
