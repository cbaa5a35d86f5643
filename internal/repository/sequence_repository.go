package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SequenceRepository keeps per-day ticket counters in Postgres. It
// satisfies sequence.Store.
type SequenceRepository struct {
	pool *pgxpool.Pool
}

func NewSequenceRepository(pool *pgxpool.Pool) *SequenceRepository {
	return &SequenceRepository{pool: pool}
}

// Increment bumps the counter for day in a single statement, so concurrent
// callers on any node never observe the same value. The counter is raised to
// atLeast when it lags behind numbers the caller already issued.
func (r *SequenceRepository) Increment(ctx context.Context, day string, atLeast int) (int, error) {
	const query = `
        INSERT INTO ticket_sequences (day, count) VALUES ($1, GREATEST(1, $2::int))
        ON CONFLICT (day) DO UPDATE SET count = GREATEST(ticket_sequences.count + 1, $2::int)
        RETURNING count`
	var count int
	if err := r.pool.QueryRow(ctx, query, day, atLeast).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
