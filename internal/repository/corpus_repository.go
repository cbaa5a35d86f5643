package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/internal/search"
)

const corpusColumns = `ticket_number, title, description, issuetype, subissuetype, ticketcategory,
                    tickettype, priority, status, resolution`

// eligibleClause restricts the corpus to tickets with usable text.
const eligibleClause = `BTRIM(title) <> '' AND BTRIM(description) <> ''
      AND LENGTH(BTRIM(title) || ' ' || BTRIM(description)) > 10`

// CorpusRepository reads historical tickets and scores them with pg_trgm.
type CorpusRepository interface {
	search.Corpus
	Upsert(ctx context.Context, tickets []domain.SimilarTicket) (int, error)
}

type corpusRepository struct {
	pool *pgxpool.Pool
}

// NewCorpusRepository instantiates the repository.
func NewCorpusRepository(pool *pgxpool.Pool) CorpusRepository {
	return &corpusRepository{pool: pool}
}

func (r *corpusRepository) Similar(ctx context.Context, q search.CorpusQuery) ([]domain.SimilarTicket, error) {
	query, args := buildSimilarQuery(q)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCorpus(rows, true)
}

func (r *corpusRepository) Recent(ctx context.Context, limit int) ([]domain.SimilarTicket, error) {
	query := fmt.Sprintf(`SELECT %s FROM corpus_tickets WHERE %s ORDER BY ticket_number DESC LIMIT $1`,
		corpusColumns, eligibleClause)
	rows, err := r.pool.Query(ctx, query, normalizeLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCorpus(rows, false)
}

// Upsert loads tickets into the corpus, replacing rows with the same number.
func (r *corpusRepository) Upsert(ctx context.Context, tickets []domain.SimilarTicket) (int, error) {
	const query = `
        INSERT INTO corpus_tickets (ticket_number, title, description, issuetype, subissuetype,
            ticketcategory, tickettype, priority, status, resolution)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        ON CONFLICT (ticket_number) DO UPDATE SET
            title=EXCLUDED.title, description=EXCLUDED.description, issuetype=EXCLUDED.issuetype,
            subissuetype=EXCLUDED.subissuetype, ticketcategory=EXCLUDED.ticketcategory,
            tickettype=EXCLUDED.tickettype, priority=EXCLUDED.priority, status=EXCLUDED.status,
            resolution=EXCLUDED.resolution`

	batch := &pgx.Batch{}
	for _, t := range tickets {
		batch.Queue(query, t.TicketNumber, t.Title, t.Description, t.IssueType, t.SubIssueType,
			t.TicketCategory, t.TicketType, t.Priority, t.Status, t.Resolution)
	}
	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()
	for i := range tickets {
		if _, err := results.Exec(); err != nil {
			return i, fmt.Errorf("upserting %s: %w", tickets[i].TicketNumber, err)
		}
	}
	return len(tickets), nil
}

// buildSimilarQuery scores every eligible ticket against q.Text, optionally
// narrowed to rows containing a keyword.
func buildSimilarQuery(q search.CorpusQuery) (string, []any) {
	args := []any{q.Text}
	clauses := []string{eligibleClause}

	if q.MinScore > 0 {
		args = append(args, q.MinScore)
		clauses = append(clauses, fmt.Sprintf("similarity(title || ' ' || description, $1) >= $%d", len(args)))
	}
	if len(q.Keywords) > 0 {
		lowered := make([]string, len(q.Keywords))
		for i, kw := range q.Keywords {
			lowered[i] = strings.ToLower(kw)
		}
		args = append(args, lowered)
		clauses = append(clauses, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM unnest($%d::text[]) AS kw WHERE STRPOS(LOWER(title), kw) > 0 OR STRPOS(LOWER(description), kw) > 0)",
			len(args)))
	}

	args = append(args, normalizeLimit(q.Limit))
	query := fmt.Sprintf(`SELECT %s, similarity(title || ' ' || description, $1) AS score
             FROM corpus_tickets
             WHERE %s
             ORDER BY score DESC, ticket_number
             LIMIT $%d`, corpusColumns, strings.Join(clauses, " AND "), len(args))
	return query, args
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return search.MaxTopN
	}
	return limit
}

func scanCorpus(rows pgx.Rows, scored bool) ([]domain.SimilarTicket, error) {
	var result []domain.SimilarTicket
	for rows.Next() {
		var t domain.SimilarTicket
		dest := []any{
			&t.TicketNumber,
			&t.Title,
			&t.Description,
			&t.IssueType,
			&t.SubIssueType,
			&t.TicketCategory,
			&t.TicketType,
			&t.Priority,
			&t.Status,
			&t.Resolution,
		}
		if scored {
			var score float32
			dest = append(dest, &score)
			if err := rows.Scan(dest...); err != nil {
				return nil, err
			}
			t.Score = float64(score)
		} else if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	return result, rows.Err()
}
