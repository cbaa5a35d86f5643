package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-intake/internal/domain"
	apperrors "github.com/spec-kit/ticket-intake/pkg/util/errorutil"
)

// TicketRepository is the append-only store of processed tickets.
type TicketRepository interface {
	Create(ctx context.Context, record *domain.TicketRecord) error
	GetByNumber(ctx context.Context, number string) (*domain.TicketRecord, error)
	ListRecent(ctx context.Context, limit, offset int) ([]domain.TicketRecord, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `ticket_number, title, description, requester_name, requester_email, requester_phone,
               requester_user_id, initial_priority, due_date, metadata, classification,
               similar_tickets, resolution_note, assignment, notified, created_at`

func (r *ticketRepository) Create(ctx context.Context, record *domain.TicketRecord) error {
	metadata, err := json.Marshal(record.Metadata)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	classification, err := json.Marshal(record.Classification)
	if err != nil {
		return fmt.Errorf("encoding classification: %w", err)
	}
	assignment, err := json.Marshal(record.Assignment)
	if err != nil {
		return fmt.Errorf("encoding assignment: %w", err)
	}
	similar := record.SimilarTickets
	if similar == nil {
		similar = []string{}
	}

	const query = `
        INSERT INTO tickets (ticket_number, title, description, requester_name, requester_email, requester_phone,
            requester_user_id, initial_priority, due_date, metadata, classification, similar_tickets,
            resolution_note, assignment, notified, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`
	_, err = r.pool.Exec(ctx, query,
		record.TicketNumber,
		record.Request.Title,
		record.Request.Description,
		record.Request.Requester.Name,
		record.Request.Requester.Email,
		record.Request.Requester.Phone,
		record.Request.Requester.UserID,
		record.Request.InitialPriority,
		record.Request.DueDate,
		metadata,
		classification,
		similar,
		record.ResolutionNote,
		assignment,
		record.Notified,
		record.CreatedAt,
	)
	return err
}

func (r *ticketRepository) GetByNumber(ctx context.Context, number string) (*domain.TicketRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE ticket_number=$1`, ticketColumns)
	rows, err := r.pool.Query(ctx, query, number)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	records, err := scanTickets(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, pgx.ErrNoRows
	}
	return &records[0], nil
}

func (r *ticketRepository) ListRecent(ctx context.Context, limit, offset int) ([]domain.TicketRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	query := fmt.Sprintf(`SELECT %s FROM tickets ORDER BY ticket_number DESC LIMIT $1 OFFSET $2`, ticketColumns)
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func scanTickets(rows pgx.Rows) ([]domain.TicketRecord, error) {
	var result []domain.TicketRecord
	for rows.Next() {
		var (
			record                             domain.TicketRecord
			metadata, classification, assigned []byte
		)
		if err := rows.Scan(
			&record.TicketNumber,
			&record.Request.Title,
			&record.Request.Description,
			&record.Request.Requester.Name,
			&record.Request.Requester.Email,
			&record.Request.Requester.Phone,
			&record.Request.Requester.UserID,
			&record.Request.InitialPriority,
			&record.Request.DueDate,
			&metadata,
			&classification,
			&record.SimilarTickets,
			&record.ResolutionNote,
			&assigned,
			&record.Notified,
			&record.CreatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(metadata, &record.Metadata); err != nil {
			return nil, fmt.Errorf("decoding metadata of %s: %w", record.TicketNumber, err)
		}
		if err := json.Unmarshal(classification, &record.Classification); err != nil {
			return nil, fmt.Errorf("decoding classification of %s: %w", record.TicketNumber, err)
		}
		if err := json.Unmarshal(assigned, &record.Assignment); err != nil {
			return nil, fmt.Errorf("decoding assignment of %s: %w", record.TicketNumber, err)
		}
		result = append(result, record)
	}
	return result, rows.Err()
}

// MemoryTicketRepository keeps records in process memory.
type MemoryTicketRepository struct {
	mu      sync.RWMutex
	records map[string]domain.TicketRecord
}

func NewMemoryTicketRepository() *MemoryTicketRepository {
	return &MemoryTicketRepository{records: make(map[string]domain.TicketRecord)}
}

func (m *MemoryTicketRepository) Create(_ context.Context, record *domain.TicketRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.records[record.TicketNumber]; exists {
		return apperrors.NewConflict("ticket already exists", map[string]any{"ticket_number": record.TicketNumber})
	}
	m.records[record.TicketNumber] = *record
	return nil
}

func (m *MemoryTicketRepository) GetByNumber(_ context.Context, number string) (*domain.TicketRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.records[number]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &record, nil
}

func (m *MemoryTicketRepository) ListRecent(_ context.Context, limit, offset int) ([]domain.TicketRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.TicketRecord, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TicketNumber > out[j].TicketNumber })
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(out) {
		return []domain.TicketRecord{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
