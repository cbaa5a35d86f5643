package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-intake/internal/domain"
)

// TechnicianRepository handles persistence for technicians.
type TechnicianRepository interface {
	Upsert(ctx context.Context, tech *domain.Technician) error
	List(ctx context.Context, filter TechnicianFilter) ([]domain.Technician, error)
	IncrementWorkload(ctx context.Context, id string) error
}

// TechnicianFilter defines query params for technician listing.
type TechnicianFilter struct {
	Active *bool
	Skill  *string
	Limit  int
}

type technicianRepository struct {
	pool *pgxpool.Pool
}

// NewTechnicianRepository instantiates the repository.
func NewTechnicianRepository(pool *pgxpool.Pool) TechnicianRepository {
	return &technicianRepository{pool: pool}
}

func (r *technicianRepository) Upsert(ctx context.Context, tech *domain.Technician) error {
	const query = `
        INSERT INTO technicians (id, name, email, skills, specializations, current_workload, max_workload, active)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (id) DO UPDATE SET
            name=EXCLUDED.name, email=EXCLUDED.email, skills=EXCLUDED.skills,
            specializations=EXCLUDED.specializations, current_workload=EXCLUDED.current_workload,
            max_workload=EXCLUDED.max_workload, active=EXCLUDED.active`

	_, err := r.pool.Exec(ctx, query,
		tech.ID,
		tech.Name,
		tech.Email,
		nonNil(tech.Skills),
		nonNil(tech.Specializations),
		tech.CurrentWorkload,
		tech.MaxWorkload,
		tech.Active,
	)
	return err
}

func (r *technicianRepository) List(ctx context.Context, filter TechnicianFilter) ([]domain.Technician, error) {
	query := `
        SELECT id, name, email, skills, specializations, current_workload, max_workload, active
        FROM technicians`
	args := []any{}
	clauses := []string{}

	if filter.Active != nil {
		args = append(args, *filter.Active)
		clauses = append(clauses, fmt.Sprintf("active=$%d", len(args)))
	}
	if filter.Skill != nil {
		args = append(args, strings.ToLower(*filter.Skill))
		clauses = append(clauses, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM unnest(skills) AS s WHERE STRPOS(LOWER(s), $%d) > 0)", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	query += " ORDER BY name"
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	query += fmt.Sprintf(" LIMIT %d", limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Technician
	for rows.Next() {
		var tech domain.Technician
		if err := rows.Scan(
			&tech.ID,
			&tech.Name,
			&tech.Email,
			&tech.Skills,
			&tech.Specializations,
			&tech.CurrentWorkload,
			&tech.MaxWorkload,
			&tech.Active,
		); err != nil {
			return nil, err
		}
		result = append(result, tech)
	}
	return result, rows.Err()
}

func (r *technicianRepository) IncrementWorkload(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE technicians SET current_workload = current_workload + 1 WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

// MemoryTechnicianRepository keeps technicians in process memory.
type MemoryTechnicianRepository struct {
	mu    sync.RWMutex
	techs map[string]domain.Technician
}

func NewMemoryTechnicianRepository(techs ...domain.Technician) *MemoryTechnicianRepository {
	m := &MemoryTechnicianRepository{techs: make(map[string]domain.Technician)}
	for _, t := range techs {
		m.techs[t.ID] = t
	}
	return m
}

func (m *MemoryTechnicianRepository) Upsert(_ context.Context, tech *domain.Technician) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.techs[tech.ID] = *tech
	return nil
}

func (m *MemoryTechnicianRepository) List(_ context.Context, filter TechnicianFilter) ([]domain.Technician, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Technician
	for _, t := range m.techs {
		if filter.Active != nil && t.Active != *filter.Active {
			continue
		}
		if filter.Skill != nil && !hasSkill(t, *filter.Skill) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *MemoryTechnicianRepository) IncrementWorkload(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.techs[id]
	if !ok {
		return pgx.ErrNoRows
	}
	t.CurrentWorkload++
	m.techs[id] = t
	return nil
}

func hasSkill(t domain.Technician, skill string) bool {
	skill = strings.ToLower(skill)
	for _, s := range t.Skills {
		if strings.Contains(strings.ToLower(s), skill) {
			return true
		}
	}
	return false
}
