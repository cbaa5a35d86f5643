package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/internal/search"
)

// MemoryCorpus is an in-process corpus for running without Postgres. It
// scores with the same trigram similarity pg_trgm uses.
type MemoryCorpus struct {
	mu      sync.RWMutex
	tickets map[string]domain.SimilarTicket
}

func NewMemoryCorpus(tickets []domain.SimilarTicket) *MemoryCorpus {
	c := &MemoryCorpus{tickets: make(map[string]domain.SimilarTicket)}
	_, _ = c.Upsert(context.Background(), tickets)
	return c
}

func (c *MemoryCorpus) Upsert(_ context.Context, tickets []domain.SimilarTicket) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range tickets {
		c.tickets[t.TicketNumber] = t
	}
	return len(tickets), nil
}

func (c *MemoryCorpus) Similar(ctx context.Context, q search.CorpusQuery) ([]domain.SimilarTicket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	query := trigrams(q.Text)
	var out []domain.SimilarTicket
	for _, t := range c.eligible() {
		if len(q.Keywords) > 0 && !matchesKeyword(t, q.Keywords) {
			continue
		}
		t.Score = trigramSimilarity(query, trigrams(t.Title+" "+t.Description))
		if t.Score < q.MinScore {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].TicketNumber < out[j].TicketNumber
	})
	return limitRows(out, q.Limit), nil
}

func (c *MemoryCorpus) Recent(ctx context.Context, limit int) ([]domain.SimilarTicket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := c.eligible()
	sort.Slice(out, func(i, j int) bool { return out[i].TicketNumber > out[j].TicketNumber })
	return limitRows(out, limit), nil
}

func (c *MemoryCorpus) eligible() []domain.SimilarTicket {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.SimilarTicket, 0, len(c.tickets))
	for _, t := range c.tickets {
		title := strings.TrimSpace(t.Title)
		desc := strings.TrimSpace(t.Description)
		if title == "" || desc == "" || utf8.RuneCountInString(title+" "+desc) <= 10 {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TicketNumber < out[j].TicketNumber })
	return out
}

func matchesKeyword(t domain.SimilarTicket, keywords []string) bool {
	title := strings.ToLower(t.Title)
	desc := strings.ToLower(t.Description)
	for _, kw := range keywords {
		kw = strings.ToLower(kw)
		if strings.Contains(title, kw) || strings.Contains(desc, kw) {
			return true
		}
	}
	return false
}

func limitRows(rows []domain.SimilarTicket, limit int) []domain.SimilarTicket {
	limit = normalizeLimit(limit)
	if len(rows) > limit {
		return rows[:limit]
	}
	return rows
}

// trigrams extracts the pg_trgm trigram set: each alphanumeric word is
// lower-cased and padded with two leading spaces and one trailing space.
func trigrams(text string) map[string]struct{} {
	set := make(map[string]struct{})
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		padded := []rune("  " + w + " ")
		for i := 0; i+3 <= len(padded); i++ {
			set[string(padded[i:i+3])] = struct{}{}
		}
	}
	return set
}

func trigramSimilarity(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared := 0
	for g := range a {
		if _, ok := b[g]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(a)+len(b)-shared)
}
