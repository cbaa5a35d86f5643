package search

import (
	"context"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/spec-kit/ticket-intake/internal/domain"
)

// Tier names.
const (
	TierSemantic = "semantic"
	TierHybrid   = "hybrid"
	TierRecency  = "recency"
)

// DefaultThreshold is the minimum semantic score kept by the first tier.
const DefaultThreshold = 0.1

const minEligibleRunes = 11

// CorpusQuery selects and scores historical tickets.
type CorpusQuery struct {
	// Text is compared against each ticket's "title description".
	Text string
	// Keywords, when set, keeps only tickets whose title or description
	// contains at least one of them.
	Keywords []string
	MinScore float64
	Limit    int
}

// Corpus is the store of historical tickets and its similarity primitive.
// Implementations only return eligible tickets: non-empty title and
// description with a combined length above ten characters.
type Corpus interface {
	Similar(ctx context.Context, q CorpusQuery) ([]domain.SimilarTicket, error)
	Recent(ctx context.Context, limit int) ([]domain.SimilarTicket, error)
}

// Query is the input shared by every tier.
type Query struct {
	Title       string
	Description string
	TopN        int
}

// Text joins the trimmed title and description.
func (q Query) Text() string {
	return strings.TrimSpace(strings.TrimSpace(q.Title) + " " + strings.TrimSpace(q.Description))
}

// Tier is one strategy of the similarity cascade.
type Tier interface {
	Name() string
	Search(ctx context.Context, q Query) ([]domain.SimilarTicket, error)
}

// SemanticTier scores the whole corpus and keeps scores at or above the
// threshold.
type SemanticTier struct {
	Corpus    Corpus
	Threshold float64
}

func (t SemanticTier) Name() string { return TierSemantic }

func (t SemanticTier) Search(ctx context.Context, q Query) ([]domain.SimilarTicket, error) {
	rows, err := t.Corpus.Similar(ctx, CorpusQuery{Text: q.Text(), MinScore: t.Threshold, Limit: q.TopN})
	if err != nil {
		return nil, err
	}
	kept := make([]domain.SimilarTicket, 0, len(rows))
	for _, row := range rows {
		if eligible(row) && row.Score >= t.Threshold {
			kept = append(kept, row)
		}
	}
	return rank(kept, q.TopN), nil
}

// HybridTier narrows the corpus by keyword before scoring. No threshold is
// applied.
type HybridTier struct {
	Corpus Corpus
}

func (t HybridTier) Name() string { return TierHybrid }

func (t HybridTier) Search(ctx context.Context, q Query) ([]domain.SimilarTicket, error) {
	keywords := ExtractKeywords(q.Text())
	if len(keywords) == 0 {
		return nil, nil
	}
	rows, err := t.Corpus.Similar(ctx, CorpusQuery{Text: q.Text(), Keywords: keywords, Limit: q.TopN})
	if err != nil {
		return nil, err
	}
	kept := make([]domain.SimilarTicket, 0, len(rows))
	for _, row := range rows {
		if eligible(row) && (containsAny(row.Title, keywords) || containsAny(row.Description, keywords)) {
			kept = append(kept, row)
		}
	}
	return rank(kept, q.TopN), nil
}

// RecencyTier returns the most recently numbered tickets, unscored.
type RecencyTier struct {
	Corpus Corpus
}

func (t RecencyTier) Name() string { return TierRecency }

func (t RecencyTier) Search(ctx context.Context, q Query) ([]domain.SimilarTicket, error) {
	rows, err := t.Corpus.Recent(ctx, q.TopN)
	if err != nil {
		return nil, err
	}
	kept := make([]domain.SimilarTicket, 0, len(rows))
	for _, row := range rows {
		if eligible(row) {
			row.Score = 0
			kept = append(kept, row)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].TicketNumber > kept[j].TicketNumber
	})
	return truncate(kept, q.TopN), nil
}

func eligible(t domain.SimilarTicket) bool {
	title := strings.TrimSpace(t.Title)
	desc := strings.TrimSpace(t.Description)
	if title == "" || desc == "" {
		return false
	}
	return utf8.RuneCountInString(title)+1+utf8.RuneCountInString(desc) >= minEligibleRunes
}

// rank sorts by descending score, keeping input order for ties.
func rank(rows []domain.SimilarTicket, topN int) []domain.SimilarTicket {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Score > rows[j].Score
	})
	return truncate(rows, topN)
}

func truncate(rows []domain.SimilarTicket, topN int) []domain.SimilarTicket {
	if topN > 0 && len(rows) > topN {
		return rows[:topN]
	}
	return rows
}
