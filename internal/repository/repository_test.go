package repository

import (
	"context"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/internal/search"
	apperrors "github.com/spec-kit/ticket-intake/pkg/util/errorutil"
)

func TestBuildSimilarQuery(t *testing.T) {
	query, args := buildSimilarQuery(search.CorpusQuery{Text: "printer jam", MinScore: 0.1, Limit: 5})
	require.Len(t, args, 3)
	assert.Equal(t, "printer jam", args[0])
	assert.Equal(t, 0.1, args[1])
	assert.Equal(t, 5, args[2])
	assert.Contains(t, query, "similarity(title || ' ' || description, $1) >= $2")
	assert.Contains(t, query, "LIMIT $3")
	assert.NotContains(t, query, "unnest")

	query, args = buildSimilarQuery(search.CorpusQuery{Text: "vpn", Keywords: []string{"VPN", "Drops"}})
	require.Len(t, args, 3)
	assert.Equal(t, []string{"vpn", "drops"}, args[1])
	assert.Equal(t, search.MaxTopN, args[2])
	assert.Contains(t, query, "unnest($2::text[])")
	assert.Contains(t, query, "LIMIT $3")
	assert.True(t, strings.Contains(query, eligibleClause))
}

func corpusFixture() []domain.SimilarTicket {
	return []domain.SimilarTicket{
		{TicketNumber: "T20240101.0001", Title: "Printer jam", Description: "Paper stuck in tray two", IssueType: "1"},
		{TicketNumber: "T20240101.0002", Title: "VPN connection drops", Description: "Tunnel resets every hour", IssueType: "4"},
		{TicketNumber: "T20240101.0003", Title: "Outlook crash", Description: "Outlook closes on startup", IssueType: "2"},
		{TicketNumber: "T20240101.0004", Title: "short", Description: "x", IssueType: "5"},
		{TicketNumber: "T20240101.0005", Title: "", Description: "Missing title but long description", IssueType: "5"},
	}
}

func TestMemoryCorpusSimilar(t *testing.T) {
	c := NewMemoryCorpus(corpusFixture())

	got, err := c.Similar(context.Background(), search.CorpusQuery{Text: "printer paper jam", MinScore: 0.1, Limit: 10})
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "T20240101.0001", got[0].TicketNumber)
	for _, r := range got {
		assert.GreaterOrEqual(t, r.Score, 0.1)
	}

	got, err = c.Similar(context.Background(), search.CorpusQuery{Text: "anything", Keywords: []string{"tunnel"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "T20240101.0002", got[0].TicketNumber)
}

func TestMemoryCorpusRecentSkipsIneligible(t *testing.T) {
	c := NewMemoryCorpus(corpusFixture())
	got, err := c.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "T20240101.0003", got[0].TicketNumber)
	assert.Equal(t, "T20240101.0001", got[2].TicketNumber)

	got, err = c.Recent(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestMemoryCorpusCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemoryCorpus(nil).Recent(ctx, 5)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTrigramSimilarity(t *testing.T) {
	same := trigramSimilarity(trigrams("Printer"), trigrams("printer"))
	assert.InDelta(t, 1.0, same, 1e-9)
	assert.Zero(t, trigramSimilarity(trigrams(""), trigrams("printer")))
	partial := trigramSimilarity(trigrams("printer"), trigrams("printers"))
	assert.Greater(t, partial, 0.5)
	assert.Less(t, partial, 1.0)
}

func TestMemoryTicketRepository(t *testing.T) {
	repo := NewMemoryTicketRepository()
	ctx := context.Background()

	for _, n := range []string{"T20240101.0001", "T20240101.0002", "T20240102.0001"} {
		require.NoError(t, repo.Create(ctx, &domain.TicketRecord{TicketNumber: n}))
	}

	err := repo.Create(ctx, &domain.TicketRecord{TicketNumber: "T20240101.0001"})
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "CONFLICT", domainErr.Code)

	rec, err := repo.GetByNumber(ctx, "T20240101.0002")
	require.NoError(t, err)
	assert.Equal(t, "T20240101.0002", rec.TicketNumber)

	_, err = repo.GetByNumber(ctx, "T20990101.0001")
	assert.ErrorIs(t, err, pgx.ErrNoRows)

	list, err := repo.ListRecent(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "T20240102.0001", list[0].TicketNumber)

	list, err = repo.ListRecent(ctx, 2, 5)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMemoryTechnicianRepository(t *testing.T) {
	repo := NewMemoryTechnicianRepository(
		domain.Technician{ID: "a", Name: "Alice", Skills: []string{"Printer Support"}, Active: true, MaxWorkload: 5},
		domain.Technician{ID: "b", Name: "Bob", Skills: []string{"Network Troubleshooting"}, Active: false, MaxWorkload: 5},
	)
	ctx := context.Background()
	active := true

	got, err := repo.List(ctx, TechnicianFilter{Active: &active})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Alice", got[0].Name)

	skill := "network"
	got, err = repo.List(ctx, TechnicianFilter{Skill: &skill})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Bob", got[0].Name)

	require.NoError(t, repo.IncrementWorkload(ctx, "a"))
	got, _ = repo.List(ctx, TechnicianFilter{Active: &active})
	assert.Equal(t, 1, got[0].CurrentWorkload)

	assert.ErrorIs(t, repo.IncrementWorkload(ctx, "zz"), pgx.ErrNoRows)
}
