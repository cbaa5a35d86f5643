package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-intake/internal/config"
	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/internal/repository"
)

var fixedNow = time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)

func recordWith(issueType, priority string) *domain.TicketRecord {
	return &domain.TicketRecord{
		TicketNumber: "T20240305.0001",
		Classification: domain.Classification{
			domain.FieldIssueType: {Value: "x", Label: issueType},
			domain.FieldPriority:  {Value: "y", Label: priority},
		},
	}
}

func newAssignment(repo repository.TechnicianRepository) *AssignmentService {
	return NewAssignmentService(AssignmentDependencies{
		TechnicianRepo: repo,
		Config:         config.AssignmentConfig{FallbackName: "IT Manager", FallbackEmail: "itmanager@company.com"},
		Now:            func() time.Time { return fixedNow },
	})
}

func TestAssignPicksBestScore(t *testing.T) {
	repo := repository.NewMemoryTechnicianRepository(
		domain.Technician{ID: "net", Name: "Nadia", Email: "nadia@x", Active: true, MaxWorkload: 10,
			Skills: []string{"Network Troubleshooting", "WiFi Setup"}, Specializations: []string{"Network"}},
		domain.Technician{ID: "hw", Name: "Hugo", Email: "hugo@x", Active: true, MaxWorkload: 10,
			Skills: []string{"PC Repair"}, Specializations: []string{"Hardware"}},
		domain.Technician{ID: "off", Name: "Olga", Active: false, MaxWorkload: 10,
			Skills: []string{"Network Troubleshooting", "Router Configuration", "WiFi Setup"}, Specializations: []string{"Network"}},
	)
	s := newAssignment(repo)

	got, err := s.Assign(context.Background(), recordWith("Network", "Critical"))
	require.NoError(t, err)
	assert.Equal(t, "Nadia", got.TechnicianName)
	assert.Equal(t, domain.AssignmentStatusAssigned, got.Status)
	// 2/3 skills, role, specialization, idle workload, critical boost
	assert.InDelta(t, 2.0/3*0.4+0.3+0.2+0.1+0.1, got.Score, 1e-9)
	assert.Contains(t, got.Reasoning, "Skill match: 2/3")
	assert.Equal(t, fixedNow, got.AssignedAt)

	active := true
	techs, err := repo.List(context.Background(), repository.TechnicianFilter{Active: &active})
	require.NoError(t, err)
	for _, tech := range techs {
		if tech.ID == "net" {
			assert.Equal(t, 1, tech.CurrentWorkload)
		}
	}
}

func TestAssignSkipsFullTechnicians(t *testing.T) {
	repo := repository.NewMemoryTechnicianRepository(
		domain.Technician{ID: "full", Name: "Fay", Active: true, CurrentWorkload: 3, MaxWorkload: 3,
			Skills: []string{"Email Configuration"}, Specializations: []string{"Email"}},
	)
	got, err := newAssignment(repo).Assign(context.Background(), recordWith("Email", "Low"))
	require.NoError(t, err)
	assert.Equal(t, domain.AssignmentStatusEscalated, got.Status)
	assert.Equal(t, "IT Manager", got.TechnicianName)
	assert.Equal(t, "itmanager@company.com", got.TechnicianEmail)
}

func TestAssignEscalatesWithoutTechnicians(t *testing.T) {
	got, err := newAssignment(repository.NewMemoryTechnicianRepository()).Assign(context.Background(), recordWith("", ""))
	require.NoError(t, err)
	assert.Equal(t, domain.AssignmentStatusEscalated, got.Status)
	assert.Zero(t, got.Score)
}

type brokenTechnicians struct {
	repository.TechnicianRepository
}

func (brokenTechnicians) List(context.Context, repository.TechnicianFilter) ([]domain.Technician, error) {
	return nil, errors.New("connection refused")
}

func TestAssignPropagatesRepositoryError(t *testing.T) {
	_, err := newAssignment(brokenTechnicians{}).Assign(context.Background(), recordWith("Network", "Low"))
	assert.Error(t, err)
}

func TestRequiredSkillsDefault(t *testing.T) {
	assert.Equal(t, []string{"General IT Support"}, requiredSkills("Printer"))
	assert.Len(t, requiredSkills("Server"), 3)
}
