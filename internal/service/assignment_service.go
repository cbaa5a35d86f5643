package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-intake/internal/config"
	"github.com/spec-kit/ticket-intake/internal/domain"
	"github.com/spec-kit/ticket-intake/internal/repository"
)

// Assigner picks a technician for a classified ticket.
type Assigner interface {
	Assign(ctx context.Context, record *domain.TicketRecord) (domain.Assignment, error)
}

// Score weights.
const (
	weightSkill          = 0.4
	weightRole           = 0.3
	weightSpecialization = 0.2
	weightWorkload       = 0.1
	criticalBoost        = 0.1
)

var fallbackSkills = map[string][]string{
	"Hardware":      {"Hardware Troubleshooting", "PC Repair", "Printer Support"},
	"Software/SaaS": {"Software Installation", "Application Support", "Troubleshooting"},
	"Network":       {"Network Troubleshooting", "Router Configuration", "WiFi Setup"},
	"Security":      {"Security Analysis", "Antivirus Support", "Access Control"},
	"Database":      {"SQL Database", "Database Administration", "Data Recovery"},
	"Email":         {"Email Configuration", "Outlook Support", "Exchange Server"},
	"Server":        {"Windows Server", "Linux Server", "Server Administration"},
}

var defaultSkills = []string{"General IT Support"}

type roleIssues struct {
	role   string
	issues []string
}

// roleIssueMap is ordered so the first matching role wins.
var roleIssueMap = []roleIssues{
	{"Email", []string{"Email", "Outlook", "Exchange"}},
	{"Hardware", []string{"Hardware", "PC", "Printer", "Device"}},
	{"Software", []string{"Software", "SaaS", "Application"}},
	{"Network", []string{"Network", "WiFi", "Router", "Connectivity"}},
	{"Security", []string{"Security", "Antivirus", "Threat"}},
	{"Database", []string{"Database", "SQL", "Data"}},
	{"System Admin", []string{"Server", "System", "Admin"}},
	{"IT Support", []string{"General", "Support", "Help Desk"}},
}

// AssignmentService scores active technicians against a ticket.
type AssignmentService struct {
	technicians repository.TechnicianRepository
	fallback    config.AssignmentConfig
	logger      *zap.Logger
	now         func() time.Time
}

// AssignmentDependencies bundles collaborators.
type AssignmentDependencies struct {
	TechnicianRepo repository.TechnicianRepository
	Config         config.AssignmentConfig
	Logger         *zap.Logger
	Now            func() time.Time
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &AssignmentService{
		technicians: deps.TechnicianRepo,
		fallback:    deps.Config,
		logger:      logger,
		now:         now,
	}
}

// Assign returns the best scoring technician, or the escalation contact
// when nobody scores above zero.
func (s *AssignmentService) Assign(ctx context.Context, record *domain.TicketRecord) (domain.Assignment, error) {
	techs, err := s.technicians.List(ctx, repository.TechnicianFilter{Active: ptrBool(true), Limit: 1000})
	if err != nil {
		return domain.Assignment{}, fmt.Errorf("listing technicians: %w", err)
	}

	issueType := record.Classification.Get(domain.FieldIssueType).Label
	priority := record.Classification.Get(domain.FieldPriority).Label

	var (
		best      *domain.Technician
		bestScore float64
		reasoning string
	)
	for i := range techs {
		tech := techs[i]
		if tech.MaxWorkload > 0 && tech.CurrentWorkload >= tech.MaxWorkload {
			continue
		}
		score, why := scoreTechnician(tech, issueType, priority)
		if score > bestScore {
			best, bestScore, reasoning = &techs[i], score, why
		}
	}

	if best == nil {
		s.logger.Warn("no suitable technician, escalating",
			zap.String("ticket_number", record.TicketNumber),
			zap.Int("candidates", len(techs)))
		return domain.Assignment{
			TechnicianName:  s.fallback.FallbackName,
			TechnicianEmail: s.fallback.FallbackEmail,
			Status:          domain.AssignmentStatusEscalated,
			Reasoning:       "No suitable match found",
			AssignedAt:      s.now(),
		}, nil
	}

	if err := s.technicians.IncrementWorkload(ctx, best.ID); err != nil {
		s.logger.Warn("updating technician workload", zap.String("technician_id", best.ID), zap.Error(err))
	}
	return domain.Assignment{
		TechnicianName:  best.Name,
		TechnicianEmail: best.Email,
		Status:          domain.AssignmentStatusAssigned,
		Score:           bestScore,
		Reasoning:       reasoning,
		AssignedAt:      s.now(),
	}, nil
}

func scoreTechnician(tech domain.Technician, issueType, priority string) (float64, string) {
	var (
		score float64
		parts []string
	)

	required := requiredSkills(issueType)
	skillMatches := 0
	for _, skill := range required {
		if anyContains(tech.Skills, skill) {
			skillMatches++
		}
	}
	score += float64(skillMatches) / float64(len(required)) * weightSkill
	parts = append(parts, fmt.Sprintf("Skill match: %d/%d", skillMatches, len(required)))

	roleMatch := roleMatches(tech, issueType)
	if roleMatch {
		score += weightRole
	}
	parts = append(parts, fmt.Sprintf("Role match: %t", roleMatch))

	if issueType != "" {
		specMatch := 0
		if anyContains(tech.Specializations, issueType) {
			specMatch = 1
		}
		score += float64(specMatch) * weightSpecialization
		parts = append(parts, fmt.Sprintf("Specialization match: %d/1", specMatch))
	}

	if tech.MaxWorkload > 0 {
		ratio := float64(tech.CurrentWorkload) / float64(tech.MaxWorkload)
		score += (1 - ratio) * weightWorkload
		parts = append(parts, fmt.Sprintf("Workload: %d/%d", tech.CurrentWorkload, tech.MaxWorkload))
	}

	if strings.EqualFold(priority, "Critical") {
		score += criticalBoost
		parts = append(parts, "Critical priority boost")
	}

	return score, fmt.Sprintf("%s: %s (Score: %.2f)", tech.Name, strings.Join(parts, ", "), score)
}

func requiredSkills(issueType string) []string {
	if skills, ok := fallbackSkills[issueType]; ok {
		return skills
	}
	return defaultSkills
}

func roleMatches(tech domain.Technician, issueType string) bool {
	issue := strings.ToLower(issueType)
	if issue == "" {
		return false
	}
	for _, ri := range roleIssueMap {
		if !anyContains(tech.Specializations, ri.role) {
			continue
		}
		for _, it := range ri.issues {
			if strings.Contains(issue, strings.ToLower(it)) {
				return true
			}
		}
	}
	for _, spec := range tech.Specializations {
		s := strings.ToLower(strings.TrimSpace(spec))
		if s == "" {
			continue
		}
		if strings.Contains(issue, s) || strings.Contains(s, issue) {
			return true
		}
	}
	return false
}

// anyContains reports whether needle occurs case-insensitively in any value.
func anyContains(values []string, needle string) bool {
	needle = strings.ToLower(needle)
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), needle) {
			return true
		}
	}
	return false
}

func ptrBool(v bool) *bool {
	return &v
}
