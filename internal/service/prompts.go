package service

import (
	"bytes"
	"strings"
	"text/template"
)

var extractionPromptTmpl = template.Must(template.New("extraction").Parse(`Analyze the following IT support ticket and extract structured metadata.

Ticket title: {{.Title}}
Ticket description: {{.Description}}

Return a JSON object with exactly these fields:
- main_issue: one short sentence naming the core problem
- affected_system: the application, device or service that is failing
- urgency_level: one of "Critical", "High", "Medium", "Low"
  - Critical: business stopped, many users affected, security breach or data loss
  - High: a key system is unusable for a user or team, no workaround
  - Medium: degraded service with a workaround available
  - Low: cosmetic issue, question or request for information
- error_messages: any error codes or messages quoted in the ticket, or ""
- technical_keywords: an array of technical terms taken from the ticket
- user_actions: what the user already tried, or ""
- resolution_indicators: hints about the likely fix, or ""

Respond with the JSON object only.
`))

var classificationPromptTmpl = template.Must(template.New("classification").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).Parse(`Classify the new IT support ticket using the reference codes listed below.

New ticket:
Title: {{.Title}}
Description: {{.Description}}
{{- if .InitialPriority}}
Requested priority: {{.InitialPriority}}
{{- end}}
Main issue: {{.Metadata.MainIssue}}
Affected system: {{.Metadata.AffectedSystem}}
Urgency: {{.Metadata.UrgencyLevel}}
Error messages: {{.Metadata.ErrorMessages}}
{{if .Similar}}
Similar historical tickets:
{{- range $i, $t := .Similar}}
{{inc $i}}. {{$t.Title}} | ISSUETYPE={{$t.IssueType}} SUBISSUETYPE={{$t.SubIssueType}} TICKETCATEGORY={{$t.TicketCategory}} TICKETTYPE={{$t.TicketType}} PRIORITY={{$t.Priority}}
{{- end}}
{{end}}
{{- if .Majority}}
Most common values among similar tickets:
{{- range .Majority}}
{{.}}
{{- end}}
{{end}}
Allowed values per field:
{{- range .Options}}
{{.Field}}:
{{- range .Entries}}
  {{.Code}} = {{.Label}}
{{- end}}
{{- end}}

Return a JSON object with one entry per field, each holding the chosen code and its label:
{"ISSUETYPE": {"Value": "code", "Label": "label"}, "SUBISSUETYPE": {...}, "TICKETCATEGORY": {...}, "TICKETTYPE": {...}, "PRIORITY": {...}}

Use only codes from the allowed values. Respond with the JSON object only.
`))

var resolutionPromptTmpl = template.Must(template.New("resolution").
	Funcs(template.FuncMap{"join": strings.Join}).
	Parse(`Write a resolution note for the person who reported this IT support ticket.

Main issue: {{.MainIssue}}
Affected system: {{.AffectedSystem}}
Urgency: {{.UrgencyLevel}}
Error messages: {{.ErrorMessages}}
Technical keywords: {{join .TechnicalKeywords ", "}}
User actions so far: {{.UserActions}}
Suggested approach: {{.ResolutionIndicators}}

Reply with numbered steps the end user can follow themselves, addressing the main issue directly.
Skip generic steps and anything the details above do not support.
Use plain text only: no markdown headings, JSON or code blocks, and do not restate the ticket.
`))

func renderTemplate(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
