package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleJSON = `{
  // exported from the service desk
  "Employees": {
    "Employee": [
      {"Field": "priority", "Value": "4", "Label": "Critical"},
      {"Field": "priority", "Value": "1", "Label": "Low"},
      {"Field": "priority", "Value": 3, "Label": "High"},
      {"Field": "PRIORITY", "Value": "2", "Label": "Medium"},
      {"Field": "status", "Value": "1", "Label": "New"},
      {"Field": "issuetype", "Value": "7", "Label": "Printer"},
    ]
  }
}`

func TestParseJSONC(t *testing.T) {
	c, err := Parse([]byte(sampleJSON), FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, []string{"issuetype", "priority", "status"}, c.Fields())
	label, ok := c.Label("priority", "3")
	require.True(t, ok)
	assert.Equal(t, "High", label)
	assert.True(t, c.Has("Priority", "2"))
	assert.False(t, c.Has("priority", "9"))
	assert.True(t, c.HasField("STATUS"))
	assert.False(t, c.HasField("tickettype"))
}

func TestFindValueByLabelCaseInsensitive(t *testing.T) {
	c, err := Parse([]byte(sampleJSON), FormatJSON)
	require.NoError(t, err)

	tests := []struct {
		field, label, want string
	}{
		{"priority", "HIGH", "3"},
		{"priority", "high", "3"},
		{"PRIORITY", " Medium ", "2"},
		{"issuetype", "printer", "7"},
		{"priority", "Urgent", "N/A"},
		{"tickettype", "Incident", "N/A"},
	}
	for _, tt := range tests {
		t.Run(tt.field+"/"+tt.label, func(t *testing.T) {
			assert.Equal(t, tt.want, c.FindValueByLabel(tt.field, tt.label))
		})
	}
	assert.Equal(t, c.FindValueByLabel("priority", "HIGH"), c.FindValueByLabel("priority", "high"))
}

func TestFindValueByLabelFirstInFileOrder(t *testing.T) {
	data := `{"Employees":{"Employee":[
		{"Field":"subissuetype","Value":"20","Label":"Printer"},
		{"Field":"subissuetype","Value":"3","Label":"Printer"}
	]}}`
	c, err := Parse([]byte(data), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "20", c.FindValueByLabel("subissuetype", "printer"))
}

func TestOptionsSortedByCode(t *testing.T) {
	c, err := Parse([]byte(sampleJSON), FormatJSON)
	require.NoError(t, err)

	opts := c.Options("priority")
	require.Len(t, opts, 4)
	assert.Equal(t, []Option{
		{Code: "1", Label: "Low"},
		{Code: "2", Label: "Medium"},
		{Code: "3", Label: "High"},
		{Code: "4", Label: "Critical"},
	}, opts)
	assert.Nil(t, c.Options("missing"))
}

func TestParseYAML(t *testing.T) {
	data := `
issuetype:
  "1": Printer
  "2": Email
priority:
  1: Low
  2: Medium
`
	c, err := Parse([]byte(data), FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, "2", c.FindValueByLabel("issuetype", "EMAIL"))
	label, ok := c.Label("priority", "2")
	require.True(t, ok)
	assert.Equal(t, "Medium", label)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format Format
	}{
		{"broken json", `{"Employees": {"Employee": [`, FormatJSON},
		{"missing envelope", `{"Rows": []}`, FormatJSON},
		{"entry without field", `{"Employees":{"Employee":[{"Value":"1","Label":"x"}]}}`, FormatJSON},
		{"bad code type", `{"Employees":{"Employee":[{"Field":"a","Value":{},"Label":"x"}]}}`, FormatJSON},
		{"yaml list root", "- a\n- b\n", FormatYAML},
		{"yaml scalar table", "priority: high\n", FormatYAML},
		{"yaml empty", "", FormatYAML},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), tt.format)
			var perr *ParseError
			require.Error(t, err)
			assert.True(t, errors.As(err, &perr), "want *ParseError, got %T", err)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "reference.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(sampleJSON), 0o644))
	c, err := Load(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "1", c.FindValueByLabel("status", "new"))

	yamlPath := filepath.Join(dir, "reference.yml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("status:\n  \"1\": New\n"), 0o644))
	c, err = Load(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "1", c.FindValueByLabel("status", "NEW"))

	badPath := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(badPath, []byte("{"), 0o644))
	_, err = Load(badPath)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, badPath, perr.Path)

	_, err = Load(filepath.Join(dir, "absent.json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewSortsCodes(t *testing.T) {
	c := New(map[string]map[string]string{
		"Priority": {"10": "Low", "2": "Low", "1": "High"},
	})
	assert.Equal(t, "2", c.FindValueByLabel("priority", "low"))
	assert.Equal(t, "1", c.Options("priority")[0].Code)
}

func TestNilCatalog(t *testing.T) {
	var c *Catalog
	assert.Equal(t, "N/A", c.FindValueByLabel("priority", "High"))
	assert.False(t, c.HasField("priority"))
	assert.Empty(t, c.Fields())
}
