package domain

import "strings"

// Field names a classification dimension. The lower-case form is the
// catalog table name.
type Field string

const (
	FieldIssueType      Field = "ISSUETYPE"
	FieldSubIssueType   Field = "SUBISSUETYPE"
	FieldTicketCategory Field = "TICKETCATEGORY"
	FieldTicketType     Field = "TICKETTYPE"
	FieldPriority       Field = "PRIORITY"
	FieldStatus         Field = "STATUS"
)

// ClassifiedFields lists the fields filled by classification, in output order.
var ClassifiedFields = []Field{
	FieldIssueType,
	FieldSubIssueType,
	FieldTicketCategory,
	FieldTicketType,
	FieldPriority,
	FieldStatus,
}

// CatalogKey returns the catalog table name for the field.
func (f Field) CatalogKey() string {
	return strings.ToLower(string(f))
}

// Sentinel code and label values.
const (
	NotAvailable = "N/A"
	UnknownLabel = "Unknown"
)

// FieldValue is a catalog code with its label.
type FieldValue struct {
	Value string `json:"Value"`
	Label string `json:"Label"`
}

// IsMissing reports whether the value carries no usable code.
func (v FieldValue) IsMissing() bool {
	code := strings.TrimSpace(v.Value)
	return code == "" || strings.EqualFold(code, NotAvailable) || strings.EqualFold(code, "null")
}

// Classification maps every classified field to its value.
type Classification map[Field]FieldValue

// Get returns the value for f, or a missing value.
func (c Classification) Get(f Field) FieldValue {
	if c == nil {
		return FieldValue{}
	}
	return c[f]
}

// Set stores v under f.
func (c Classification) Set(f Field, v FieldValue) {
	c[f] = v
}

// Complete reports whether every classified field holds a value.
func (c Classification) Complete() bool {
	for _, f := range ClassifiedFields {
		if _, ok := c[f]; !ok {
			return false
		}
	}
	return true
}
