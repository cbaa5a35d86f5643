// Package catalog holds the reference tables that translate stored
// classification codes to human-readable labels.
package catalog

import (
	"sort"
	"strconv"
	"strings"

	"github.com/spec-kit/ticket-intake/internal/domain"
)

// Option is one code/label pair of a catalog table.
type Option struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

type table struct {
	labels map[string]string
	order  []string
}

// Catalog is an immutable field -> {code -> label} mapping. It is safe for
// concurrent use once loaded.
type Catalog struct {
	tables map[string]*table
}

// New builds a catalog from in-memory tables. Codes are inserted in sorted
// order since map iteration has none.
func New(tables map[string]map[string]string) *Catalog {
	b := newBuilder()
	fields := make([]string, 0, len(tables))
	for field := range tables {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		codes := make([]string, 0, len(tables[field]))
		for code := range tables[field] {
			codes = append(codes, code)
		}
		sortCodes(codes)
		for _, code := range codes {
			b.add(field, code, tables[field][code])
		}
	}
	return b.build()
}

// FindValueByLabel returns the code whose label matches case-insensitively,
// or "N/A" when the field or label is unknown. The first code in file order
// wins when labels repeat.
func (c *Catalog) FindValueByLabel(field, label string) string {
	t := c.table(field)
	if t == nil {
		return domain.NotAvailable
	}
	want := strings.TrimSpace(label)
	for _, code := range t.order {
		if strings.EqualFold(t.labels[code], want) {
			return code
		}
	}
	return domain.NotAvailable
}

// Label returns the label stored for code.
func (c *Catalog) Label(field, code string) (string, bool) {
	t := c.table(field)
	if t == nil {
		return "", false
	}
	label, ok := t.labels[strings.TrimSpace(code)]
	return label, ok
}

// Has reports whether code exists for field.
func (c *Catalog) Has(field, code string) bool {
	_, ok := c.Label(field, code)
	return ok
}

// HasField reports whether a table exists for field.
func (c *Catalog) HasField(field string) bool {
	return c.table(field) != nil
}

// Fields lists the table names in sorted order.
func (c *Catalog) Fields() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.tables))
	for field := range c.tables {
		out = append(out, field)
	}
	sort.Strings(out)
	return out
}

// Options lists a table's entries ordered by code.
func (c *Catalog) Options(field string) []Option {
	t := c.table(field)
	if t == nil {
		return nil
	}
	codes := append([]string(nil), t.order...)
	sortCodes(codes)
	out := make([]Option, 0, len(codes))
	for _, code := range codes {
		out = append(out, Option{Code: code, Label: t.labels[code]})
	}
	return out
}

func (c *Catalog) table(field string) *table {
	if c == nil {
		return nil
	}
	return c.tables[normalizeField(field)]
}

func normalizeField(field string) string {
	return strings.ToLower(strings.TrimSpace(field))
}

// sortCodes orders numeric codes numerically and everything else lexically
// after them.
func sortCodes(codes []string) {
	sort.SliceStable(codes, func(i, j int) bool {
		a, errA := strconv.Atoi(codes[i])
		b, errB := strconv.Atoi(codes[j])
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		}
		return codes[i] < codes[j]
	})
}

type builder struct {
	tables map[string]*table
}

func newBuilder() *builder {
	return &builder{tables: make(map[string]*table)}
}

func (b *builder) add(field, code, label string) {
	field = normalizeField(field)
	code = strings.TrimSpace(code)
	t, ok := b.tables[field]
	if !ok {
		t = &table{labels: make(map[string]string)}
		b.tables[field] = t
	}
	if _, seen := t.labels[code]; !seen {
		t.order = append(t.order, code)
	}
	t.labels[code] = strings.TrimSpace(label)
}

func (b *builder) build() *Catalog {
	return &Catalog{tables: b.tables}
}
