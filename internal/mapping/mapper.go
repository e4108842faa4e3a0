package mapping

import (
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/jmarlowe/leadpipe/internal/domain"
	"github.com/jmarlowe/leadpipe/internal/schema"
)

// SkipColumn is the override value that explicitly excludes a source column
// from the import.
const SkipColumn = "-"

// Disposition says what happens to a source column during validation.
type Disposition string

const (
	// DispositionMapped assigns the column to a canonical field.
	DispositionMapped Disposition = "mapped"
	// DispositionUnmapped leaves the column unresolved; it is ignored during
	// validation.
	DispositionUnmapped Disposition = "unmapped"
	// DispositionDontImport marks an operator-excluded column.
	DispositionDontImport Disposition = "dont_import"
)

// maxFuzzyDistance bounds the edit distance accepted by the fuzzy pass.
const maxFuzzyDistance = 2

// ColumnAssignment resolves one source column.
type ColumnAssignment struct {
	Index       int         `json:"index"`
	Header      string      `json:"header"`
	FieldKey    string      `json:"fieldKey,omitempty"`
	Disposition Disposition `json:"disposition"`
}

// Mapping is the resolved assignment of source columns to canonical fields.
// It is a pure function of headers, registry, and operator overrides, so
// re-running it on the same inputs is idempotent.
type Mapping struct {
	EntityType domain.EntityType  `json:"entityType"`
	Columns    []ColumnAssignment `json:"columns"`

	fieldToColumn map[string]int
}

// ColumnFor returns the source column index mapped to a canonical field key.
func (m Mapping) ColumnFor(fieldKey string) (int, bool) {
	idx, ok := m.fieldToColumn[fieldKey]
	return idx, ok
}

// RowValues tames one raw row into a canonical field -> raw string record.
// Columns that are unmapped or excluded do not appear. This is the single
// boundary where untyped source data becomes a fixed-shape record.
func (m Mapping) RowValues(row []string) map[string]string {
	values := make(map[string]string, len(m.fieldToColumn))
	for key, idx := range m.fieldToColumn {
		if idx < len(row) {
			values[key] = strings.TrimSpace(row[idx])
		} else {
			values[key] = ""
		}
	}
	return values
}

// Mapper auto-matches raw CSV headers to canonical fields.
type Mapper struct {
	registry *schema.Registry
}

// NewMapper creates a mapper over the schema registry.
func NewMapper(registry *schema.Registry) *Mapper {
	return &Mapper{registry: registry}
}

// Map resolves the header row against the canonical schema. Overrides are
// keyed by raw header text (case-insensitive): the value is a canonical field
// key, or SkipColumn to exclude the column. The returned mapping may still be
// missing required fields; call Validate before processing rows.
func (m *Mapper) Map(entityType domain.EntityType, headers []string, overrides map[string]string) (Mapping, error) {
	fields, err := m.registry.Fields(entityType)
	if err != nil {
		return Mapping{}, err
	}

	normalizedOverrides := make(map[string]string, len(overrides))
	for header, fieldKey := range overrides {
		if fieldKey != SkipColumn {
			if _, ok := m.registry.Field(entityType, fieldKey); !ok {
				return Mapping{}, &domain.BatchError{
					Reason: "override references unknown canonical field " + fieldKey,
				}
			}
		}
		normalizedOverrides[normalizeHeader(header)] = fieldKey
	}

	mapping := Mapping{
		EntityType:    entityType,
		Columns:       make([]ColumnAssignment, len(headers)),
		fieldToColumn: make(map[string]int),
	}

	claimed := make(map[string]bool)

	// Operator overrides first; they win over any auto-match.
	for idx, header := range headers {
		assignment := ColumnAssignment{Index: idx, Header: strings.TrimSpace(header), Disposition: DispositionUnmapped}
		if fieldKey, ok := normalizedOverrides[normalizeHeader(header)]; ok {
			if fieldKey == SkipColumn {
				assignment.Disposition = DispositionDontImport
			} else if !claimed[fieldKey] {
				assignment.Disposition = DispositionMapped
				assignment.FieldKey = fieldKey
				claimed[fieldKey] = true
				mapping.fieldToColumn[fieldKey] = idx
			}
		}
		mapping.Columns[idx] = assignment
	}

	// Exact case-insensitive match on field name and synonyms.
	for idx := range mapping.Columns {
		if mapping.Columns[idx].Disposition != DispositionUnmapped {
			continue
		}
		normalized := normalizeHeader(mapping.Columns[idx].Header)
		for _, field := range fields {
			if claimed[field.Key] {
				continue
			}
			if exactMatch(normalized, field) {
				mapping.Columns[idx].Disposition = DispositionMapped
				mapping.Columns[idx].FieldKey = field.Key
				claimed[field.Key] = true
				mapping.fieldToColumn[field.Key] = idx
				break
			}
		}
	}

	// Fuzzy pass over what is left: lowest edit distance wins, ties resolved
	// by field declaration order so the result stays deterministic.
	for idx := range mapping.Columns {
		if mapping.Columns[idx].Disposition != DispositionUnmapped {
			continue
		}
		normalized := normalizeHeader(mapping.Columns[idx].Header)
		if normalized == "" {
			continue
		}

		bestDistance := maxFuzzyDistance + 1
		bestField := ""
		for _, field := range fields {
			if claimed[field.Key] {
				continue
			}
			if d := fuzzyDistance(normalized, field); d >= 0 && d < bestDistance {
				bestDistance = d
				bestField = field.Key
			}
		}
		if bestField != "" {
			mapping.Columns[idx].Disposition = DispositionMapped
			mapping.Columns[idx].FieldKey = bestField
			claimed[bestField] = true
			mapping.fieldToColumn[bestField] = idx
		}
	}

	return mapping, nil
}

// Validate checks required-field coverage. Missing required fields abort the
// batch before any row is processed; the error names every one of them.
func (m *Mapper) Validate(mapping Mapping) error {
	required, err := m.registry.RequiredKeys(mapping.EntityType)
	if err != nil {
		return err
	}
	var missing []string
	for _, key := range required {
		if _, ok := mapping.fieldToColumn[key]; !ok {
			field, _ := m.registry.Field(mapping.EntityType, key)
			missing = append(missing, field.DisplayName)
		}
	}
	if len(missing) > 0 {
		return domain.NewUnmappedFieldsError(missing)
	}
	return nil
}

func exactMatch(normalizedHeader string, field schema.Field) bool {
	if normalizedHeader == normalizeHeader(field.Key) || normalizedHeader == normalizeHeader(field.DisplayName) {
		return true
	}
	for _, syn := range field.Synonyms {
		if normalizedHeader == normalizeHeader(syn) {
			return true
		}
	}
	return false
}

// fuzzyDistance returns the smallest accepted edit distance between the
// header and any of the field's names, or -1 when nothing matches.
func fuzzyDistance(normalizedHeader string, field schema.Field) int {
	candidates := make([]string, 0, len(field.Synonyms)+2)
	candidates = append(candidates, normalizeHeader(field.Key), normalizeHeader(field.DisplayName))
	for _, syn := range field.Synonyms {
		candidates = append(candidates, normalizeHeader(syn))
	}

	best := -1
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		rank := fuzzy.RankMatchNormalizedFold(normalizedHeader, candidate)
		if rank < 0 {
			rank = fuzzy.RankMatchNormalizedFold(candidate, normalizedHeader)
		}
		if rank < 0 || rank > maxFuzzyDistance {
			continue
		}
		if best == -1 || rank < best {
			best = rank
		}
	}
	return best
}

// normalizeHeader lowercases and strips whitespace and punctuation so
// "Company-Name " and "company_name" compare equal.
func normalizeHeader(header string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(header) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
