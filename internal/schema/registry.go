package schema

import (
	"github.com/jmarlowe/leadpipe/internal/domain"
)

// FieldType is the declared type of a canonical field. It drives the
// format rules applied by the row validator.
type FieldType string

const (
	FieldTypeString    FieldType = "string"
	FieldTypeEmail     FieldType = "email"
	FieldTypeURL       FieldType = "url"
	FieldTypeEnum      FieldType = "enum"
	FieldTypeInteger   FieldType = "integer"
	FieldTypeReference FieldType = "reference"
)

// Field is one canonical field of an entity schema. Source columns are mapped
// onto canonical fields by key; synonyms widen the auto-match.
type Field struct {
	Key         string
	DisplayName string
	Type        FieldType
	Required    bool
	Synonyms    []string
	EnumValues  []string
	// Reference names the entity type a reference field resolves against.
	Reference domain.EntityType
	// ValidatorID selects an extra named rule beyond the type check.
	ValidatorID string
}

// Registry declares the canonical field set per entity type. Configuration,
// not user data: immutable at runtime.
type Registry struct {
	fields map[domain.EntityType][]Field
}

// Canonical field keys shared across packages.
const (
	FieldCompanyName = "company_name"
	FieldSegmentName = "segment_name"
	FieldWebsite     = "website"
	FieldIndustry    = "industry"
	FieldSubIndustry = "sub_industry"
	FieldFoundedYear = "founded_year"
	FieldFirstName   = "first_name"
	FieldLastName    = "last_name"
	FieldEmail       = "email"
	FieldJobTitle    = "job_title"
	FieldLinkedInURL = "linkedin_url"
)

// ValidatorFoundedYear bounds founded_year to a plausible range.
const ValidatorFoundedYear = "founded_year"

// NewRegistry builds the registry with the built-in company and contact
// schemas.
func NewRegistry() *Registry {
	return &Registry{
		fields: map[domain.EntityType][]Field{
			domain.EntityTypeCompany: {
				{
					Key:         FieldCompanyName,
					DisplayName: "Company Name",
					Type:        FieldTypeString,
					Required:    true,
					Synonyms:    []string{"company", "name", "organization", "organisation", "account name"},
				},
				{
					Key:         FieldSegmentName,
					DisplayName: "Segment Name",
					Type:        FieldTypeReference,
					Required:    true,
					Reference:   domain.EntityTypeSegment,
					Synonyms:    []string{"segment", "market segment"},
				},
				{
					Key:         FieldWebsite,
					DisplayName: "Company Website",
					Type:        FieldTypeURL,
					Synonyms:    []string{"company website", "url", "web site", "domain"},
				},
				{
					Key:         FieldIndustry,
					DisplayName: "Industry",
					Type:        FieldTypeString,
					Synonyms:    []string{"company industry", "sector"},
				},
				{
					Key:         FieldSubIndustry,
					DisplayName: "Sub Industry",
					Type:        FieldTypeString,
					Synonyms:    []string{"subindustry", "sub sector", "subsector"},
				},
				{
					Key:         FieldFoundedYear,
					DisplayName: "Founded Year",
					Type:        FieldTypeInteger,
					ValidatorID: ValidatorFoundedYear,
					Synonyms:    []string{"founded", "year founded", "founding year"},
				},
			},
			domain.EntityTypeContact: {
				{
					Key:         FieldFirstName,
					DisplayName: "First Name",
					Type:        FieldTypeString,
					Required:    true,
					Synonyms:    []string{"firstname", "given name", "forename"},
				},
				{
					Key:         FieldLastName,
					DisplayName: "Last Name",
					Type:        FieldTypeString,
					Required:    true,
					Synonyms:    []string{"lastname", "surname", "family name"},
				},
				{
					Key:         FieldEmail,
					DisplayName: "Email",
					Type:        FieldTypeEmail,
					Required:    true,
					Synonyms:    []string{"email address", "e-mail", "work email"},
				},
				{
					Key:         FieldCompanyName,
					DisplayName: "Company Name",
					Type:        FieldTypeReference,
					Required:    true,
					Reference:   domain.EntityTypeCompany,
					Synonyms:    []string{"company", "organization", "organisation", "account name"},
				},
				{
					Key:         FieldJobTitle,
					DisplayName: "Job Title",
					Type:        FieldTypeString,
					Synonyms:    []string{"title", "position", "role"},
				},
				{
					Key:         FieldLinkedInURL,
					DisplayName: "LinkedIn URL",
					Type:        FieldTypeURL,
					Synonyms:    []string{"linkedin", "linkedin profile"},
				},
			},
		},
	}
}

// Fields returns the ordered canonical field set for an entity type. Unknown
// entity types signal a ConfigurationError: fatal, not recoverable per-row.
func (r *Registry) Fields(entityType domain.EntityType) ([]Field, error) {
	fields, ok := r.fields[entityType]
	if !ok {
		return nil, domain.NewConfigurationError("no schema registered for entity type %q", entityType)
	}
	out := make([]Field, len(fields))
	copy(out, fields)
	return out, nil
}

// Field looks up one canonical field by key.
func (r *Registry) Field(entityType domain.EntityType, key string) (Field, bool) {
	fields, ok := r.fields[entityType]
	if !ok {
		return Field{}, false
	}
	for _, f := range fields {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// RequiredKeys returns the keys of all required fields for an entity type.
func (r *Registry) RequiredKeys(entityType domain.EntityType) ([]string, error) {
	fields, err := r.Fields(entityType)
	if err != nil {
		return nil, err
	}
	var keys []string
	for _, f := range fields {
		if f.Required {
			keys = append(keys, f.Key)
		}
	}
	return keys, nil
}
