package validation

import (
	"strconv"
	"strings"
	"time"

	playground "github.com/go-playground/validator/v10"

	"github.com/jmarlowe/leadpipe/internal/domain"
	"github.com/jmarlowe/leadpipe/internal/schema"
)

// foundedYearFloor is the oldest founding year accepted.
const foundedYearFloor = 1800

// CompanyPayload is a validated, typed company row ready for creation.
type CompanyPayload struct {
	Name        string
	Website     string
	Industry    string
	SubIndustry string
	FoundedYear *int
	SegmentName string
	Segment     domain.Segment
}

// ContactPayload is a validated, typed contact row ready for creation.
type ContactPayload struct {
	FirstName   string
	LastName    string
	Email       string
	JobTitle    string
	LinkedInURL string
	CompanyName string
	Company     CompanyRef
}

// RowValidator applies field-level and cross-field rules to one mapped row.
// Rules run per field in a fixed order, each independent: one row can carry
// multiple errors and never stops at the first.
type RowValidator struct {
	registry *schema.Registry
	validate *playground.Validate
}

// NewRowValidator creates a validator over the schema registry.
func NewRowValidator(registry *schema.Registry) *RowValidator {
	return &RowValidator{
		registry: registry,
		validate: playground.New(),
	}
}

// ValidateCompanyRow checks one mapped company row against the schema and the
// reference snapshot. Duplicate policy: the first occurrence of a
// (segment, name) pair wins; later occurrences are flagged DuplicateCompany.
func (v *RowValidator) ValidateCompanyRow(rowNumber int, values map[string]string, ref *RefData) (CompanyPayload, []domain.RowError) {
	var errs []domain.RowError
	fields, err := v.registry.Fields(domain.EntityTypeCompany)
	if err != nil {
		// Registry misconfiguration is caught before rows are processed.
		return CompanyPayload{}, []domain.RowError{{RowNumber: rowNumber, Code: domain.RowErrMissingRequiredField}}
	}

	errs = append(errs, v.fieldErrors(rowNumber, fields, values)...)

	payload := CompanyPayload{
		Name:        domain.NormalizeCompanyName(values[schema.FieldCompanyName]),
		Website:     domain.NormalizeURL(values[schema.FieldWebsite]),
		Industry:    strings.TrimSpace(values[schema.FieldIndustry]),
		SubIndustry: strings.TrimSpace(values[schema.FieldSubIndustry]),
		SegmentName: strings.TrimSpace(values[schema.FieldSegmentName]),
	}
	if raw := strings.TrimSpace(values[schema.FieldFoundedYear]); raw != "" {
		if year, convErr := strconv.Atoi(raw); convErr == nil {
			payload.FoundedYear = &year
		}
	}

	// Reference integrity: the segment must exist and be active.
	if payload.SegmentName != "" {
		seg, ok := ref.ActiveSegment(payload.SegmentName)
		if !ok {
			errs = append(errs, domain.RowError{
				RowNumber: rowNumber,
				Column:    schema.FieldSegmentName,
				Value:     payload.SegmentName,
				Code:      domain.RowErrUnknownSegment,
			})
		} else {
			payload.Segment = seg

			// Uniqueness within the segment, counting rows already committed
			// in this batch.
			if payload.Name != "" && ref.HasCompany(seg.ID, payload.Name) {
				errs = append(errs, domain.RowError{
					RowNumber: rowNumber,
					Column:    schema.FieldCompanyName,
					Value:     payload.Name,
					Code:      domain.RowErrDuplicateCompany,
				})
			}
		}
	}

	if len(errs) > 0 {
		return CompanyPayload{}, errs
	}
	return payload, nil
}

// ValidateContactRow checks one mapped contact row. The referenced company
// must exist and be pending or approved; the contact's segment is inherited
// from it.
func (v *RowValidator) ValidateContactRow(rowNumber int, values map[string]string, ref *RefData) (ContactPayload, []domain.RowError) {
	var errs []domain.RowError
	fields, err := v.registry.Fields(domain.EntityTypeContact)
	if err != nil {
		return ContactPayload{}, []domain.RowError{{RowNumber: rowNumber, Code: domain.RowErrMissingRequiredField}}
	}

	errs = append(errs, v.fieldErrors(rowNumber, fields, values)...)

	payload := ContactPayload{
		FirstName:   strings.TrimSpace(values[schema.FieldFirstName]),
		LastName:    strings.TrimSpace(values[schema.FieldLastName]),
		Email:       domain.NormalizeEmail(values[schema.FieldEmail]),
		JobTitle:    strings.TrimSpace(values[schema.FieldJobTitle]),
		LinkedInURL: domain.NormalizeURL(values[schema.FieldLinkedInURL]),
		CompanyName: strings.TrimSpace(values[schema.FieldCompanyName]),
	}

	if payload.CompanyName != "" {
		company, ok := ref.CompanyByName(payload.CompanyName)
		if !ok || company.Status == domain.CompanyStatusRejected {
			errs = append(errs, domain.RowError{
				RowNumber: rowNumber,
				Column:    schema.FieldCompanyName,
				Value:     payload.CompanyName,
				Code:      domain.RowErrUnknownCompany,
			})
		} else {
			payload.Company = company

			if payload.Email != "" && ref.HasContact(company.ID, payload.Email) {
				errs = append(errs, domain.RowError{
					RowNumber: rowNumber,
					Column:    schema.FieldEmail,
					Value:     payload.Email,
					Code:      domain.RowErrDuplicateContact,
				})
			}
		}
	}

	if len(errs) > 0 {
		return ContactPayload{}, errs
	}
	return payload, nil
}

// fieldErrors runs presence and type/format rules for every canonical field.
func (v *RowValidator) fieldErrors(rowNumber int, fields []schema.Field, values map[string]string) []domain.RowError {
	var errs []domain.RowError
	for _, field := range fields {
		raw := strings.TrimSpace(values[field.Key])

		if raw == "" {
			if field.Required {
				errs = append(errs, domain.RowError{
					RowNumber: rowNumber,
					Column:    field.Key,
					Code:      domain.RowErrMissingRequiredField,
				})
			}
			continue
		}

		if code, ok := v.formatError(field, raw); ok {
			errs = append(errs, domain.RowError{
				RowNumber: rowNumber,
				Column:    field.Key,
				Value:     raw,
				Code:      code,
			})
		}
	}
	return errs
}

// formatError applies the type rule and any named validator for a non-empty
// value.
func (v *RowValidator) formatError(field schema.Field, raw string) (domain.RowErrorCode, bool) {
	switch field.Type {
	case schema.FieldTypeEmail:
		if v.validate.Var(raw, "email") != nil {
			return domain.RowErrInvalidEmail, true
		}
	case schema.FieldTypeURL:
		if v.validate.Var(domain.NormalizeURL(raw), "url") != nil {
			return domain.RowErrInvalidURL, true
		}
	case schema.FieldTypeInteger:
		value, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return domain.RowErrInvalidInteger, true
		}
		if field.ValidatorID == schema.ValidatorFoundedYear {
			if value < foundedYearFloor || value > int64(time.Now().Year()) {
				return domain.RowErrInvalidYear, true
			}
		}
	case schema.FieldTypeEnum:
		for _, allowed := range field.EnumValues {
			if strings.EqualFold(raw, allowed) {
				return "", false
			}
		}
		return domain.RowErrInvalidEnumValue, true
	}
	return "", false
}
