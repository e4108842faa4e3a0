package validation

import (
	"testing"

	"github.com/google/uuid"

	"github.com/jmarlowe/leadpipe/internal/domain"
	"github.com/jmarlowe/leadpipe/internal/schema"
)

func testRefData() (*RefData, domain.Segment, domain.Company) {
	segment := domain.NewSegment("Fintech", "", uuid.New())
	company := domain.NewCompany("Acme Corp", segment.ID, uuid.New())
	return NewRefData(uuid.New(), []domain.Segment{segment}, []domain.Company{company}, nil), segment, company
}

func TestValidateCompanyRowAccepted(t *testing.T) {
	ref, segment, _ := testRefData()
	v := NewRowValidator(schema.NewRegistry())

	payload, errs := v.ValidateCompanyRow(2, map[string]string{
		schema.FieldCompanyName: "globex industries",
		schema.FieldSegmentName: "Fintech",
		schema.FieldWebsite:     "globex.example.com",
		schema.FieldFoundedYear: "1999",
	}, ref)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if payload.Name != "Globex Industries" {
		t.Fatalf("name not normalized: %q", payload.Name)
	}
	if payload.Website != "https://globex.example.com" {
		t.Fatalf("website not normalized: %q", payload.Website)
	}
	if payload.Segment.ID != segment.ID {
		t.Fatalf("segment not resolved")
	}
	if payload.FoundedYear == nil || *payload.FoundedYear != 1999 {
		t.Fatalf("founded year not parsed: %v", payload.FoundedYear)
	}
}

func TestValidateCompanyRowCollectsAllErrors(t *testing.T) {
	ref, _, _ := testRefData()
	v := NewRowValidator(schema.NewRegistry())

	_, errs := v.ValidateCompanyRow(3, map[string]string{
		schema.FieldCompanyName: "",
		schema.FieldSegmentName: "Nonexistent",
		schema.FieldFoundedYear: "not-a-year",
	}, ref)

	codes := map[domain.RowErrorCode]bool{}
	for _, e := range errs {
		if e.RowNumber != 3 {
			t.Fatalf("row number = %d, want 3", e.RowNumber)
		}
		codes[e.Code] = true
	}
	for _, want := range []domain.RowErrorCode{
		domain.RowErrMissingRequiredField,
		domain.RowErrUnknownSegment,
		domain.RowErrInvalidInteger,
	} {
		if !codes[want] {
			t.Fatalf("missing expected error %s in %v", want, errs)
		}
	}
}

func TestValidateCompanyRowFoundedYearRange(t *testing.T) {
	v := NewRowValidator(schema.NewRegistry())

	for _, year := range []string{"1492", "3000"} {
		ref, _, _ := testRefData()
		_, errs := v.ValidateCompanyRow(2, map[string]string{
			schema.FieldCompanyName: "Globex",
			schema.FieldSegmentName: "Fintech",
			schema.FieldFoundedYear: year,
		}, ref)
		found := false
		for _, e := range errs {
			if e.Code == domain.RowErrInvalidYear {
				found = true
			}
		}
		if !found {
			t.Fatalf("year %s accepted, errors: %v", year, errs)
		}
	}
}

func TestValidateCompanyRowDuplicateWithinBatch(t *testing.T) {
	ref, segment, _ := testRefData()
	v := NewRowValidator(schema.NewRegistry())

	values := map[string]string{
		schema.FieldCompanyName: "Initech",
		schema.FieldSegmentName: "Fintech",
	}
	payload, errs := v.ValidateCompanyRow(2, values, ref)
	if len(errs) != 0 {
		t.Fatalf("first occurrence rejected: %v", errs)
	}
	// First occurrence wins and claims the key.
	ref.AddCompany(CompanyRef{ID: uuid.New(), SegmentID: segment.ID, Status: domain.CompanyStatusPending}, payload.Name)

	_, errs = v.ValidateCompanyRow(7, values, ref)
	if len(errs) != 1 || errs[0].Code != domain.RowErrDuplicateCompany {
		t.Fatalf("expected DuplicateCompany for repeat row, got %v", errs)
	}
}

func TestValidateCompanyRowDuplicateAgainstExisting(t *testing.T) {
	ref, _, _ := testRefData()
	v := NewRowValidator(schema.NewRegistry())

	// Same name, different case: the natural key is case-insensitive.
	_, errs := v.ValidateCompanyRow(2, map[string]string{
		schema.FieldCompanyName: "ACME CORP",
		schema.FieldSegmentName: "Fintech",
	}, ref)
	if len(errs) != 1 || errs[0].Code != domain.RowErrDuplicateCompany {
		t.Fatalf("expected DuplicateCompany, got %v", errs)
	}
}

func TestValidateContactRowAccepted(t *testing.T) {
	ref, _, company := testRefData()
	v := NewRowValidator(schema.NewRegistry())

	payload, errs := v.ValidateContactRow(2, map[string]string{
		schema.FieldFirstName:   "Jane",
		schema.FieldLastName:    "Doe",
		schema.FieldEmail:       "Jane.Doe@Example.com",
		schema.FieldCompanyName: "acme corp",
	}, ref)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if payload.Email != "jane.doe@example.com" {
		t.Fatalf("email not normalized: %q", payload.Email)
	}
	if payload.Company.ID != company.ID {
		t.Fatalf("company not resolved")
	}
}

func TestValidateContactRowInvalidEmail(t *testing.T) {
	ref, _, _ := testRefData()
	v := NewRowValidator(schema.NewRegistry())

	_, errs := v.ValidateContactRow(2, map[string]string{
		schema.FieldFirstName:   "Jane",
		schema.FieldLastName:    "Doe",
		schema.FieldEmail:       "not-an-email",
		schema.FieldCompanyName: "Acme Corp",
	}, ref)
	if len(errs) != 1 || errs[0].Code != domain.RowErrInvalidEmail {
		t.Fatalf("expected InvalidEmail, got %v", errs)
	}
	if errs[0].Column != schema.FieldEmail {
		t.Fatalf("error column = %q", errs[0].Column)
	}
}

func TestValidateContactRowUnknownCompany(t *testing.T) {
	ref, _, _ := testRefData()
	v := NewRowValidator(schema.NewRegistry())

	_, errs := v.ValidateContactRow(2, map[string]string{
		schema.FieldFirstName:   "Jane",
		schema.FieldLastName:    "Doe",
		schema.FieldEmail:       "jane@example.com",
		schema.FieldCompanyName: "Ghost Corp",
	}, ref)
	if len(errs) != 1 || errs[0].Code != domain.RowErrUnknownCompany {
		t.Fatalf("expected UnknownCompany, got %v", errs)
	}
}

func TestValidateContactRowRejectedCompanyIsUnknown(t *testing.T) {
	segment := domain.NewSegment("Fintech", "", uuid.New())
	rejected := domain.NewCompany("Failed Co", segment.ID, uuid.New())
	rejected.Status = domain.CompanyStatusRejected
	ref := NewRefData(uuid.New(), []domain.Segment{segment}, []domain.Company{rejected}, nil)
	v := NewRowValidator(schema.NewRegistry())

	_, errs := v.ValidateContactRow(2, map[string]string{
		schema.FieldFirstName:   "Jane",
		schema.FieldLastName:    "Doe",
		schema.FieldEmail:       "jane@example.com",
		schema.FieldCompanyName: "Failed Co",
	}, ref)
	if len(errs) != 1 || errs[0].Code != domain.RowErrUnknownCompany {
		t.Fatalf("rejected company should not accept contacts, got %v", errs)
	}
}

func TestValidateContactRowDuplicate(t *testing.T) {
	ref, _, company := testRefData()
	v := NewRowValidator(schema.NewRegistry())

	ref.AddContactKey(company.ID, "jane@example.com")

	_, errs := v.ValidateContactRow(4, map[string]string{
		schema.FieldFirstName:   "Jane",
		schema.FieldLastName:    "Doe",
		schema.FieldEmail:       "JANE@example.com",
		schema.FieldCompanyName: "Acme Corp",
	}, ref)
	if len(errs) != 1 || errs[0].Code != domain.RowErrDuplicateContact {
		t.Fatalf("expected DuplicateContact, got %v", errs)
	}
}

func TestArchivedSegmentNotResolvable(t *testing.T) {
	segment := domain.NewSegment("Legacy", "", uuid.New())
	segment.Status = domain.SegmentStatusArchived
	// RefData is built from the active-segment listing, so an archived
	// segment never enters the snapshot.
	ref := NewRefData(uuid.New(), nil, nil, nil)
	v := NewRowValidator(schema.NewRegistry())

	_, errs := v.ValidateCompanyRow(2, map[string]string{
		schema.FieldCompanyName: "Globex",
		schema.FieldSegmentName: "Legacy",
	}, ref)
	if len(errs) != 1 || errs[0].Code != domain.RowErrUnknownSegment {
		t.Fatalf("expected UnknownSegment, got %v", errs)
	}
}

func TestOwnBatchRowsAreNotDuplicates(t *testing.T) {
	batchID := uuid.New()
	segment := domain.NewSegment("Fintech", "", uuid.New())
	replayed := domain.NewCompany("Globex", segment.ID, uuid.New())
	replayed.BatchID = &batchID
	other := domain.NewCompany("Initech", segment.ID, uuid.New())
	ref := NewRefData(batchID, []domain.Segment{segment}, []domain.Company{replayed, other}, nil)
	v := NewRowValidator(schema.NewRegistry())

	// A redelivered batch replays the row it already committed; it must
	// validate clean so the commit path can recognize it.
	_, errs := v.ValidateCompanyRow(2, map[string]string{
		schema.FieldCompanyName: "Globex",
		schema.FieldSegmentName: "Fintech",
	}, ref)
	if len(errs) != 0 {
		t.Fatalf("replayed row should validate clean, got %v", errs)
	}

	// A company from a different batch still collides.
	_, errs = v.ValidateCompanyRow(3, map[string]string{
		schema.FieldCompanyName: "Initech",
		schema.FieldSegmentName: "Fintech",
	}, ref)
	if len(errs) != 1 || errs[0].Code != domain.RowErrDuplicateCompany {
		t.Fatalf("expected DuplicateCompany, got %v", errs)
	}

	// The replayed company still resolves for contact references.
	if _, ok := ref.CompanyByName("globex"); !ok {
		t.Fatal("replayed company should stay resolvable")
	}
}
