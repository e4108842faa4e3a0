package validation

import (
	"strings"

	"github.com/google/uuid"

	"github.com/jmarlowe/leadpipe/internal/domain"
)

// CompanyRef is the slice of a company the validator needs for reference and
// duplicate checks.
type CompanyRef struct {
	ID        uuid.UUID
	SegmentID uuid.UUID
	Status    domain.CompanyStatus
}

// RefData is a read-only reference snapshot taken at batch start: active
// segments and existing companies/contacts. The orchestrator feeds committed
// in-batch rows back in through AddCompany/AddContactKey so two duplicate rows
// in one file are caught by the second occurrence. The in-batch check is a
// fast path only; storage-level unique constraints remain the final arbiter.
//
// Entities already committed by the running batch (a redelivered task replays
// its rows from the top) are kept out of the duplicate sets so the replayed
// row validates clean and commits idempotently.
type RefData struct {
	segments    map[string]domain.Segment
	companies   map[string]CompanyRef
	companyKeys map[string]struct{}
	contactKeys map[string]struct{}
}

// NewRefData builds a snapshot from the reference reads. ownBatch is the
// running batch; rows it committed on an earlier delivery stay resolvable but
// are not duplicates.
func NewRefData(ownBatch uuid.UUID, activeSegments []domain.Segment, companies []domain.Company, contacts []domain.Contact) *RefData {
	ref := &RefData{
		segments:    make(map[string]domain.Segment, len(activeSegments)),
		companies:   make(map[string]CompanyRef, len(companies)),
		companyKeys: make(map[string]struct{}, len(companies)),
		contactKeys: make(map[string]struct{}, len(contacts)),
	}
	for _, seg := range activeSegments {
		ref.segments[normalizeName(seg.Name)] = seg
	}
	for _, c := range companies {
		cref := CompanyRef{ID: c.ID, SegmentID: c.SegmentID, Status: c.Status}
		if c.BatchID != nil && *c.BatchID == ownBatch {
			ref.companies[normalizeName(c.Name)] = cref
			continue
		}
		ref.addCompany(cref, c.Name)
	}
	for _, ct := range contacts {
		if ct.BatchID != nil && *ct.BatchID == ownBatch {
			continue
		}
		ref.contactKeys[domain.ContactKey(ct.CompanyID, ct.Email)] = struct{}{}
	}
	return ref
}

// ActiveSegment resolves a segment by name; only active segments are present
// in the snapshot.
func (r *RefData) ActiveSegment(name string) (domain.Segment, bool) {
	seg, ok := r.segments[normalizeName(name)]
	return seg, ok
}

// CompanyByName resolves an existing company for contact reference checks.
func (r *RefData) CompanyByName(name string) (CompanyRef, bool) {
	c, ok := r.companies[normalizeName(name)]
	return c, ok
}

// HasCompany reports whether a company with this natural key already exists,
// in storage or earlier in the running batch.
func (r *RefData) HasCompany(segmentID uuid.UUID, name string) bool {
	_, ok := r.companyKeys[domain.CompanyKey(segmentID, name)]
	return ok
}

// AddCompany records a company committed by the running batch so later rows
// see it for both duplicate detection and contact references.
func (r *RefData) AddCompany(ref CompanyRef, name string) {
	r.addCompany(ref, name)
}

func (r *RefData) addCompany(ref CompanyRef, name string) {
	r.companies[normalizeName(name)] = ref
	r.companyKeys[domain.CompanyKey(ref.SegmentID, name)] = struct{}{}
}

// HasContact reports whether a contact with this natural key already exists.
func (r *RefData) HasContact(companyID uuid.UUID, email string) bool {
	_, ok := r.contactKeys[domain.ContactKey(companyID, email)]
	return ok
}

// AddContactKey records a contact committed by the running batch.
func (r *RefData) AddContactKey(companyID uuid.UUID, email string) {
	r.contactKeys[domain.ContactKey(companyID, email)] = struct{}{}
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
