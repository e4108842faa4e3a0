package domain

import "testing"

func TestSingleValuedAssignments(t *testing.T) {
	if !EntityTypeContact.SingleValued() {
		t.Fatal("contact assignments must be single valued")
	}
	for _, et := range []EntityType{EntityTypeCompany, EntityTypeSegment} {
		if et.SingleValued() {
			t.Fatalf("%s assignments must allow multiple active holders", et)
		}
	}
}
