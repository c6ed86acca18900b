package models

import (
	"testing"

	"friendmap/internal/domain"
)

func TestPairKeyIsOrderIndependent(t *testing.T) {
	if PairKey("u1", "u2") != PairKey("u2", "u1") {
		t.Fatalf("PairKey differs by order: %q vs %q", PairKey("u1", "u2"), PairKey("u2", "u1"))
	}
	if got := PairKey("b", "a"); got != "a|b" {
		t.Errorf("PairKey(b, a) = %q, want %q", got, "a|b")
	}
}

func TestShareLinkBeforeCreate(t *testing.T) {
	s := &ShareLink{OwnerUID: "u2", ViewerUID: "u1", Status: domain.ShareStatusPending}
	if err := s.BeforeCreate(nil); err != nil {
		t.Fatalf("BeforeCreate() error = %v", err)
	}
	if s.ID == "" {
		t.Error("expected ID to be assigned")
	}
	if s.PairKey != "u1|u2" {
		t.Errorf("PairKey = %q, want %q", s.PairKey, "u1|u2")
	}

	keep := &ShareLink{ID: "fixed", OwnerUID: "a", ViewerUID: "b"}
	_ = keep.BeforeCreate(nil)
	if keep.ID != "fixed" {
		t.Errorf("ID overwritten: %q", keep.ID)
	}
}

func TestShareLinkOtherParty(t *testing.T) {
	s := &ShareLink{OwnerUID: "owner", ViewerUID: "viewer"}
	tests := []struct {
		caller string
		want   string
	}{
		{"owner", "viewer"},
		{"viewer", "owner"},
	}
	for _, tt := range tests {
		if got := s.OtherParty(tt.caller); got != tt.want {
			t.Errorf("OtherParty(%q) = %q, want %q", tt.caller, got, tt.want)
		}
	}
	if !s.Involves("owner") || !s.Involves("viewer") || s.Involves("stranger") {
		t.Error("Involves returned wrong result")
	}
}
