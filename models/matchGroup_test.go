package models

import (
	"errors"
	"testing"
)

func TestDeriveDirection(t *testing.T) {
	dir, err := deriveDirection([]Cents{-7000, -5000})
	if err != nil {
		t.Fatalf("deriveDirection: %v", err)
	}
	if dir != DirectionOutflow {
		t.Fatalf("dir = %s, want OUTFLOW", dir)
	}

	if _, err := deriveDirection([]Cents{7000, -5000}); err == nil {
		t.Fatal("mixed signs must be rejected")
	}
	if _, err := deriveDirection([]Cents{7000, 0}); err == nil {
		t.Fatal("zero amounts must be rejected")
	}
	if _, err := deriveDirection(nil); err == nil {
		t.Fatal("empty set must be rejected")
	}
}

func TestValidateMatchSetBalanced(t *testing.T) {
	// A -12000 deposit-side payout covered by two entries.
	dir, total, err := validateMatchSet([]Cents{-12000}, []Cents{-7000, -5000})
	if err != nil {
		t.Fatalf("validateMatchSet: %v", err)
	}
	if dir != DirectionOutflow {
		t.Errorf("dir = %s, want OUTFLOW", dir)
	}
	if total != 12000 {
		t.Errorf("total = %d, want 12000 (unsigned)", total)
	}

	// Many-to-many with equal sums on both sides.
	dir, total, err = validateMatchSet([]Cents{6000, 4000}, []Cents{2500, 7500})
	if err != nil {
		t.Fatalf("validateMatchSet n:m: %v", err)
	}
	if dir != DirectionInflow || total != 10000 {
		t.Errorf("got (%s, %d), want (INFLOW, 10000)", dir, total)
	}
}

func TestValidateMatchSetUnbalanced(t *testing.T) {
	_, _, err := validateMatchSet([]Cents{-12000}, []Cents{-7000, -4000})
	if err == nil {
		t.Fatal("unbalanced group must be rejected")
	}
	var appErr *AppError
	if !errors.As(err, &appErr) || appErr.Code != CodeValidation {
		t.Fatalf("err = %v, want VALIDATION AppError", err)
	}
	if appErr.Message != "match group is not balanced" {
		t.Errorf("message = %q", appErr.Message)
	}
}

func TestValidateMatchSetDirectionMismatch(t *testing.T) {
	if _, _, err := validateMatchSet([]Cents{12000}, []Cents{-12000}); err == nil {
		t.Fatal("opposite-direction sides must be rejected")
	}
	if _, _, err := validateMatchSet(nil, []Cents{-12000}); err == nil {
		t.Fatal("empty bank side must be rejected")
	}
	if _, _, err := validateMatchSet([]Cents{12000}, nil); err == nil {
		t.Fatal("empty entry side must be rejected")
	}
}

func TestHasDuplicateIds(t *testing.T) {
	if hasDuplicateIds([]int{1, 2, 3}) {
		t.Error("distinct ids flagged as duplicates")
	}
	if !hasDuplicateIds([]int{1, 2, 1}) {
		t.Error("duplicate ids not detected")
	}
}
