package models

import (
	"errors"
	"testing"

	"bitbucket.org/mmdatafocus/recon_backend/utils"
)

func TestBatchItemErrorMapping(t *testing.T) {
	if got := batchItemError(ErrClosedPeriod()); got.Code != CodeClosedPeriod {
		t.Errorf("closed period code = %s", got.Code)
	}
	if got := batchItemError(ErrConflict("taken")); got.Code != CodeConflict || got.Message != "taken" {
		t.Errorf("conflict = %+v", got)
	}
	if got := batchItemError(utils.ErrorRecordNotFound); got.Code != CodeNotFound {
		t.Errorf("not found code = %s", got.Code)
	}
	if got := batchItemError(errors.New("something odd")); got.Code != CodeValidation {
		t.Errorf("fallback code = %s", got.Code)
	}
}

func TestEntryMatchable(t *testing.T) {
	plain := Entry{}
	if !plain.Matchable() {
		t.Error("plain entry should be matchable")
	}
	adj := Entry{IsAdjustment: true}
	if adj.Matchable() {
		t.Error("adjustment entry must not be matchable")
	}
}

func TestValidateEntryInputSignDiscipline(t *testing.T) {
	base := func(entryType EntryType, amount Cents) *NewEntry {
		return &NewEntry{AccountId: 1, EntryDate: NewDateOnly(mustDate(t, "2026-03-01")), EntryType: entryType, AmountCents: amount}
	}

	if err := validateEntryInput(base(EntryTypeIncome, 5000)); err != nil {
		t.Errorf("positive income rejected: %v", err)
	}
	if err := validateEntryInput(base(EntryTypeIncome, -5000)); err == nil {
		t.Error("negative income must be rejected")
	}
	if err := validateEntryInput(base(EntryTypeExpense, -5000)); err != nil {
		t.Errorf("negative expense rejected: %v", err)
	}
	if err := validateEntryInput(base(EntryTypeExpense, 5000)); err == nil {
		t.Error("positive expense must be rejected")
	}
	if err := validateEntryInput(base(EntryTypeTransfer, 0)); err == nil {
		t.Error("zero amount must be rejected")
	}
}
