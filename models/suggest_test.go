package models

import (
	"testing"
	"time"
)

func testEntry(amount Cents, date time.Time, payee string) *Entry {
	return &Entry{AmountCents: amount, EntryDate: NewDateOnly(date), Payee: payee}
}

func TestSuggestionScoreExactAmountDominates(t *testing.T) {
	posted := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	bankDate := NewDateOnly(posted)

	exactButOld := testEntry(-4500, posted.AddDate(0, 0, -20), "zzz")
	closeButInexact := testEntry(-4400, posted, "ACME HARDWARE")

	exactScore := suggestionScore(-4500, bankDate, "ACME HARDWARE", exactButOld)
	inexactScore := suggestionScore(-4500, bankDate, "ACME HARDWARE", closeButInexact)
	if exactScore <= inexactScore {
		t.Fatalf("exact amount %f should outrank inexact %f", exactScore, inexactScore)
	}
}

func TestSuggestionScoreDateDecay(t *testing.T) {
	posted := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	bankDate := NewDateOnly(posted)

	sameDay := suggestionScore(-4500, bankDate, "", testEntry(-4500, posted, ""))
	fourDays := suggestionScore(-4500, bankDate, "", testEntry(-4500, posted.AddDate(0, 0, 4), ""))
	tenDays := suggestionScore(-4500, bankDate, "", testEntry(-4500, posted.AddDate(0, 0, 10), ""))

	if !(sameDay > fourDays && fourDays > tenDays) {
		t.Fatalf("date decay broken: %f, %f, %f", sameDay, fourDays, tenDays)
	}
	// Beyond the 7-day window only the amount component remains.
	if tenDays != 0.6 {
		t.Errorf("score outside date window = %f, want 0.6", tenDays)
	}
}

func TestDescriptionSimilarity(t *testing.T) {
	if got := descriptionSimilarity("ACME Hardware", "acme hardware"); got != 1 {
		t.Errorf("case-insensitive identical = %f, want 1", got)
	}
	if got := descriptionSimilarity("", "anything"); got != 0 {
		t.Errorf("empty side = %f, want 0", got)
	}
	near := descriptionSimilarity("ACME HARDWARE", "ACME HARDWARE #42")
	far := descriptionSimilarity("ACME HARDWARE", "PAYROLL RUN")
	if near <= far {
		t.Errorf("similar pair %f should beat dissimilar pair %f", near, far)
	}
}
