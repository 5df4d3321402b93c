package models

import (
	"encoding/json"
	"testing"
)

func TestParseCents(t *testing.T) {
	cases := []struct {
		in      interface{}
		want    Cents
		wantErr bool
	}{
		{"12000", 12000, false},
		{"-7000", -7000, false},
		{" 500 ", 500, false},
		{"0", 0, false},
		{"120.50", 0, true},
		{"", 0, true},
		{"abc", 0, true},
		{json.Number("42"), 42, false},
		{json.Number("4.2"), 0, true},
		{int64(99), 99, false},
		{3.14, 0, true},
	}
	for _, tc := range cases {
		got, err := ParseCents(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseCents(%v): expected error, got %d", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseCents(%v): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseCents(%v) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestCentsJSONIsDecimalString(t *testing.T) {
	b, err := json.Marshal(Cents(-7000))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `"-7000"` {
		t.Fatalf("marshal = %s, want \"-7000\"", b)
	}

	var c Cents
	if err := json.Unmarshal([]byte(`"12000"`), &c); err != nil {
		t.Fatalf("unmarshal string: %v", err)
	}
	if c != 12000 {
		t.Fatalf("unmarshal string = %d, want 12000", c)
	}
	// Clients that send bare numbers still work as long as they are integers.
	if err := json.Unmarshal([]byte(`-500`), &c); err != nil {
		t.Fatalf("unmarshal number: %v", err)
	}
	if c != -500 {
		t.Fatalf("unmarshal number = %d, want -500", c)
	}
	if err := json.Unmarshal([]byte(`12.5`), &c); err == nil {
		t.Fatal("unmarshal 12.5: expected error, fractional cents must be rejected")
	}
}

func TestCentsDirectionAndSumAbs(t *testing.T) {
	if Cents(5).Direction() != DirectionInflow {
		t.Error("positive cents should be INFLOW")
	}
	if Cents(-5).Direction() != DirectionOutflow {
		t.Error("negative cents should be OUTFLOW")
	}
	if got := SumAbs([]Cents{-7000, -5000, 3000}); got != 15000 {
		t.Errorf("SumAbs = %d, want 15000", got)
	}
}
