package models

import (
	"bytes"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestHeaderIndex(t *testing.T) {
	idx, err := headerIndex([]string{"Date", " AMOUNT ", "Description", "Reference"})
	if err != nil {
		t.Fatalf("headerIndex: %v", err)
	}
	if idx["date"] != 0 || idx["amount"] != 1 || idx["description"] != 2 || idx["reference"] != 3 {
		t.Fatalf("unexpected column map: %v", idx)
	}

	if _, err := headerIndex([]string{"amount", "description"}); err == nil {
		t.Fatal("missing date column must be rejected")
	}
	if _, err := headerIndex([]string{"date", "description"}); err == nil {
		t.Fatal("missing amount column must be rejected")
	}
}

func TestParseStatementCSV(t *testing.T) {
	csvData := strings.Join([]string{
		"date,amount,description,reference",
		"2026-03-01,-4500,ACME HARDWARE,ref-001",
		"2026-03-02,12000,CLIENT PAYMENT,",
	}, "\n")

	rows, err := parseStatementCSV(strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("parseStatementCSV: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0].AmountCents != -4500 || rows[0].ExternalRef != "ref-001" {
		t.Errorf("row 0 = %+v", rows[0])
	}
	if rows[1].PostedDate.String() != "2026-03-02" || rows[1].Description != "CLIENT PAYMENT" {
		t.Errorf("row 1 = %+v", rows[1])
	}
}

func TestParseStatementCSVRejectsBadRows(t *testing.T) {
	cases := []string{
		"date,amount\n2026-03-01,0",    // zero amount
		"date,amount\n2026-03-01,45.5", // fractional cents
		"date,amount\nnot-a-date,4500", // bad date
		"date,amount\n,4500",           // missing date
	}
	for _, csvData := range cases {
		if _, err := parseStatementCSV(strings.NewReader(csvData)); err == nil {
			t.Errorf("expected error for %q", csvData)
		}
	}
}

func TestParseStatementXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	data := [][]interface{}{
		{"date", "amount", "description"},
		{"2026-03-01", "-4500", "ACME HARDWARE"},
		{"2026-03-02", "12000", "CLIENT PAYMENT"},
	}
	for i, row := range data {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write xlsx: %v", err)
	}

	rows, err := parseStatementXLSX(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("parseStatementXLSX: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0].AmountCents != -4500 || rows[1].AmountCents != 12000 {
		t.Errorf("amounts = %d, %d", rows[0].AmountCents, rows[1].AmountCents)
	}
}

func TestParseStatementXLSXRejectsGarbage(t *testing.T) {
	if _, err := parseStatementXLSX(bytes.NewReader([]byte("not an xlsx file"))); err == nil {
		t.Fatal("garbage bytes must be rejected")
	}
}
