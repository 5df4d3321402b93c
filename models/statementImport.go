package models

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/recon_backend/config"
	"bitbucket.org/mmdatafocus/recon_backend/utils"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// StatementImport records one uploaded bank statement file. ImportHash is
// the sha256 of the raw file, unique per business, so re-uploading the same
// file is rejected instead of doubling the feed.
type StatementImport struct {
	ID             int       `gorm:"primary_key" json:"id"`
	BusinessId     string    `gorm:"uniqueIndex:uniq_import_hash;size:36;not null" json:"business_id"`
	AccountId      int       `gorm:"index;not null" json:"account_id"`
	FileName       string    `gorm:"size:255;not null" json:"file_name"`
	ImportHash     string    `gorm:"uniqueIndex:uniq_import_hash;size:64;not null" json:"import_hash"`
	RowCount       int       `gorm:"not null" json:"row_count"`
	ImportedCount  int       `gorm:"not null" json:"imported_count"`
	DuplicateCount int       `gorm:"not null" json:"duplicate_count"`
	ArchiveObject  string    `gorm:"size:255" json:"archive_object"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}

type statementRow struct {
	PostedDate  DateOnly
	AmountCents Cents
	Description string
	ExternalRef string
}

// statement columns, by header name (case-insensitive)
var statementHeaders = map[string]int{
	"date":        0,
	"amount":      1,
	"description": 2,
	"reference":   3,
}

func parseStatementRecord(record []string, colIdx map[string]int, line int) (*statementRow, error) {
	get := func(name string) string {
		idx, ok := colIdx[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	dateStr := get("date")
	if dateStr == "" {
		return nil, ErrValidation(fmt.Sprintf("row %d: missing date", line))
	}
	postedDate, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return nil, ErrValidation(fmt.Sprintf("row %d: invalid date %q", line, dateStr))
	}
	amountStr := get("amount")
	amount, err := ParseCents(amountStr)
	if err != nil {
		return nil, ErrValidation(fmt.Sprintf("row %d: invalid amount %q", line, amountStr))
	}
	if amount.IsZero() {
		return nil, ErrValidation(fmt.Sprintf("row %d: amount is zero", line))
	}
	return &statementRow{
		PostedDate:  NewDateOnly(postedDate),
		AmountCents: amount,
		Description: get("description"),
		ExternalRef: get("reference"),
	}, nil
}

func headerIndex(header []string) (map[string]int, error) {
	colIdx := make(map[string]int)
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		if _, known := statementHeaders[name]; known {
			colIdx[name] = i
		}
	}
	if _, ok := colIdx["date"]; !ok {
		return nil, ErrValidation("statement is missing a date column")
	}
	if _, ok := colIdx["amount"]; !ok {
		return nil, ErrValidation("statement is missing an amount column")
	}
	return colIdx, nil
}

func parseStatementCSV(r io.Reader) ([]*statementRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, ErrValidation("statement file is empty")
	}
	colIdx, err := headerIndex(header)
	if err != nil {
		return nil, err
	}

	var rows []*statementRow
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, ErrValidation(fmt.Sprintf("row %d: malformed csv", line+1))
		}
		line++
		row, err := parseStatementRecord(record, colIdx, line)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseStatementXLSX(r io.Reader) ([]*statementRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, ErrValidation("could not open xlsx file")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrValidation("xlsx file has no sheets")
	}
	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrValidation("statement file is empty")
	}

	colIdx, err := headerIndex(records[0])
	if err != nil {
		return nil, err
	}
	var rows []*statementRow
	for i, record := range records[1:] {
		row, err := parseStatementRecord(record, colIdx, i+2)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

type StatementImportInput struct {
	AccountId int
	FileName  string
	Content   []byte
}

// ImportBankStatement parses a CSV or XLSX statement, inserts the rows that
// are not already in the feed, and archives the raw file. Row-level dedupe
// keys on the bank's reference when present, else on (date, amount,
// description).
func ImportBankStatement(ctx context.Context, input *StatementImportInput) (*StatementImport, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if len(input.Content) == 0 {
		return nil, ErrValidation("statement file is empty")
	}
	if err := utils.ValidateResourceId[Account](ctx, businessId, input.AccountId); err != nil {
		return nil, err
	}

	var rows []*statementRow
	var err error
	switch {
	case strings.HasSuffix(strings.ToLower(input.FileName), ".csv"):
		rows, err = parseStatementCSV(bytes.NewReader(input.Content))
	case strings.HasSuffix(strings.ToLower(input.FileName), ".xlsx"):
		rows, err = parseStatementXLSX(bytes.NewReader(input.Content))
	default:
		return nil, ErrValidation("unsupported statement format, expected .csv or .xlsx")
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrValidation("statement has no rows")
	}

	sum := sha256.Sum256(input.Content)
	importHash := hex.EncodeToString(sum[:])

	stmtImport := StatementImport{
		BusinessId: businessId,
		AccountId:  input.AccountId,
		FileName:   input.FileName,
		ImportHash: importHash,
		RowCount:   len(rows),
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&stmtImport).Error; err != nil {
			if isDuplicateKeyErr(err) {
				return ErrConflict("this statement file was already imported")
			}
			return err
		}
		for _, row := range rows {
			dup, err := isDuplicateFeedRow(tx, businessId, input.AccountId, row)
			if err != nil {
				return err
			}
			if dup {
				stmtImport.DuplicateCount++
				continue
			}
			importId := stmtImport.ID
			bankTxn := BankTransaction{
				BusinessId:  businessId,
				AccountId:   input.AccountId,
				PostedDate:  row.PostedDate,
				AmountCents: row.AmountCents,
				Description: row.Description,
				Source:      BankTransactionSourceCSV,
				ExternalRef: row.ExternalRef,
				ImportId:    &importId,
			}
			if err := tx.Create(&bankTxn).Error; err != nil {
				return err
			}
			stmtImport.ImportedCount++
		}
		if err := tx.Model(&stmtImport).
			Updates(map[string]interface{}{
				"imported_count":  stmtImport.ImportedCount,
				"duplicate_count": stmtImport.DuplicateCount,
			}).Error; err != nil {
			return err
		}
		return appendActivity(tx, input.AccountId, EventStatementImported, StatementImportedPayload{
			StatementImportId: stmtImport.ID,
			FileName:          input.FileName,
			RowCount:          stmtImport.RowCount,
			ImportedCount:     stmtImport.ImportedCount,
			DuplicateCount:    stmtImport.DuplicateCount,
		})
	})
	if err != nil {
		return nil, err
	}

	// Archival is best-effort: the import stands even if the bucket write
	// fails.
	objectName := fmt.Sprintf("statements/%s/%d-%s", businessId, stmtImport.ID, input.FileName)
	if archived, err := utils.ArchiveStatementToGCS(ctx, objectName, bytes.NewReader(input.Content)); err != nil {
		config.LogError(config.GetLogger(), "models", "ImportBankStatement", "archive", objectName, err)
	} else {
		stmtImport.ArchiveObject = archived
		_ = db.WithContext(ctx).Model(&stmtImport).Update("archive_object", archived).Error
	}
	return &stmtImport, nil
}

func isDuplicateFeedRow(tx *gorm.DB, businessId string, accountId int, row *statementRow) (bool, error) {
	query := tx.Model(&BankTransaction{}).
		Where("business_id = ? AND account_id = ?", businessId, accountId)
	if row.ExternalRef != "" {
		query = query.Where("external_ref = ?", row.ExternalRef)
	} else {
		query = query.Where("posted_date = ? AND amount_cents = ? AND description = ?",
			row.PostedDate.Time(), row.AmountCents, row.Description)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func GetStatementImports(ctx context.Context, accountId int) ([]*StatementImport, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	query := db.WithContext(ctx).Model(&StatementImport{}).
		Where("business_id = ?", businessId)
	if accountId > 0 {
		query = query.Where("account_id = ?", accountId)
	}
	var imports []*StatementImport
	if err := query.Order("id DESC").Limit(50).Find(&imports).Error; err != nil {
		return nil, err
	}
	return imports, nil
}
