package models

import (
	"bitbucket.org/mmdatafocus/recon_backend/config"
)

// Migrate creates or updates all tables. Order matters for foreign keys.
func Migrate() error {
	db := config.GetDB()
	return db.AutoMigrate(
		&Business{},
		&User{},
		&Account{},
		&Entry{},
		&BankTransaction{},
		&BankMatch{},
		&MatchGroup{},
		&MatchGroupBank{},
		&MatchGroupEntry{},
		&MatchClaim{},
		&Activity{},
		&ReportingOutboxRecord{},
		&IdempotencyKey{},
		&RolePolicyOverride{},
		&StatementImport{},
	)
}
