package models

// EntryType is the cash-basis classification of a ledger entry.
// Sign convention is locked: positive cents = inflow, negative = outflow.
type EntryType string

const (
	EntryTypeIncome     EntryType = "INCOME"
	EntryTypeExpense    EntryType = "EXPENSE"
	EntryTypeTransfer   EntryType = "TRANSFER"
	EntryTypeAdjustment EntryType = "ADJUSTMENT"
	EntryTypeOpening    EntryType = "OPENING"
)

type Direction string

const (
	DirectionInflow  Direction = "INFLOW"
	DirectionOutflow Direction = "OUTFLOW"
)

func (d Direction) Valid() bool {
	return d == DirectionInflow || d == DirectionOutflow
}

type BankTransactionSource string

const (
	BankTransactionSourcePlaid BankTransactionSource = "PLAID"
	BankTransactionSourceCSV   BankTransactionSource = "CSV"
)

type MatchType string

const (
	MatchTypeFull    MatchType = "FULL"
	MatchTypePartial MatchType = "PARTIAL"
)

type MatchGroupStatus string

const (
	MatchGroupStatusActive MatchGroupStatus = "ACTIVE"
	MatchGroupStatusVoided MatchGroupStatus = "VOIDED"
)

// ClaimResourceType discriminates match-claim rows between the two id spaces.
type ClaimResourceType string

const (
	ClaimResourceBank  ClaimResourceType = "BANK"
	ClaimResourceEntry ClaimResourceType = "ENTRY"
)

// EventType keys the activity log's tagged payload union.
type EventType string

const (
	EventMatchGroupCreated      EventType = "RECONCILE_MATCH_GROUP_CREATED"
	EventMatchGroupVoided       EventType = "RECONCILE_MATCH_GROUP_VOIDED"
	EventMatchCreated           EventType = "RECONCILE_MATCH_CREATED"
	EventMatchVoided            EventType = "RECONCILE_MATCH_VOIDED"
	EventEntryCreatedFromBank   EventType = "RECONCILE_ENTRY_CREATED_FROM_BANK_TXN"
	EventClosedThroughUpdated   EventType = "CLOSED_THROUGH_UPDATED"
	EventStatementImported      EventType = "BANK_STATEMENT_IMPORTED"
)

type UserRole string

const (
	UserRoleOwner      UserRole = "OWNER"
	UserRoleAdmin      UserRole = "ADMIN"
	UserRoleBookkeeper UserRole = "BOOKKEEPER"
	UserRoleViewer     UserRole = "VIEWER"
)

// PolicyLevel orders permissions so "at least Edit" style checks are a simple compare.
type PolicyLevel int

const (
	PolicyLevelNone PolicyLevel = iota
	PolicyLevelView
	PolicyLevelEdit
	PolicyLevelFull
)

func (l PolicyLevel) String() string {
	switch l {
	case PolicyLevelView:
		return "VIEW"
	case PolicyLevelEdit:
		return "EDIT"
	case PolicyLevelFull:
		return "FULL"
	default:
		return "NONE"
	}
}

type OutboxPublishStatus string

const (
	OutboxPublishStatusPending   OutboxPublishStatus = "PENDING"
	OutboxPublishStatusPublished OutboxPublishStatus = "PUBLISHED"
	OutboxPublishStatusDead      OutboxPublishStatus = "DEAD"
)

type IdempotencyStatus string

const (
	IdempotencyStatusStarted   IdempotencyStatus = "STARTED"
	IdempotencyStatusSucceeded IdempotencyStatus = "SUCCEEDED"
	IdempotencyStatusFailed    IdempotencyStatus = "FAILED"
)
