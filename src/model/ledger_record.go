package model

import "time"

// LedgerRecord is the SQL row backing one symbol's ledger. Document holds the
// durable JSON layout verbatim; Version is bumped on every write and used for
// compare-and-swap updates.
type LedgerRecord struct {
	Symbol           string    `gorm:"primaryKey;size:20" json:"symbol"`
	Document         string    `gorm:"type:text;not null" json:"document"`
	PreviousDocument string    `gorm:"type:text" json:"previous_document,omitempty"` // state before the last write
	Version          int64     `gorm:"not null;default:1" json:"version"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName pins the table name for ledger records.
func (LedgerRecord) TableName() string {
	return "ledger_records"
}

// LedgerQuarantine keeps a ledger document that could not be decoded, one row
// per symbol and version.
type LedgerQuarantine struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Symbol    string    `gorm:"size:20;not null;uniqueIndex:idx_quarantine_symbol_version" json:"symbol"`
	Version   int64     `gorm:"not null;uniqueIndex:idx_quarantine_symbol_version" json:"version"`
	Document  string    `gorm:"type:text;not null" json:"document"`
	CreatedAt time.Time `json:"created_at"`
}

func (LedgerQuarantine) TableName() string {
	return "ledger_quarantine"
}
