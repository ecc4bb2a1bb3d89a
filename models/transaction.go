package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func init() {
	// the front end expects amounts as JSON numbers
	decimal.MarshalJSONWithoutQuotes = true
}

// Transaction types
const (
	TransactionTypeIncome  = "receita"
	TransactionTypeExpense = "despesa"
)

// Transaction one financial movement. Amount is always a positive magnitude,
// the direction lives in Type.
type Transaction struct {
	ID          string          `json:"id" gorm:"primaryKey;size:36"`
	UserID      string          `json:"user_id" gorm:"size:36;not null;index;uniqueIndex:idx_transactions_fingerprint,priority:1"`
	Date        time.Time       `json:"date" gorm:"type:date;not null;index"`
	Description string          `json:"description" gorm:"type:text;not null"`
	Amount      decimal.Decimal `json:"amount" gorm:"type:decimal(12,2);not null"`
	Type        string          `json:"type" gorm:"size:10;not null"`
	CategoryID  *string         `json:"category_id" gorm:"size:36;index"`
	MemberID    string          `json:"member_id" gorm:"size:36;index"`
	BankID      string          `json:"bank_id" gorm:"size:36;index"`
	// ImportFingerprint keeps its import-time value across edits so a
	// re-imported statement is still recognised.
	ImportFingerprint string    `json:"-" gorm:"size:64;not null;uniqueIndex:idx_transactions_fingerprint,priority:2"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// TableName table name
func (Transaction) TableName() string {
	return "transactions"
}

// BeforeCreate assigns a UUID when none was set.
func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

// IsValidTransactionType reports whether s is receita or despesa.
func IsValidTransactionType(s string) bool {
	return s == TransactionTypeIncome || s == TransactionTypeExpense
}
