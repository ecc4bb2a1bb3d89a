package importer

import (
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"finamily/models"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/blake2b"
)

// Row a normalized, storable transaction candidate.
type Row struct {
	Line        int
	Date        time.Time
	Description string
	Amount      decimal.Decimal
	Type        string
}

// Normalize trims the description, rounds the magnitude half-up to cents and
// derives the type from the sign unless the file stated it.
func Normalize(d Draft) (Row, error) {
	desc := strings.TrimSpace(d.Description)
	if desc == "" {
		return Row{}, errors.New("descrição vazia")
	}
	if d.Date.IsZero() {
		return Row{}, errors.New("data ausente")
	}

	amount := d.Amount.Abs().Round(2)
	if amount.IsZero() {
		return Row{}, errors.New("valor zero")
	}

	txType := d.Type
	if txType == "" {
		txType = models.TransactionTypeIncome
		if d.Amount.IsNegative() {
			txType = models.TransactionTypeExpense
		}
	}

	return Row{
		Line:        d.Line,
		Date:        time.Date(d.Date.Year(), d.Date.Month(), d.Date.Day(), 0, 0, 0, 0, time.UTC),
		Description: desc,
		Amount:      amount,
		Type:        txType,
	}, nil
}

// Fingerprint dedup key over date, description, amount, member and bank.
func Fingerprint(row Row, memberID, bankID string) string {
	key := strings.Join([]string{
		row.Date.Format("2006-01-02"),
		row.Description,
		row.Amount.StringFixed(2),
		memberID,
		bankID,
	}, "\x1f")
	sum := blake2b.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
