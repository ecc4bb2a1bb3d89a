package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"finamily/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionFilter list filters. Zero values are ignored; Month needs Year.
type TransactionFilter struct {
	Month         int
	Year          int
	CategoryID    string
	MemberID      string
	BankID        string
	Uncategorized bool
}

// DateRange the [from, to) range selected by Month and Year.
func (f TransactionFilter) DateRange() (from, to time.Time, ok bool) {
	if f.Year <= 0 {
		return time.Time{}, time.Time{}, false
	}
	if f.Month >= 1 && f.Month <= 12 {
		from = time.Date(f.Year, time.Month(f.Month), 1, 0, 0, 0, 0, time.UTC)
		return from, from.AddDate(0, 1, 0), true
	}
	from = time.Date(f.Year, 1, 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(1, 0, 0), true
}

func (s *Store) scopedTransactions(ctx context.Context, userID string, f TransactionFilter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&models.Transaction{}).Where("user_id = ?", userID)
	if from, to, ok := f.DateRange(); ok {
		q = q.Where("date >= ? AND date < ?", from, to)
	}
	if f.Uncategorized {
		q = q.Where("category_id IS NULL")
	} else if f.CategoryID != "" {
		q = q.Where("category_id = ?", f.CategoryID)
	}
	if f.MemberID != "" {
		q = q.Where("member_id = ?", f.MemberID)
	}
	if f.BankID != "" {
		q = q.Where("bank_id = ?", f.BankID)
	}
	return q
}

// ListTransactions newest first.
func (s *Store) ListTransactions(ctx context.Context, userID string, f TransactionFilter) ([]models.Transaction, error) {
	var txns []models.Transaction
	err := s.scopedTransactions(ctx, userID, f).
		Order("date DESC, created_at DESC, id ASC").
		Find(&txns).Error
	return txns, err
}

// GetTransaction returns ErrNotFound for ids outside the account.
func (s *Store) GetTransaction(ctx context.Context, userID, id string) (*models.Transaction, error) {
	var t models.Transaction
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// TransactionPatch fields to change; nil leaves the field alone. An empty
// CategoryID clears the category.
type TransactionPatch struct {
	Date        *time.Time
	Description *string
	Amount      *decimal.Decimal
	Type        *string
	CategoryID  *string
	MemberID    *string
	BankID      *string
}

// UpdateTransaction applies p after checking the resulting row still holds:
// positive amount, known type, own member and bank, compatible category.
func (s *Store) UpdateTransaction(ctx context.Context, userID, id string, p TransactionPatch) (*models.Transaction, error) {
	t, err := s.GetTransaction(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if p.Date != nil {
		d := p.Date.UTC()
		t.Date = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	}
	if p.Description != nil {
		desc := strings.TrimSpace(*p.Description)
		if desc == "" {
			return nil, fmt.Errorf("%w: descrição não pode ser vazia", models.ErrValidation)
		}
		t.Description = desc
	}
	if p.Amount != nil {
		amount := p.Amount.Abs().Round(2)
		if amount.IsZero() {
			return nil, fmt.Errorf("%w: valor deve ser maior que zero", models.ErrValidation)
		}
		t.Amount = amount
	}
	if p.Type != nil {
		if !models.IsValidTransactionType(*p.Type) {
			return nil, fmt.Errorf("%w: tipo inválido %q", models.ErrValidation, *p.Type)
		}
		t.Type = *p.Type
	}
	if p.MemberID != nil && *p.MemberID != t.MemberID {
		ok, err := s.MemberActive(ctx, userID, *p.MemberID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: membro %s", models.ErrUnknownReference, *p.MemberID)
		}
		t.MemberID = *p.MemberID
	}
	if p.BankID != nil && *p.BankID != t.BankID {
		ok, err := s.BankActive(ctx, userID, *p.BankID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: banco %s", models.ErrUnknownReference, *p.BankID)
		}
		t.BankID = *p.BankID
	}
	if p.CategoryID != nil {
		if *p.CategoryID == "" {
			t.CategoryID = nil
		} else {
			id := *p.CategoryID
			t.CategoryID = &id
		}
	}
	if t.CategoryID != nil && (p.CategoryID != nil || p.Type != nil) {
		cat, err := s.GetCategory(ctx, userID, *t.CategoryID)
		if err != nil {
			return nil, err
		}
		if !cat.Accepts(t.Type) {
			return nil, fmt.Errorf("%w: %s não aceita %s", models.ErrIncompatibleCategory, cat.Name, t.Type)
		}
	}

	err = s.db.WithContext(ctx).Model(t).Select(
		"date", "description", "amount", "type", "category_id", "member_id", "bank_id", "updated_at",
	).Updates(t).Error
	if err != nil {
		return nil, err
	}
	return t, nil
}

// DeleteTransaction removes one transaction of the account.
func (s *Store) DeleteTransaction(ctx context.Context, userID, id string) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.Transaction{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}

// DeleteAllTransactions removes every transaction of the account.
func (s *Store) DeleteAllTransactions(ctx context.Context, userID string) (int64, error) {
	res := s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.Transaction{})
	return res.RowsAffected, res.Error
}
