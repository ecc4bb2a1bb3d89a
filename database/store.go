package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"finamily/categorizer"
	"finamily/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store gorm-backed persistence for imports, rules and transactions. Every
// query is scoped to one family account.
type Store struct {
	db *gorm.DB
}

// NewStore wraps db.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB the underlying connection.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) exists(ctx context.Context, model any, where string, args ...any) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(model).Where(where, args...).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// MemberActive reports whether memberID is an active member of the account.
func (s *Store) MemberActive(ctx context.Context, userID, memberID string) (bool, error) {
	return s.exists(ctx, &models.FamilyMember{}, "id = ? AND user_id = ? AND active = ?", memberID, userID, true)
}

// BankActive reports whether bankID is an active bank of the account.
func (s *Store) BankActive(ctx context.Context, userID, bankID string) (bool, error) {
	return s.exists(ctx, &models.Bank{}, "id = ? AND user_id = ? AND active = ?", bankID, userID, true)
}

// GetCategory returns ErrUnknownReference when the category is not the user's.
func (s *Store) GetCategory(ctx context.Context, userID, categoryID string) (*models.Category, error) {
	var cat models.Category
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", categoryID, userID).First(&cat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: categoria %s", models.ErrUnknownReference, categoryID)
	}
	if err != nil {
		return nil, err
	}
	return &cat, nil
}

// CategoryTypes category id → type for the account.
func (s *Store) CategoryTypes(ctx context.Context, userID string) (map[string]string, error) {
	var cats []models.Category
	if err := s.db.WithContext(ctx).Select("id", "type").Where("user_id = ?", userID).Find(&cats).Error; err != nil {
		return nil, err
	}
	out := make(map[string]string, len(cats))
	for _, c := range cats {
		out[c.ID] = c.Type
	}
	return out, nil
}

// ActiveRules loads the account's active rules, read fresh on every call.
func (s *Store) ActiveRules(ctx context.Context, userID string) ([]categorizer.Rule, error) {
	var rows []models.CategorizationRule
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("priority DESC, created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	rules := make([]categorizer.Rule, 0, len(rows))
	for _, r := range rows {
		rules = append(rules, toRule(r))
	}
	return rules, nil
}

func toRule(r models.CategorizationRule) categorizer.Rule {
	mt, err := categorizer.ParseMatchType(r.MatchType)
	if err != nil {
		mt = categorizer.MatchContains
	}
	return categorizer.Rule{
		ID:         r.ID,
		Keyword:    r.Keyword,
		MatchType:  mt,
		CategoryID: r.CategoryID,
		Priority:   r.Priority,
		IsActive:   r.IsActive,
		CreatedAt:  r.CreatedAt,
	}
}

// ImportFingerprints fingerprints already stored for one member and bank.
func (s *Store) ImportFingerprints(ctx context.Context, userID, memberID, bankID string) (map[string]struct{}, error) {
	var fps []string
	err := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("user_id = ? AND member_id = ? AND bank_id = ?", userID, memberID, bankID).
		Pluck("import_fingerprint", &fps).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, len(fps))
	for _, fp := range fps {
		out[fp] = struct{}{}
	}
	return out, nil
}

// InsertTransaction inserts tx unless its fingerprint is already stored for
// the account. The unique index decides, so concurrent imports of the same
// statement cannot both insert.
func (s *Store) InsertTransaction(ctx context.Context, tx *models.Transaction) (bool, error) {
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(tx)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// UncategorizedTransactions the account's transactions without category.
func (s *Store) UncategorizedTransactions(ctx context.Context, userID string) ([]models.Transaction, error) {
	var txns []models.Transaction
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND category_id IS NULL", userID).
		Order("date ASC, id ASC").
		Find(&txns).Error
	return txns, err
}

// AssignCategory sets the category of a still uncategorized transaction.
func (s *Store) AssignCategory(ctx context.Context, userID, transactionID, categoryID string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ? AND user_id = ? AND category_id IS NULL", transactionID, userID).
		Updates(map[string]any{"category_id": categoryID, "updated_at": time.Now()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// BulkCategorize assigns categoryID to every listed transaction or to none.
// Unknown category or any id outside the account → ErrUnknownReference; a
// category that does not accept one of the transaction types →
// ErrIncompatibleCategory. Duplicate ids count once and rows already in the
// category are not counted.
func (s *Store) BulkCategorize(ctx context.Context, userID string, ids []string, categoryID string) (int64, error) {
	unique := dedupe(ids)
	if len(unique) == 0 {
		return 0, nil
	}

	var count int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cat models.Category
		err := tx.Where("id = ? AND user_id = ?", categoryID, userID).First(&cat).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: categoria %s", models.ErrUnknownReference, categoryID)
		}
		if err != nil {
			return err
		}

		var txns []models.Transaction
		if err := tx.Select("id", "type").Where("user_id = ? AND id IN ?", userID, unique).Find(&txns).Error; err != nil {
			return err
		}
		if len(txns) != len(unique) {
			return fmt.Errorf("%w: %d transação(ões) não encontrada(s)", models.ErrUnknownReference, len(unique)-len(txns))
		}
		for _, t := range txns {
			if !cat.Accepts(t.Type) {
				return fmt.Errorf("%w: %s não aceita %s", models.ErrIncompatibleCategory, cat.Name, t.Type)
			}
		}

		res := tx.Model(&models.Transaction{}).
			Where("user_id = ? AND id IN ?", userID, unique).
			Where("(category_id IS NULL OR category_id <> ?)", categoryID).
			Updates(map[string]any{"category_id": categoryID, "updated_at": time.Now()})
		if res.Error != nil {
			return res.Error
		}
		count = res.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Categories the account's categories by name.
func (s *Store) Categories(ctx context.Context, userID string) ([]models.Category, error) {
	var cats []models.Category
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("name ASC").Find(&cats).Error
	return cats, err
}
