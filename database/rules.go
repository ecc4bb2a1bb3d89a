package database

import (
	"context"
	"errors"

	"finamily/models"

	"gorm.io/gorm"
)

// ListRules all rules of the account in evaluation order, inactive included.
func (s *Store) ListRules(ctx context.Context, userID string) ([]models.CategorizationRule, error) {
	var rules []models.CategorizationRule
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("priority DESC, created_at ASC, id ASC").
		Find(&rules).Error
	return rules, err
}

// GetRule returns ErrNotFound for rules outside the account.
func (s *Store) GetRule(ctx context.Context, userID, id string) (*models.CategorizationRule, error) {
	var r models.CategorizationRule
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateRule stores r after checking its category belongs to the account.
func (s *Store) CreateRule(ctx context.Context, r *models.CategorizationRule) error {
	if _, err := s.GetCategory(ctx, r.UserID, r.CategoryID); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(r).Error
}

// SaveRule writes every field of an existing rule.
func (s *Store) SaveRule(ctx context.Context, r *models.CategorizationRule) error {
	if _, err := s.GetCategory(ctx, r.UserID, r.CategoryID); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(r).Select(
		"keyword", "match_type", "category_id", "priority", "is_active", "updated_at",
	).Updates(r).Error
}

// DeleteRule removes one rule of the account.
func (s *Store) DeleteRule(ctx context.Context, userID, id string) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.CategorizationRule{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}
