package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CategorizationRule user keyword rule. Higher priority is evaluated first.
type CategorizationRule struct {
	ID         string    `json:"id" gorm:"primaryKey;size:36"`
	UserID     string    `json:"-" gorm:"size:36;not null;index"`
	Keyword    string    `json:"keyword" gorm:"size:255;not null"`
	MatchType  string    `json:"match_type" gorm:"size:20;not null;default:contains"`
	CategoryID string    `json:"category_id" gorm:"size:36;not null;index"`
	Priority   int       `json:"priority" gorm:"not null;default:0;index"`
	IsActive   bool      `json:"is_active" gorm:"not null"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (CategorizationRule) TableName() string {
	return "categorization_rules"
}

func (r *CategorizationRule) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
