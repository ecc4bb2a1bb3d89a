package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CategoryTypeSpecial categories accept both receita and despesa.
const CategoryTypeSpecial = "especial"

// Category transaction category, maintained by the categories service.
type Category struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	UserID    string    `json:"user_id" gorm:"size:36;not null;index"`
	Name      string    `json:"name" gorm:"size:100;not null"`
	Type      string    `json:"type" gorm:"size:10;not null"`
	IsFixed   bool      `json:"is_fixed" gorm:"default:false"`
	CreatedAt time.Time `json:"created_at"`
}

func (Category) TableName() string {
	return "categories"
}

func (c *Category) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// Accepts reports whether a transaction of txType may use this category.
func (c Category) Accepts(txType string) bool {
	return CategoryAccepts(c.Type, txType)
}

// CategoryAccepts is Category.Accepts for callers holding only the type.
func CategoryAccepts(categoryType, txType string) bool {
	return categoryType == CategoryTypeSpecial || categoryType == txType
}
