package categorizer

import (
	"context"
	"fmt"

	"finamily/models"
)

// Store what ApplyToUncategorized needs from persistence.
type Store interface {
	ActiveRules(ctx context.Context, userID string) ([]Rule, error)
	CategoryTypes(ctx context.Context, userID string) (map[string]string, error)
	UncategorizedTransactions(ctx context.Context, userID string) ([]models.Transaction, error)
	// AssignCategory sets the category only if the row is still uncategorized.
	AssignCategory(ctx context.Context, userID, transactionID, categoryID string) (bool, error)
}

// Resolve picks the category for a transaction: the first matching rule's
// category, kept only when that category accepts txType.
func Resolve(rules RuleSet, categoryTypes map[string]string, description, txType string) *string {
	r, ok := rules.Match(description)
	if !ok {
		return nil
	}
	catType, known := categoryTypes[r.CategoryID]
	if !known || !models.CategoryAccepts(catType, txType) {
		return nil
	}
	id := r.CategoryID
	return &id
}

// ApplyToUncategorized runs the current rules over the user's uncategorized
// transactions and returns how many were categorized.
func ApplyToUncategorized(ctx context.Context, store Store, userID string) (int, error) {
	rules, err := store.ActiveRules(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("load rules: %w", err)
	}
	set := NewRuleSet(rules)
	if set.Len() == 0 {
		return 0, nil
	}

	categoryTypes, err := store.CategoryTypes(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("load categories: %w", err)
	}

	txns, err := store.UncategorizedTransactions(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("load transactions: %w", err)
	}

	count := 0
	for _, t := range txns {
		categoryID := Resolve(set, categoryTypes, t.Description, t.Type)
		if categoryID == nil {
			continue
		}
		updated, err := store.AssignCategory(ctx, userID, t.ID, *categoryID)
		if err != nil {
			return count, fmt.Errorf("categorize transaction %s: %w", t.ID, err)
		}
		if updated {
			count++
		}
	}
	return count, nil
}
