package categorizer

import (
	"context"
	"errors"
	"testing"

	"finamily/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	rules    []Rule
	types    map[string]string
	txns     []models.Transaction
	assigned map[string]string
	rulesErr error
}

func (f *fakeStore) ActiveRules(ctx context.Context, userID string) ([]Rule, error) {
	return f.rules, f.rulesErr
}

func (f *fakeStore) CategoryTypes(ctx context.Context, userID string) (map[string]string, error) {
	return f.types, nil
}

func (f *fakeStore) UncategorizedTransactions(ctx context.Context, userID string) ([]models.Transaction, error) {
	return f.txns, nil
}

func (f *fakeStore) AssignCategory(ctx context.Context, userID, transactionID, categoryID string) (bool, error) {
	if f.assigned == nil {
		f.assigned = map[string]string{}
	}
	if _, done := f.assigned[transactionID]; done {
		return false, nil
	}
	f.assigned[transactionID] = categoryID
	return true, nil
}

func TestApplyToUncategorized(t *testing.T) {
	store := &fakeStore{
		rules: []Rule{
			rule("r1", "posto", MatchStartsWith, "combustivel", 1),
			rule("r2", "salario", MatchContains, "renda", 1),
		},
		types: map[string]string{"combustivel": "despesa", "renda": "receita"},
		txns: []models.Transaction{
			{ID: "t1", Description: "POSTO IPIRANGA", Type: models.TransactionTypeExpense},
			{ID: "t2", Description: "SALARIO EMPRESA X", Type: models.TransactionTypeIncome},
			{ID: "t3", Description: "PADARIA", Type: models.TransactionTypeExpense},
			// matches a despesa category but is income
			{ID: "t4", Description: "POSTO ESTORNO", Type: models.TransactionTypeIncome},
		},
	}

	count, err := ApplyToUncategorized(context.Background(), store, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, map[string]string{"t1": "combustivel", "t2": "renda"}, store.assigned)
}

func TestApplyToUncategorized_NoRules(t *testing.T) {
	store := &fakeStore{txns: []models.Transaction{{ID: "t1", Description: "x"}}}

	count, err := ApplyToUncategorized(context.Background(), store, "user-1")
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, store.assigned)
}

func TestApplyToUncategorized_StoreError(t *testing.T) {
	store := &fakeStore{rulesErr: errors.New("db down")}

	_, err := ApplyToUncategorized(context.Background(), store, "user-1")
	assert.ErrorContains(t, err, "db down")
}
