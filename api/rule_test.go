package api

import (
	"net/http"
	"testing"

	"finamily/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *apiFixture) createRule(t *testing.T, body map[string]any) models.CategorizationRule {
	t.Helper()
	w := f.doJSON(http.MethodPost, "/rules", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[models.CategorizationRule](t, w)
}

func TestRuleHandler_Create(t *testing.T) {
	f := newAPIFixture(t)

	r := f.createRule(t, map[string]any{"keyword": "  Uber  ", "category_id": f.expense.ID})
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "Uber", r.Keyword)
	assert.Equal(t, "contains", r.MatchType)
	assert.True(t, r.IsActive)
	assert.Equal(t, 0, r.Priority)

	inactive := f.createRule(t, map[string]any{"keyword": "pix", "category_id": f.expense.ID, "is_active": false, "match_type": "starts_with"})
	assert.False(t, inactive.IsActive)

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{"missing keyword", map[string]any{"category_id": f.expense.ID}, http.StatusBadRequest},
		{"blank keyword", map[string]any{"keyword": "   ", "category_id": f.expense.ID}, http.StatusBadRequest},
		{"missing category", map[string]any{"keyword": "x"}, http.StatusBadRequest},
		{"bad match type", map[string]any{"keyword": "x", "category_id": f.expense.ID, "match_type": "regex"}, http.StatusBadRequest},
		{"unknown category", map[string]any{"keyword": "x", "category_id": "ghost"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.doJSON(http.MethodPost, "/rules", tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestRuleHandler_ListUpdateDelete(t *testing.T) {
	f := newAPIFixture(t)
	low := f.createRule(t, map[string]any{"keyword": "uber", "category_id": f.expense.ID, "priority": 5})
	f.createRule(t, map[string]any{"keyword": "uber eats", "category_id": f.expense.ID, "priority": 10})

	rules := decode[[]models.CategorizationRule](t, f.doJSON(http.MethodGet, "/rules", nil))
	require.Len(t, rules, 2)
	assert.Equal(t, "uber eats", rules[0].Keyword)

	w := f.doJSON(http.MethodPut, "/rules/"+low.ID, map[string]any{"priority": 20, "is_active": false})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[models.CategorizationRule](t, w)
	assert.Equal(t, 20, updated.Priority)
	assert.False(t, updated.IsActive)
	assert.Equal(t, "uber", updated.Keyword, "omitted fields are kept")

	rules = decode[[]models.CategorizationRule](t, f.doJSON(http.MethodGet, "/rules", nil))
	assert.Equal(t, low.ID, rules[0].ID)

	assert.Equal(t, http.StatusBadRequest, f.doJSON(http.MethodPut, "/rules/"+low.ID, map[string]any{"match_type": "fuzzy"}).Code)
	assert.Equal(t, http.StatusNotFound, f.doJSON(http.MethodPut, "/rules/"+low.ID, map[string]any{"category_id": "ghost"}).Code)
	assert.Equal(t, http.StatusNotFound, f.doJSON(http.MethodPut, "/rules/ghost", map[string]any{"priority": 1}).Code)

	require.Equal(t, http.StatusOK, f.doJSON(http.MethodDelete, "/rules/"+low.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, f.doJSON(http.MethodDelete, "/rules/"+low.ID, nil).Code)
}

func TestRuleHandler_Test(t *testing.T) {
	f := newAPIFixture(t)
	f.createRule(t, map[string]any{"keyword": "uber", "category_id": f.expense.ID, "priority": 5})
	eats := f.createRule(t, map[string]any{"keyword": "uber eats", "category_id": f.transfer.ID, "priority": 10})
	shell := f.createRule(t, map[string]any{"keyword": "posto shell", "match_type": "exact", "category_id": f.expense.ID})
	f.createRule(t, map[string]any{"keyword": "farmacia", "category_id": f.expense.ID, "priority": 50, "is_active": false})

	probe := func(desc string) TestRuleResponse {
		w := f.doJSON(http.MethodPost, "/rules/test", TestRuleRequest{Description: desc})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		return decode[TestRuleResponse](t, w)
	}

	got := probe("UBER EATS *PEDIDO 123")
	require.True(t, got.Matched)
	assert.Equal(t, eats.ID, got.Rule.ID)
	require.NotNil(t, got.CategoryID)
	assert.Equal(t, f.transfer.ID, *got.CategoryID)

	got = probe("Posto Shell")
	require.True(t, got.Matched)
	assert.Equal(t, shell.ID, got.Rule.ID)

	got = probe("Posto Shell 24h")
	assert.False(t, got.Matched)
	assert.Nil(t, got.Rule)
	assert.Nil(t, got.CategoryID)

	assert.False(t, probe("FARMACIA SAO JOAO").Matched, "inactive rules are skipped")

	assert.Equal(t, http.StatusBadRequest, f.doJSON(http.MethodPost, "/rules/test", map[string]any{}).Code)
}
