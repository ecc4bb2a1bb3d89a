package api

import (
	"errors"
	"net/http"
	"strings"

	"finamily/categorizer"
	"finamily/database"
	"finamily/middleware"
	"finamily/models"

	"github.com/gin-gonic/gin"
)

// RuleHandler categorization rule management
type RuleHandler struct {
	store *database.Store
}

// NewRuleHandler creates the handler.
func NewRuleHandler(store *database.Store) *RuleHandler {
	return &RuleHandler{store: store}
}

// RuleRequest create and update body. On update omitted fields are kept.
type RuleRequest struct {
	Keyword    *string `json:"keyword"`
	MatchType  *string `json:"match_type" enums:"contains,starts_with,exact"`
	CategoryID *string `json:"category_id"`
	Priority   *int    `json:"priority"`
	IsActive   *bool   `json:"is_active"`
}

// apply copies the set fields into r and validates the result.
func (req RuleRequest) apply(r *models.CategorizationRule) error {
	if req.Keyword != nil {
		r.Keyword = strings.TrimSpace(*req.Keyword)
	}
	if req.MatchType != nil {
		mt, err := categorizer.ParseMatchType(*req.MatchType)
		if err != nil {
			return err
		}
		r.MatchType = string(mt)
	}
	if req.CategoryID != nil {
		r.CategoryID = strings.TrimSpace(*req.CategoryID)
	}
	if req.Priority != nil {
		r.Priority = *req.Priority
	}
	if req.IsActive != nil {
		r.IsActive = *req.IsActive
	}

	switch {
	case r.Keyword == "":
		return errors.New("palavra-chave é obrigatória")
	case r.CategoryID == "":
		return errors.New("categoria é obrigatória")
	}
	return nil
}

// List rules
// @Summary Listar regras de categorização
// @Description Regras em ordem de avaliação (maior prioridade primeiro), incluindo inativas.
// @Tags regras
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.CategorizationRule
// @Router /api/categorization-rules [get]
func (h *RuleHandler) List(c *gin.Context) {
	rules, err := h.store.ListRules(c.Request.Context(), middleware.GetCurrentUserID(c))
	if err != nil {
		Fail(c, err, "Falha ao listar regras")
		return
	}
	c.JSON(http.StatusOK, rules)
}

// Create a rule
// @Summary Criar regra
// @Tags regras
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body RuleRequest true "Regra"
// @Success 201 {object} models.CategorizationRule
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse "categoria desconhecida"
// @Router /api/categorization-rules [post]
func (h *RuleHandler) Create(c *gin.Context) {
	var req RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Requisição inválida: "+err.Error())
		return
	}

	rule := &models.CategorizationRule{
		UserID:    middleware.GetCurrentUserID(c),
		MatchType: string(categorizer.MatchContains),
		IsActive:  true,
	}
	if err := req.apply(rule); err != nil {
		BadRequest(c, err.Error())
		return
	}

	if err := h.store.CreateRule(c.Request.Context(), rule); err != nil {
		Fail(c, err, "Falha ao criar regra")
		return
	}
	c.JSON(http.StatusCreated, rule)
}

// Update a rule
// @Summary Editar regra
// @Tags regras
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID da regra"
// @Param request body RuleRequest true "Campos a alterar"
// @Success 200 {object} models.CategorizationRule
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/categorization-rules/{id} [put]
func (h *RuleHandler) Update(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var req RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Requisição inválida: "+err.Error())
		return
	}

	rule, err := h.store.GetRule(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		Fail(c, err, "Falha ao carregar regra")
		return
	}
	if err := req.apply(rule); err != nil {
		BadRequest(c, err.Error())
		return
	}

	if err := h.store.SaveRule(c.Request.Context(), rule); err != nil {
		Fail(c, err, "Falha ao salvar regra")
		return
	}
	c.JSON(http.StatusOK, rule)
}

// Delete a rule
// @Summary Excluir regra
// @Tags regras
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID da regra"
// @Success 200 {object} MessageResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/categorization-rules/{id} [delete]
func (h *RuleHandler) Delete(c *gin.Context) {
	if err := h.store.DeleteRule(c.Request.Context(), middleware.GetCurrentUserID(c), c.Param("id")); err != nil {
		Fail(c, err, "Falha ao excluir regra")
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Regra excluída"})
}

// TestRuleRequest body of the rule test endpoint
type TestRuleRequest struct {
	Description string `json:"description" binding:"required"`
}

// TestRuleResponse the rule that would categorize the description, if any.
type TestRuleResponse struct {
	Matched    bool                       `json:"matched"`
	Rule       *models.CategorizationRule `json:"rule"`
	CategoryID *string                    `json:"category_id"`
}

// Test evaluates the active rules against a description
// @Summary Testar regras
// @Description Retorna a primeira regra ativa que casaria com a descrição, ou null.
// @Tags regras
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body TestRuleRequest true "Descrição"
// @Success 200 {object} TestRuleResponse
// @Router /api/categorization-rules/test [post]
func (h *RuleHandler) Test(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var req TestRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Informe a descrição")
		return
	}

	rules, err := h.store.ActiveRules(c.Request.Context(), userID)
	if err != nil {
		Fail(c, err, "Falha ao carregar regras")
		return
	}

	matched, ok := categorizer.NewRuleSet(rules).Match(req.Description)
	if !ok {
		c.JSON(http.StatusOK, TestRuleResponse{})
		return
	}
	rule, err := h.store.GetRule(c.Request.Context(), userID, matched.ID)
	if err != nil {
		Fail(c, err, "Falha ao carregar regra")
		return
	}
	c.JSON(http.StatusOK, TestRuleResponse{Matched: true, Rule: rule, CategoryID: &rule.CategoryID})
}
