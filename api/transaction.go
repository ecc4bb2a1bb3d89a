package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"finamily/categorizer"
	"finamily/database"
	"finamily/importer"
	"finamily/middleware"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// TransactionHandler statement import and transaction maintenance
type TransactionHandler struct {
	store     *database.Store
	importer  *importer.Service
	maxUpload int64
}

// NewTransactionHandler creates the handler. maxUpload bounds the request
// body in bytes.
func NewTransactionHandler(store *database.Store, svc *importer.Service, maxUpload int64) *TransactionHandler {
	return &TransactionHandler{store: store, importer: svc, maxUpload: maxUpload}
}

// Import uploads a statement
// @Summary Importar extrato
// @Description Importa um extrato CSV ou OFX para um membro e banco. Linhas duplicadas são ignoradas e as regras de categorização são aplicadas.
// @Tags transações
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "Arquivo .csv ou .ofx"
// @Param member_id formData string true "ID do membro"
// @Param bank_id formData string true "ID do banco"
// @Success 200 {object} importer.Summary
// @Failure 400 {object} ErrorResponse "formato não suportado"
// @Failure 404 {object} ErrorResponse "membro ou banco desconhecido"
// @Failure 413 {object} ErrorResponse "arquivo muito grande"
// @Failure 422 {object} ErrorResponse "arquivo inválido"
// @Failure 429 {object} ErrorResponse "limite de importações"
// @Router /api/transactions/import [post]
func (h *TransactionHandler) Import(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)
	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	}

	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			Error(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("Arquivo excede o limite de %d MB", h.maxUpload>>20))
			return
		}
		BadRequest(c, "Envie o arquivo do extrato no campo 'file'")
		return
	}

	memberID := strings.TrimSpace(c.PostForm("member_id"))
	bankID := strings.TrimSpace(c.PostForm("bank_id"))
	if memberID == "" || bankID == "" {
		BadRequest(c, "member_id e bank_id são obrigatórios")
		return
	}

	if _, err := importer.DetectFormat(file.Filename); err != nil {
		Fail(c, err, "Formato não suportado")
		return
	}

	body, err := file.Open()
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "Falha ao ler arquivo"))
		return
	}
	defer body.Close()

	summary, err := h.importer.Import(c.Request.Context(), importer.Request{
		UserID:   userID,
		MemberID: memberID,
		BankID:   bankID,
		Filename: file.Filename,
		Body:     body,
	})
	if err != nil {
		Fail(c, err, "Falha ao importar extrato")
		return
	}
	c.JSON(http.StatusOK, summary)
}

// BulkCategorizeRequest body of bulk-categorize
type BulkCategorizeRequest struct {
	TransactionIDs []string `json:"transaction_ids"`
	CategoryID     string   `json:"category_id" binding:"required"`
}

// BulkCategorize assigns one category to many transactions
// @Summary Categorizar em lote
// @Description Atribui a categoria a todas as transações informadas, ou a nenhuma se alguma for inválida.
// @Tags transações
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body BulkCategorizeRequest true "Transações e categoria"
// @Success 200 {object} CountResponse
// @Failure 400 {object} ErrorResponse "lista vazia ou categoria incompatível"
// @Failure 404 {object} ErrorResponse "categoria ou transação desconhecida"
// @Router /api/transactions/bulk-categorize [post]
func (h *TransactionHandler) BulkCategorize(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var req BulkCategorizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Requisição inválida: "+err.Error())
		return
	}
	if len(req.TransactionIDs) == 0 {
		BadRequest(c, "Nenhuma transação selecionada")
		return
	}

	count, err := h.store.BulkCategorize(c.Request.Context(), userID, req.TransactionIDs, req.CategoryID)
	if err != nil {
		Fail(c, err, "Falha ao categorizar transações")
		return
	}
	c.JSON(http.StatusOK, CountResponse{
		Count:   count,
		Message: fmt.Sprintf("%d transações categorizadas", count),
	})
}

// ApplyRules runs the rules over uncategorized transactions
// @Summary Aplicar regras
// @Description Aplica as regras de categorização ativas às transações sem categoria.
// @Tags transações
// @Produce json
// @Security BearerAuth
// @Success 200 {object} CountResponse
// @Router /api/transactions/apply-rules [post]
func (h *TransactionHandler) ApplyRules(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	count, err := categorizer.ApplyToUncategorized(c.Request.Context(), h.store, userID)
	if err != nil {
		Fail(c, err, "Falha ao aplicar regras")
		return
	}
	c.JSON(http.StatusOK, CountResponse{
		Count:   int64(count),
		Message: fmt.Sprintf("%d transações categorizadas automaticamente", count),
	})
}

// parseFilter reads month, year, category_id, member_id, bank_id and
// uncategorized from the query string.
func parseFilter(c *gin.Context) (database.TransactionFilter, error) {
	f := database.TransactionFilter{
		CategoryID: c.Query("category_id"),
		MemberID:   c.Query("member_id"),
		BankID:     c.Query("bank_id"),
	}
	if v := c.Query("month"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			return f, errors.New("mês inválido")
		}
		f.Month = m
	}
	if v := c.Query("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1900 || y > 9999 {
			return f, errors.New("ano inválido")
		}
		f.Year = y
	}
	if f.Month != 0 && f.Year == 0 {
		f.Year = time.Now().Year()
	}
	if v := c.Query("uncategorized"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, errors.New("uncategorized deve ser true ou false")
		}
		f.Uncategorized = b
	}
	return f, nil
}

// List transactions
// @Summary Listar transações
// @Tags transações
// @Produce json
// @Security BearerAuth
// @Param month query int false "Mês (1-12)"
// @Param year query int false "Ano"
// @Param category_id query string false "Categoria"
// @Param member_id query string false "Membro"
// @Param bank_id query string false "Banco"
// @Param uncategorized query bool false "Somente sem categoria"
// @Success 200 {array} models.Transaction
// @Failure 400 {object} ErrorResponse
// @Router /api/transactions [get]
func (h *TransactionHandler) List(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	filter, err := parseFilter(c)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}

	txns, err := h.store.ListTransactions(c.Request.Context(), userID, filter)
	if err != nil {
		Fail(c, err, "Falha ao listar transações")
		return
	}
	c.JSON(http.StatusOK, txns)
}

// UpdateTransactionRequest partial update; omitted fields are kept.
// An empty category_id removes the category.
type UpdateTransactionRequest struct {
	Date        *string          `json:"date" example:"2024-03-05"`
	Description *string          `json:"description"`
	Amount      *decimal.Decimal `json:"amount" swaggertype:"number"`
	Type        *string          `json:"type" enums:"receita,despesa"`
	CategoryID  *string          `json:"category_id"`
	MemberID    *string          `json:"member_id"`
	BankID      *string          `json:"bank_id"`
}

// Update edits a transaction
// @Summary Editar transação
// @Tags transações
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID da transação"
// @Param request body UpdateTransactionRequest true "Campos a alterar"
// @Success 200 {object} models.Transaction
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/transactions/{id} [put]
func (h *TransactionHandler) Update(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	var req UpdateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Requisição inválida: "+err.Error())
		return
	}

	patch := database.TransactionPatch{
		Description: req.Description,
		Amount:      req.Amount,
		Type:        req.Type,
		CategoryID:  req.CategoryID,
		MemberID:    req.MemberID,
		BankID:      req.BankID,
	}
	if req.Date != nil {
		d, err := time.Parse("2006-01-02", strings.TrimSpace(*req.Date))
		if err != nil {
			BadRequest(c, "Data inválida, use AAAA-MM-DD")
			return
		}
		patch.Date = &d
	}

	t, err := h.store.UpdateTransaction(c.Request.Context(), userID, c.Param("id"), patch)
	if err != nil {
		Fail(c, err, "Falha ao atualizar transação")
		return
	}
	c.JSON(http.StatusOK, t)
}

// Delete removes one transaction
// @Summary Excluir transação
// @Tags transações
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID da transação"
// @Success 200 {object} MessageResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/transactions/{id} [delete]
func (h *TransactionHandler) Delete(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	if err := h.store.DeleteTransaction(c.Request.Context(), userID, c.Param("id")); err != nil {
		Fail(c, err, "Falha ao excluir transação")
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Transação excluída"})
}

// DeleteAll removes every transaction of the account
// @Summary Excluir todas as transações
// @Tags transações
// @Produce json
// @Security BearerAuth
// @Success 200 {object} CountResponse
// @Router /api/transactions/delete-all [delete]
func (h *TransactionHandler) DeleteAll(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	count, err := h.store.DeleteAllTransactions(c.Request.Context(), userID)
	if err != nil {
		Fail(c, err, "Falha ao excluir transações")
		return
	}
	c.JSON(http.StatusOK, CountResponse{
		Count:   count,
		Message: fmt.Sprintf("%d transações excluídas", count),
	})
}
