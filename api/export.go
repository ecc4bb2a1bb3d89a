package api

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"strings"
	"time"

	"finamily/database"
	"finamily/middleware"
	"finamily/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// ExportHandler transaction export
type ExportHandler struct {
	store *database.Store
}

// NewExportHandler creates the handler.
func NewExportHandler(store *database.Store) *ExportHandler {
	return &ExportHandler{store: store}
}

var exportHeaders = []string{"Data", "Descrição", "Valor", "Tipo", "Categoria"}

// exportRow one transaction as written to a file. Value is signed so the
// CSV can be imported again.
type exportRow struct {
	Date        time.Time
	Description string
	Value       decimal.Decimal
	Type        string
	Category    string
}

// Export downloads transactions as CSV or XLSX
// @Summary Exportar transações
// @Description Exporta as transações filtradas. O CSV usa o mesmo formato aceito pela importação.
// @Tags transações
// @Produce text/csv
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param format query string false "csv ou xlsx" default(csv)
// @Param month query int false "Mês (1-12)"
// @Param year query int false "Ano"
// @Success 200 {file} file
// @Failure 400 {object} ErrorResponse
// @Router /api/transactions/export [get]
func (h *ExportHandler) Export(c *gin.Context) {
	userID := middleware.GetCurrentUserID(c)

	format := strings.ToLower(c.DefaultQuery("format", "csv"))
	if format != "csv" && format != "xlsx" {
		BadRequest(c, "Formato de exportação deve ser csv ou xlsx")
		return
	}
	filter, err := parseFilter(c)
	if err != nil {
		BadRequest(c, err.Error())
		return
	}

	rows, err := h.loadRows(c, userID, filter)
	if err != nil {
		Fail(c, err, "Falha ao consultar transações")
		return
	}

	name := exportName(filter)
	if format == "xlsx" {
		data, err := buildXLSX(rows)
		if err != nil {
			InternalError(c, SafeErrorMessage(err, "Falha ao gerar planilha"))
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.xlsx", name))
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
		return
	}

	data, err := buildCSV(rows)
	if err != nil {
		InternalError(c, SafeErrorMessage(err, "Falha ao gerar CSV"))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s.csv", name))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
}

func (h *ExportHandler) loadRows(c *gin.Context, userID string, filter database.TransactionFilter) ([]exportRow, error) {
	ctx := c.Request.Context()
	txns, err := h.store.ListTransactions(ctx, userID, filter)
	if err != nil {
		return nil, err
	}
	cats, err := h.store.Categories(ctx, userID)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(cats))
	for _, cat := range cats {
		names[cat.ID] = cat.Name
	}

	rows := make([]exportRow, 0, len(txns))
	for _, t := range txns {
		value := t.Amount
		if t.Type == models.TransactionTypeExpense {
			value = value.Neg()
		}
		row := exportRow{Date: t.Date, Description: t.Description, Value: value, Type: t.Type}
		if t.CategoryID != nil {
			row.Category = names[*t.CategoryID]
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func exportName(f database.TransactionFilter) string {
	switch {
	case f.Month > 0 && f.Year > 0:
		return fmt.Sprintf("transacoes_%04d-%02d", f.Year, f.Month)
	case f.Year > 0:
		return fmt.Sprintf("transacoes_%04d", f.Year)
	}
	return "transacoes"
}

func buildCSV(rows []exportRow) ([]byte, error) {
	buf := new(bytes.Buffer)
	// BOM so spreadsheet apps detect UTF-8
	buf.WriteString("\xEF\xBB\xBF")

	w := csv.NewWriter(buf)
	w.Comma = ';'
	if err := w.Write(exportHeaders); err != nil {
		return nil, err
	}
	for _, r := range rows {
		value := strings.Replace(r.Value.StringFixed(2), ".", ",", 1)
		if err := w.Write([]string{r.Date.Format("02/01/2006"), r.Description, value, r.Type, r.Category}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func buildXLSX(rows []exportRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Transações"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 12, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4F81BD"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, err
	}
	moneyFormat := "#,##0.00"
	moneyStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &moneyFormat})
	if err != nil {
		return nil, err
	}

	f.SetColWidth(sheet, "A", "A", 12)
	f.SetColWidth(sheet, "B", "B", 40)
	f.SetColWidth(sheet, "C", "C", 14)
	f.SetColWidth(sheet, "D", "E", 18)

	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, headerStyle)
	}

	total := decimal.Zero
	for i, r := range rows {
		n := i + 2
		f.SetCellValue(sheet, fmt.Sprintf("A%d", n), r.Date.Format("02/01/2006"))
		f.SetCellValue(sheet, fmt.Sprintf("B%d", n), r.Description)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", n), r.Value.InexactFloat64())
		f.SetCellStyle(sheet, fmt.Sprintf("C%d", n), fmt.Sprintf("C%d", n), moneyStyle)
		f.SetCellValue(sheet, fmt.Sprintf("D%d", n), r.Type)
		f.SetCellValue(sheet, fmt.Sprintf("E%d", n), r.Category)
		total = total.Add(r.Value)
	}

	totalRow := len(rows) + 2
	f.SetCellValue(sheet, fmt.Sprintf("B%d", totalRow), "Saldo")
	f.SetCellValue(sheet, fmt.Sprintf("C%d", totalRow), total.Round(2).InexactFloat64())
	f.SetCellStyle(sheet, fmt.Sprintf("B%d", totalRow), fmt.Sprintf("B%d", totalRow), headerStyle)
	f.SetCellStyle(sheet, fmt.Sprintf("C%d", totalRow), fmt.Sprintf("C%d", totalRow), moneyStyle)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
