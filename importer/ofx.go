package importer

import (
	"io"
	"regexp"
	"strings"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"
)

var (
	severityFix = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)`)
	openTagFix  = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])[ \t\r]*$`)
)

// OFXParser parses OFX 1.x (SGML) and 2.x (XML) bank and credit card
// statements.
type OFXParser struct{}

// NewOFXParser creates an OFX parser.
func NewOFXParser() *OFXParser {
	return &OFXParser{}
}

func (p *OFXParser) Format() Format { return FormatOFX }

// Parse reads every transaction of every statement in file order. Line in
// row errors is the 1-based transaction position.
func (p *OFXParser) Parse(r io.Reader) (*ParseResult, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, malformed("falha ao ler OFX: %v", err)
	}
	content := preprocessOFX(string(raw))
	if content == "" {
		return nil, malformed("arquivo OFX vazio")
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(content))
	if err != nil {
		return nil, malformed("OFX ilegível: %v", err)
	}

	var txs []ofxgo.Transaction
	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok && stmt.BankTranList != nil {
			txs = append(txs, stmt.BankTranList.Transactions...)
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok && stmt.BankTranList != nil {
			txs = append(txs, stmt.BankTranList.Transactions...)
		}
	}

	result := &ParseResult{}
	for i, tx := range txs {
		line := i + 1
		desc := ofxDescription(tx)
		if desc == "" {
			result.reject(line, "descrição ausente")
			continue
		}
		if tx.DtPosted.IsZero() {
			result.reject(line, "data ausente")
			continue
		}
		amount, err := decimal.NewFromString(tx.TrnAmt.FloatString(6))
		if err != nil {
			result.reject(line, "valor inválido: %v", err)
			continue
		}
		result.Drafts = append(result.Drafts, Draft{
			Line:        line,
			Date:        tx.DtPosted.Time,
			Description: desc,
			Amount:      amount,
		})
	}
	return result, nil
}

// ofxDescription prefers MEMO, then NAME, then the payee name.
func ofxDescription(tx ofxgo.Transaction) string {
	if memo := strings.TrimSpace(string(tx.Memo)); memo != "" {
		return memo
	}
	if name := strings.TrimSpace(string(tx.Name)); name != "" {
		return name
	}
	if tx.Payee != nil {
		return strings.TrimSpace(string(tx.Payee.Name))
	}
	return ""
}

// preprocessOFX fixes the SGML quirks banks ship that ofxgo rejects.
func preprocessOFX(content string) string {
	content = strings.TrimPrefix(content, "\ufeff")
	content = strings.TrimLeft(content, " \t\r\n")
	content = severityFix.ReplaceAllStringFunc(content, strings.ToUpper)
	return openTagFix.ReplaceAllString(content, "$1>")
}
