package importer

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"time"
)

// canonical CSV fields
const (
	fieldDate        = "date"
	fieldDescription = "description"
	fieldAmount      = "amount"
	fieldType        = "type"
)

// CSVOptions the accepted CSV dialect. Empty fields fall back to
// DefaultCSVOptions.
type CSVOptions struct {
	// Delimiter "auto", "tab" or a single character.
	Delimiter string
	// DecimalSeparator auto, comma or dot.
	DecimalSeparator string
	DateFormats      []string
	// Columns canonical field → header aliases.
	Columns       map[string][]string
	DebitMarkers  []string
	CreditMarkers []string
}

// DefaultCSVOptions the dialect of the common Brazilian bank exports.
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{
		Delimiter:        "auto",
		DecimalSeparator: SeparatorAuto,
		DateFormats:      []string{"02/01/2006", "2006-01-02", "01/02/2006", "02-01-2006", "02/01/06", "2006/01/02"},
		Columns: map[string][]string{
			fieldDate:        {"data lançamento", "data", "data da transação", "data movimento", "date", "transaction date", "posted date"},
			fieldDescription: {"descrição", "histórico", "lançamento", "estabelecimento", "description", "memo", "payee"},
			fieldAmount:      {"valor", "valor (r$)", "valor r$", "quantia", "amount", "value"},
			fieldType:        {"tipo", "natureza", "d/c", "type"},
		},
		DebitMarkers:  []string{"d", "débito", "saída", "despesa", "debit", "dr"},
		CreditMarkers: []string{"c", "crédito", "entrada", "receita", "credit", "cr"},
	}
}

// CSVParser parses bank CSV exports with a header row.
type CSVParser struct {
	delimiter     string
	separator     string
	dateFormats   []string
	aliases       map[string]string
	directionByID map[string]string
}

// NewCSVParser builds the header alias table once for all files.
func NewCSVParser(opts CSVOptions) *CSVParser {
	def := DefaultCSVOptions()
	if opts.Delimiter == "" {
		opts.Delimiter = def.Delimiter
	}
	if opts.DecimalSeparator == "" {
		opts.DecimalSeparator = def.DecimalSeparator
	}
	if len(opts.DateFormats) == 0 {
		opts.DateFormats = def.DateFormats
	}
	if len(opts.Columns) == 0 {
		opts.Columns = def.Columns
	}
	if len(opts.DebitMarkers) == 0 {
		opts.DebitMarkers = def.DebitMarkers
	}
	if len(opts.CreditMarkers) == 0 {
		opts.CreditMarkers = def.CreditMarkers
	}

	p := &CSVParser{
		delimiter:     opts.Delimiter,
		separator:     opts.DecimalSeparator,
		dateFormats:   opts.DateFormats,
		aliases:       make(map[string]string),
		directionByID: make(map[string]string),
	}
	for field, aliases := range opts.Columns {
		field = strings.ToLower(field)
		for _, alias := range aliases {
			p.aliases[foldKey(alias)] = field
		}
	}
	for _, m := range opts.DebitMarkers {
		p.directionByID[foldKey(m)] = "despesa"
	}
	for _, m := range opts.CreditMarkers {
		p.directionByID[foldKey(m)] = "receita"
	}
	return p
}

func (p *CSVParser) Format() Format { return FormatCSV }

// Parse reads the header, maps it to canonical fields and converts each row.
// With the auto separator the decimal mark is settled once from all amounts.
// Rows that cannot be converted are reported and skipped.
func (p *CSVParser) Parse(r io.Reader) (*ParseResult, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, malformed("falha ao ler CSV: %v", err)
	}
	text, err := decodeText(raw)
	if err != nil {
		return nil, malformed("codificação não reconhecida: %v", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, malformed("arquivo CSV vazio")
	}

	cr := csv.NewReader(strings.NewReader(text))
	cr.Comma = p.comma(text)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, malformed("cabeçalho CSV ilegível: %v", err)
	}
	cols, err := p.mapHeader(header)
	if err != nil {
		return nil, err
	}

	type row struct {
		line int
		rec  []string
		err  *csv.ParseError
	}
	var rows []row
	var amounts []string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				rows = append(rows, row{line: pe.StartLine, err: pe})
				continue
			}
			return nil, malformed("falha ao ler CSV: %v", err)
		}
		line, _ := cr.FieldPos(0)
		if blankRecord(rec) {
			continue
		}
		rows = append(rows, row{line: line, rec: rec})
		if i := cols[fieldAmount]; i < len(rec) {
			amounts = append(amounts, rec[i])
		}
	}

	sep := p.separator
	if sep == SeparatorAuto {
		sep = ResolveSeparator(amounts)
	}

	result := &ParseResult{}
	for _, r := range rows {
		if r.err != nil {
			result.reject(r.line, "linha CSV malformada: %v", r.err.Err)
			continue
		}
		p.parseRecord(result, r.rec, cols, r.line, sep)
	}
	return result, nil
}

func (p *CSVParser) parseRecord(result *ParseResult, rec []string, cols map[string]int, line int, sep string) {
	get := func(field string) string {
		idx, ok := cols[field]
		if !ok || idx >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[idx])
	}

	dateRaw, desc, amountRaw := get(fieldDate), get(fieldDescription), get(fieldAmount)
	switch {
	case dateRaw == "":
		result.reject(line, "data ausente")
		return
	case desc == "":
		result.reject(line, "descrição ausente")
		return
	case amountRaw == "":
		result.reject(line, "valor ausente")
		return
	}

	date, ok := p.parseDate(dateRaw)
	if !ok {
		result.reject(line, "data inválida: %q", dateRaw)
		return
	}
	amount, err := ParseAmount(amountRaw, sep)
	if err != nil {
		result.reject(line, "%v", err)
		return
	}

	result.Drafts = append(result.Drafts, Draft{
		Line:        line,
		Date:        date,
		Description: desc,
		Amount:      amount,
		Type:        p.directionByID[foldKey(get(fieldType))],
	})
}

func (p *CSVParser) parseDate(s string) (time.Time, bool) {
	for _, layout := range p.dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// mapHeader resolves column positions once per file; the first column
// matching a field wins.
func (p *CSVParser) mapHeader(header []string) (map[string]int, error) {
	cols := make(map[string]int)
	for i, h := range header {
		field, ok := p.aliases[foldKey(h)]
		if !ok {
			continue
		}
		if _, seen := cols[field]; !seen {
			cols[field] = i
		}
	}

	var missing []string
	for _, field := range []string{fieldDate, fieldDescription, fieldAmount} {
		if _, ok := cols[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, malformed("colunas obrigatórias não encontradas no cabeçalho: %s", strings.Join(missing, ", "))
	}
	return cols, nil
}

// comma returns the configured delimiter or sniffs it from the header line.
func (p *CSVParser) comma(text string) rune {
	switch p.delimiter {
	case "auto", "":
	case "tab", `\t`:
		return '\t'
	default:
		return []rune(p.delimiter)[0]
	}

	header := text
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		header = text[:i]
	}
	best, bestCount := ';', strings.Count(header, ";")
	for _, c := range []rune{',', '\t'} {
		if n := strings.Count(header, string(c)); n > bestCount {
			best, bestCount = c, n
		}
	}
	return best
}

func blankRecord(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
