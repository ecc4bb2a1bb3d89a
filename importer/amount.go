package importer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Decimal separator modes
const (
	SeparatorAuto  = "auto"
	SeparatorComma = "comma"
	SeparatorDot   = "dot"
)

var currencyStripper = strings.NewReplacer("R$", "", "US$", "", "$", "", " ", "", "\u00a0", "")

// ParseAmount parses a bank-formatted amount such as "R$ -1.234,56",
// "(12.50)" or "89,90-". sep is auto, comma or dot.
func ParseAmount(raw, sep string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = currencyStripper.Replace(s)

	switch {
	case strings.HasPrefix(s, "-"):
		negative = !negative
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	case strings.HasSuffix(s, "-"):
		negative = !negative
		s = s[:len(s)-1]
	}
	if s == "" {
		return decimal.Zero, errors.New("valor vazio")
	}

	var normalized string
	switch sep {
	case SeparatorComma:
		normalized = strings.ReplaceAll(strings.ReplaceAll(s, ".", ""), ",", ".")
	case SeparatorDot:
		normalized = strings.ReplaceAll(s, ",", "")
	default:
		normalized = normalizeSeparators(s)
	}
	normalized = strings.TrimSuffix(normalized, ".")

	for _, r := range normalized {
		if (r < '0' || r > '9') && r != '.' {
			return decimal.Zero, fmt.Errorf("valor inválido: %q", raw)
		}
	}
	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Zero, fmt.Errorf("valor inválido: %q", raw)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// normalizeSeparators guesses the decimal mark of a single value. With both
// marks present the last one is decimal. A lone mark followed by exactly three
// digits is a thousands separator (1.234, 12,345) unless the integer part is
// empty, zero or longer than a thousands group allows (0,125 and 1234,567 are
// decimals).
func normalizeSeparators(s string) string {
	switch markOf(s) {
	case SeparatorComma:
		return strings.ReplaceAll(strings.ReplaceAll(s, ".", ""), ",", ".")
	case SeparatorDot:
		return strings.ReplaceAll(s, ",", "")
	}
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastComma >= 0:
		return strings.ReplaceAll(s, ",", "")
	case lastDot >= 0:
		return strings.ReplaceAll(s, ".", "")
	}
	return s
}

// markOf reports the decimal mark a value proves, or "" when the value is
// ambiguous (no mark, or a lone thousands-looking group such as 1.234).
func markOf(s string) string {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			return SeparatorComma
		}
		return SeparatorDot
	case lastComma >= 0:
		return loneMark(s, ",", lastComma, SeparatorComma, SeparatorDot)
	case lastDot >= 0:
		return loneMark(s, ".", lastDot, SeparatorDot, SeparatorComma)
	}
	return ""
}

func loneMark(s, mark string, last int, asDecimal, asThousands string) string {
	if strings.Count(s, mark) > 1 {
		return asThousands
	}
	intPart := strings.TrimLeft(s[:last], "-+")
	if len(s)-last-1 != 3 || intPart == "" || intPart == "0" || len(intPart) > 3 {
		return asDecimal
	}
	return ""
}

// ResolveSeparator settles the decimal mark once for a whole file from its
// amount cells. The mark proven by most values wins (comma on a tie); auto is
// returned when no value is conclusive.
func ResolveSeparator(amounts []string) string {
	var comma, dot int
	for _, raw := range amounts {
		s := strings.Trim(currencyStripper.Replace(strings.TrimSpace(raw)), "()+-")
		switch markOf(s) {
		case SeparatorComma:
			comma++
		case SeparatorDot:
			dot++
		}
	}
	switch {
	case comma == 0 && dot == 0:
		return SeparatorAuto
	case dot > comma:
		return SeparatorDot
	default:
		return SeparatorComma
	}
}
