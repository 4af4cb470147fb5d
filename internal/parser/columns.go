package parser

import (
	"regexp"
	"strings"
)

// Canonical fields a statement column can map onto.
const (
	FieldDate        = "date"
	FieldAmount      = "amount"
	FieldDebit       = "debit"
	FieldCredit      = "credit"
	FieldDescription = "description"
)

// Hints supplies extra header aliases per canonical field. They are tried
// before the built-in aliases.
type Hints map[string][]string

// builtinAliases lists known header spellings in priority order.
var builtinAliases = map[string][]string{
	FieldDate: {
		"transaction date", "date", "trans date", "txn date", "booking date",
		"posted date", "posting date", "post date", "value date", "date posted",
	},
	FieldAmount: {
		"amount", "transaction amount", "amt", "value", "net amount",
	},
	FieldDebit: {
		"debit", "debit amount", "debits", "withdrawal", "withdrawals",
		"money out", "paid out", "outflow",
	},
	FieldCredit: {
		"credit", "credit amount", "credits", "deposit", "deposits",
		"money in", "paid in", "inflow",
	},
	FieldDescription: {
		"description", "transaction description", "memo", "details",
		"narrative", "payee", "merchant", "name", "reference", "particulars",
	},
}

var (
	parenthetical = regexp.MustCompile(`\([^)]*\)`)
	separators    = strings.NewReplacer("_", " ", "-", " ", ".", " ", ":", " ", "\ufeff", "")
)

// Columns is the resolved header mapping of a file; -1 marks an absent column.
type Columns struct {
	Date        int
	Amount      int
	Debit       int
	Credit      int
	Description int
}

func normalizeHeader(s string) string {
	s = strings.ToLower(s)
	s = parenthetical.ReplaceAllString(s, " ")
	s = separators.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// aliasTable merges hints in front of the built-in aliases.
func aliasTable(h Hints) map[string][]string {
	out := make(map[string][]string, len(builtinAliases))
	for field, aliases := range builtinAliases {
		merged := make([]string, 0, len(h[field])+len(aliases))
		for _, a := range h[field] {
			merged = append(merged, normalizeHeader(a))
		}
		out[field] = append(merged, aliases...)
	}
	return out
}

// resolveColumns maps a candidate header record onto canonical fields. It
// reports false unless a date column and some amount source were found.
func resolveColumns(header []string, aliases map[string][]string) (Columns, bool) {
	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = normalizeHeader(h)
	}
	taken := make(map[int]bool)
	find := func(field string) int {
		for _, alias := range aliases[field] {
			for i, h := range normalized {
				if !taken[i] && h != "" && h == alias {
					taken[i] = true
					return i
				}
			}
		}
		return -1
	}

	cols := Columns{
		Date:        find(FieldDate),
		Amount:      find(FieldAmount),
		Debit:       find(FieldDebit),
		Credit:      find(FieldCredit),
		Description: find(FieldDescription),
	}

	ok := cols.Date >= 0 && (cols.Amount >= 0 || cols.Debit >= 0 || cols.Credit >= 0)
	return cols, ok
}
