// Package export is the reporting sink: it turns already-computed ledger data
// into a tabular report and appends it to a document backend. It never
// participates in the financial core's correctness.
package export

import (
	"masroufi/internal/core"
)

// Row is one rendered report line. Columns are fixed:
// date, category name, note, signed formatted amount.
type Row struct {
	Date     string
	Category string
	Note     string
	Amount   string
}

// Header returns the report column titles.
func Header() []string {
	return []string{"Date", "Category", "Note", "Amount"}
}

// BuildReport renders every transaction into a report row, in the given
// order. A transaction whose category no longer exists falls back to the
// synthetic label rather than being dropped: the raw report is complete even
// when the breakdown view is not.
func BuildReport(transactions []core.Transaction, categories []core.Category) []Row {
	byID := make(map[string]core.Category, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}

	rows := make([]Row, 0, len(transactions))
	for _, t := range transactions {
		name := core.OtherCategoryName
		if cat, ok := byID[t.CategoryID]; ok {
			name = cat.Name
		}
		note := t.Note
		if note == "" {
			note = "-"
		}
		rows = append(rows, Row{
			Date:     t.Date.Format("02/01/2006"),
			Category: name,
			Note:     note,
			Amount:   core.SignedDH(t.Amount, t.Type),
		})
	}
	return rows
}
