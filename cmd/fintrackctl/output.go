package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type pageOut struct {
	Records      any  `json:"records"`
	TotalRecords int  `json:"total_records"`
	TotalPages   int  `json:"total_pages"`
	Page         *int `json:"page"`
}

func pageJSON(res core.PageResult[any]) pageOut {
	return pageOut{Records: res.Records, TotalRecords: res.TotalRecords, TotalPages: res.TotalPages, Page: res.Page}
}

type rowOut struct {
	ID              int64  `json:"id"`
	Date            string `json:"date"`
	UserName        string `json:"user_name"`
	CategoryName    string `json:"category_name"`
	SubcategoryName string `json:"subcategory_name"`
	Amount          string `json:"amount"`
	Comment         string `json:"comment,omitempty"`
}

type summaryOut struct {
	Income  string `json:"income"`
	Expense string `json:"expense"`
	Balance string `json:"balance"`
	Count   int    `json:"count"`
}

func reportJSON(res core.PageResult[core.TransactionView], s core.ReportSummary) any {
	rows := make([]rowOut, len(res.Records))
	for i, v := range res.Records {
		rows[i] = rowOut{
			ID:              v.ID,
			Date:            core.FormatTimestamp(v.Date),
			UserName:        v.UserName,
			CategoryName:    v.CategoryName,
			SubcategoryName: v.SubcategoryName,
			Amount:          v.Amount.StringFixed(2),
			Comment:         v.Comment,
		}
	}
	return struct {
		pageOut
		Summary summaryOut `json:"summary"`
	}{
		pageOut: pageOut{Records: rows, TotalRecords: res.TotalRecords, TotalPages: res.TotalPages, Page: res.Page},
		Summary: summaryOut{
			Income:  s.Income.StringFixed(2),
			Expense: s.Expense.StringFixed(2),
			Balance: s.Balance().StringFixed(2),
			Count:   s.Count,
		},
	}
}

// printRecords renders entity records as a table. Columns come from the
// records' JSON form, id first.
func printRecords(w io.Writer, records []any) error {
	if len(records) == 0 {
		fmt.Fprintln(w, "No records")
		return nil
	}

	rows := make([]map[string]any, len(records))
	seen := map[string]bool{}
	var columns []string
	for i, rec := range records {
		raw, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&rows[i]); err != nil {
			return err
		}
		for k := range rows[i] {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}
	sort.Slice(columns, func(i, j int) bool {
		if columns[i] == "id" || columns[j] == "id" {
			return columns[i] == "id"
		}
		return columns[i] < columns[j]
	})

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := make([]string, len(columns))
	for i, c := range columns {
		header[i] = strings.ToUpper(c)
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, row := range rows {
		cells := make([]string, len(columns))
		for i, c := range columns {
			if v, ok := row[c]; ok && v != nil {
				cells[i] = fmt.Sprint(v)
			}
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

func printTransactions(w io.Writer, rows []core.TransactionView) error {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No transactions")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tUSER\tCATEGORY\tSUBCATEGORY\tAMOUNT\tCOMMENT")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, core.FormatTimestamp(r.Date), r.UserName, r.CategoryName, r.SubcategoryName, r.Amount.StringFixed(2), r.Comment)
	}
	return tw.Flush()
}

func printFooter(w io.Writer, total, pages int, page *int) {
	if page == nil {
		fmt.Fprintf(w, "\n%d records\n", total)
		return
	}
	fmt.Fprintf(w, "\npage %d of %d (%d records)\n", *page, pages, total)
}

func printSummary(w io.Writer, s core.ReportSummary) {
	fmt.Fprintf(w, "income %s  expense %s  balance %s\n",
		s.Income.StringFixed(2), s.Expense.StringFixed(2), s.Balance().StringFixed(2))
}

func printEvent(w io.Writer, m *amqp.TransactionCreatedMessage) {
	fmt.Fprintf(w, "%s  #%d  user=%d  category=%d/%d  amount=%s",
		m.Date, m.ID, m.UserTelegramID, m.CategoryID, m.SubcategoryID, m.Amount)
	if m.Comment != "" {
		fmt.Fprintf(w, "  %q", m.Comment)
	}
	fmt.Fprintln(w)
}
