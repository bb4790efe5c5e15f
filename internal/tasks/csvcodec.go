package tasks

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"
)

const csvDateLayout = "2006-01-02"

var exportHeader = []string{
	"title", "dueDate", "category", "className", "notes", "link",
	"completed", "timeSpentSeconds", "timeSpentMinutes", "timeSpentHMS",
}

// WriteCSV renders tasks as the export CSV, sorted by due date then title.
func WriteCSV(w io.Writer, ts []Task) error {
	sorted := make([]Task, len(ts))
	copy(sorted, ts)
	sort.Slice(sorted, func(i, j int) bool {
		di, dj := csvDate(sorted[i].DueDate), csvDate(sorted[j].DueDate)
		if di != dj {
			return di < dj
		}
		return sorted[i].Title < sorted[j].Title
	})

	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}

	for _, t := range sorted {
		secs := t.TimeSpentSeconds
		record := []string{
			t.Title,
			csvDate(t.DueDate),
			t.Category,
			t.ClassName,
			t.Notes,
			t.Link,
			strconv.FormatBool(t.Completed),
			strconv.FormatInt(secs, 10),
			strconv.FormatInt((secs+30)/60, 10),
			formatHMS(secs),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func csvDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(csvDateLayout)
}

func formatHMS(secs int64) string {
	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}

// RowError reports a single rejected import row. Row numbers are
// 1-based counting the header, so the first data row is 2.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ReadCSV parses the import CSV (headers: title, dueDate, category,
// className, notes, link). Title and a YYYY-MM-DD due date are required
// per row; invalid rows are reported, valid rows are returned with the
// same defaults the interactive create uses.
func ReadCSV(r io.Reader) ([]Task, []RowError, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read csv header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	if _, ok := col["title"]; !ok {
		return nil, nil, fmt.Errorf("csv missing required column: title")
	}

	field := func(record []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var (
		out     []Task
		rowErrs []RowError
	)

	for row := 2; ; row++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			rowErrs = append(rowErrs, RowError{
				Row:     row,
				Message: fmt.Sprintf("CSV parse error: %v", err),
			})
			continue
		}

		title := field(record, "title")
		if title == "" {
			rowErrs = append(rowErrs, RowError{Row: row, Message: "Missing title"})
			continue
		}

		due, err := time.ParseInLocation(csvDateLayout, field(record, "dueDate"), time.Local)
		if err != nil {
			rowErrs = append(rowErrs, RowError{
				Row:     row,
				Message: "Invalid or missing dueDate (expected YYYY-MM-DD)",
			})
			continue
		}

		category := NormalizeCategory(field(record, "category"))
		className := field(record, "className")
		if category != CategorySchool {
			className = ""
		}

		out = append(out, Task{
			Title:     title,
			Category:  category,
			ClassName: className,
			Notes:     field(record, "notes"),
			Link:      field(record, "link"),
			DueDate:   &due,
		})
	}

	return out, rowErrs, nil
}
