package reports

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"
)

// Header is the first CSV row.
var Header = []string{"kind", "question_id", "status", "author", "text", "votes", "pinned", "created_at"}

// WriteCSV writes one row per question, each followed by its replies.
func WriteCSV(w io.Writer, d *Data) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, q := range d.Questions {
		row := []string{
			"question",
			strconv.FormatInt(q.ID, 10),
			string(q.Status),
			cell(q.Author),
			cell(q.Text),
			strconv.Itoa(q.Votes),
			"",
			q.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
		for _, rp := range d.Replies[q.ID] {
			row := []string{
				"reply",
				strconv.FormatInt(q.ID, 10),
				"",
				cell(rp.Author),
				cell(rp.Text),
				"",
				strconv.FormatBool(rp.IsPinned),
				rp.CreatedAt.UTC().Format(time.RFC3339),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// cell quotes participant text that a spreadsheet would read as a formula.
func cell(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + s
	}
	return s
}
