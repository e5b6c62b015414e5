package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/jandrishti/jandrishti-backend/internal/models"
)

type column struct {
	header string
	width  float64
	value  func(models.IssueDetails) string
}

var issueColumns = []column{
	{"Issue ID", 38, func(d models.IssueDetails) string { return d.IssueCode }},
	{"Title", 62, func(d models.IssueDetails) string { return d.Title }},
	{"Location", 55, func(d models.IssueDetails) string { return d.Location }},
	{"Status", 24, func(d models.IssueDetails) string { return string(d.Status) }},
	{"Reporter", 50, func(d models.IssueDetails) string { return deref(d.FullName) }},
	{"Reported", 48, func(d models.IssueDetails) string { return d.CreatedAt.UTC().Format("2006-01-02 15:04 UTC") }},
}

// IssuesPDF формирует таблицу обращений для админки.
func IssuesPDF(issues []models.IssueDetails, filter models.IssueFilter, generatedAt time.Time) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(true, 12)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	header := func() {
		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(230, 230, 230)
		for _, col := range issueColumns {
			pdf.CellFormat(col.width, 8, col.header, "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 8)
	}
	pdf.SetHeaderFunc(func() {
		if pdf.PageNo() > 1 {
			header()
		}
	})
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, "JanDrishti issues report", "", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	pdf.CellFormat(0, 6, tr(describeFilter(filter, len(issues), generatedAt)), "", 1, "L", false, 0, "")
	pdf.Ln(3)

	header()
	for _, issue := range issues {
		for _, col := range issueColumns {
			pdf.CellFormat(col.width, 7, tr(fit(pdf, col.value(issue), col.width-2)), "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("export: render pdf %w", err)
	}
	return buf.Bytes(), nil
}

func describeFilter(filter models.IssueFilter, count int, at time.Time) string {
	status := "all statuses"
	if filter.Status != "" {
		status = "status " + string(filter.Status)
	}
	line := fmt.Sprintf("%d issues, %s", count, status)
	if filter.Search != "" {
		line += fmt.Sprintf(", search %q", filter.Search)
	}
	return line + ", generated " + at.UTC().Format("2006-01-02 15:04 UTC")
}

// fit обрезает текст под ширину ячейки.
func fit(pdf *gofpdf.Fpdf, s string, width float64) string {
	if pdf.GetStringWidth(s) <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && pdf.GetStringWidth(string(runes)+"...") > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
