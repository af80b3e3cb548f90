package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// StatementKind distinguishes the author declaration from the co-author one.
type StatementKind string

const (
	StatementAuthor   StatementKind = "AUTHOR"
	StatementCoAuthor StatementKind = "CO_AUTHOR"
)

// StatementData is the typed context rendered into a declaration document.
// Empty fields render as blanks, never as an error.
type StatementData struct {
	Kind       StatementKind
	FirstName  string
	LastName   string
	City       string
	Street     string
	Number     string
	PaperTitle string
	Magazine   string
}

// StatementRenderer produces declaration PDFs for paper submitters.
type StatementRenderer struct{}

// NewStatementRenderer constructs a statement renderer.
func NewStatementRenderer() *StatementRenderer {
	return &StatementRenderer{}
}

// Render creates an A4 declaration document for the given person and paper.
func (r *StatementRenderer) Render(data StatementData) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 25, 20)
	pdf.AddPage()

	title := "AUTHOR'S DECLARATION"
	if data.Kind == StatementCoAuthor {
		title = "CO-AUTHOR'S DECLARATION"
	}
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, title, "", 1, "C", false, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 11)
	writeField(pdf, "Name", strings.TrimSpace(data.FirstName+" "+data.LastName))
	if data.Kind == StatementAuthor {
		writeField(pdf, "City", data.City)
		writeField(pdf, "Address", strings.TrimSpace(data.Street+" "+data.Number))
	}
	pdf.Ln(6)

	body := fmt.Sprintf(
		"I hereby declare that I am the %s of the paper entitled \"%s\" and I consent to its publication in %s. "+
			"I confirm that the paper is my own work and does not infringe upon the rights of third parties.",
		roleLabel(data.Kind), data.PaperTitle, data.Magazine)
	pdf.MultiCell(0, 6, body, "", "J", false)
	pdf.Ln(20)

	pdf.SetFont("Arial", "I", 10)
	pdf.CellFormat(0, 6, "date and signature", "T", 1, "R", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render statement: %w", err)
	}
	return buf.Bytes(), nil
}

// StatementFilename derives the stored filename from the person's name.
func StatementFilename(firstName, lastName string) string {
	name := sanitizeName(firstName + "_" + lastName)
	if name == "" {
		name = "unnamed"
	}
	return fmt.Sprintf("statement_%s.pdf", name)
}

func writeField(pdf *gofpdf.Fpdf, label, value string) {
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(30, 7, label+":", "", 0, "", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 7, value, "", 1, "", false, 0, "")
}

func roleLabel(kind StatementKind) string {
	if kind == StatementCoAuthor {
		return "co-author"
	}
	return "author"
}

func sanitizeName(raw string) string {
	raw = strings.ToLower(raw)
	var b strings.Builder
	for _, r := range raw {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "_")
}
