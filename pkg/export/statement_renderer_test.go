package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatementRendererRender(t *testing.T) {
	renderer := NewStatementRenderer()
	data := StatementData{
		Kind:       StatementAuthor,
		FirstName:  "Anna",
		LastName:   "Nowak",
		City:       "Rzeszow",
		Street:     "Main St.",
		Number:     "12",
		PaperTitle: "Adaptive Filtering",
		Magazine:   "Student Research Club Papers 2023/2024",
	}

	pdf, err := renderer.Render(data)
	require.NoError(t, err)
	require.NotEmpty(t, pdf)
	assert.Equal(t, "%PDF", string(pdf[:4]))
}

func TestStatementRendererMissingFields(t *testing.T) {
	renderer := NewStatementRenderer()

	pdf, err := renderer.Render(StatementData{Kind: StatementCoAuthor})
	require.NoError(t, err)
	require.NotEmpty(t, pdf)
}

func TestStatementFilename(t *testing.T) {
	assert.Equal(t, "statement_anna_nowak.pdf", StatementFilename("Anna", "Nowak"))
	assert.Equal(t, "statement_jan_kowalski_jr.pdf", StatementFilename("Jan", "Kowalski Jr"))
	assert.Equal(t, "statement_unnamed.pdf", StatementFilename("", ""))
}
