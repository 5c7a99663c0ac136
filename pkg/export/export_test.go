package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statementDataset() Dataset {
	return Dataset{
		Headers: []string{"Descrição", "Valor", "Status"},
		Rows: []map[string]string{
			{"Descrição": "Mensalidade 01/2025", "Valor": "500.00", "Status": "paid"},
			{"Descrição": "Parcela 1/2 Matrícula", "Valor": "150.00", "Status": "pending"},
		},
		Totals: map[string]string{"Descrição": "Total", "Valor": "650.00"},
	}
}

func TestCSVExporterRendersRowsAndTotals(t *testing.T) {
	out, err := NewCSVExporter().Render(statementDataset())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Descrição;Valor;Status", lines[0])
	assert.Equal(t, "Mensalidade 01/2025;500.00;paid", lines[1])
	assert.Equal(t, "Total;650.00;", lines[3])
}

func TestCSVExporterRequiresHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterRenders(t *testing.T) {
	out, err := NewPDFExporter().Render(statementDataset(), "Extrato financeiro")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}
