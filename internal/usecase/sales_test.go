package usecase

import (
	"context"
	"testing"

	"github.com/codmatch/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanObservation(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty stays empty", "", ""},
		{"slash becomes pipe", "pago/entregue", "PAGO|ENTREGUE"},
		{"backslash becomes pipe", `pago\entregue`, "PAGO|ENTREGUE"},
		{"spaces around separators", "pago / entregue | ok", "PAGO|ENTREGUE|OK"},
		{"repeated separators collapse", "a//b||c / / d", "A|B|C|D"},
		{"trimmed", "  parcelado  ", "PARCELADO"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanObservation(tt.input))
		})
	}
}

func TestDescriptiveSKU(t *testing.T) {
	tests := []struct {
		name                               string
		collection, category, nome, volume string
		want                               string
	}{
		{"full row", "Ekos", "Hidratante Corporal", "Castanha polpa", "400 ml", "EKO-HIDRAT-CAST-400ML"},
		{"accents kept", "Tododia", "Sabonete", "Algodão", "5 x 90 g", "TOD-SABONE-ALGO-5X90G"},
		{"short parts", "Un", "Kit", "Ó", "", "UN-KIT-Ó-"},
		{"all empty", "", "", "", "", "---"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DescriptiveSKU(tt.collection, tt.category, tt.nome, tt.volume))
		})
	}
}

func TestSerial(t *testing.T) {
	assert.Equal(t, "NAT-00001", Serial("NAT-", 1))
	assert.Equal(t, "NAT-12345", Serial("NAT-", 12345))
	assert.Equal(t, "X123456", Serial("X", 123456))
}

func TestSalesTidier_Run(t *testing.T) {
	workbooks := NewMockWorkbooks()
	workbooks.Put("dados/natura.xlsx",
		newTable("Vendas", []string{"Data", "Produto", "Coleção", "Categoria", "Nome", "Volume", "Observações"},
			[]string{"01/03/2025", "Ekos Castanha", "Ekos", "Hidratante", "Castanha", "400 ml", "pago / entregue"},
			[]string{"02/03/2025", "", "Ekos", "", "", "", "sem produto"},
			[]string{"03/03/2025", "Kaiak", "Kaiak", "Perfumaria", "Kaiak Aventura", "100 ml", ""},
		),
	)
	recorder := &MockRecorder{}

	tidier := NewSalesTidier(workbooks, recorder, SalesConfig{
		Path:       "dados/natura.xlsx",
		Sheet:      "Vendas",
		OutputPath: "dados/natura_FINAL.xlsx",
	})

	result, err := tidier.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, &SalesResult{Rows: 2, Dropped: 1, OutputPath: "dados/natura_FINAL.xlsx"}, result)

	out := workbooks.Sheet("dados/natura_FINAL.xlsx", "Vendas")
	require.NotNil(t, out)
	assert.Equal(t, []string{SalesSerialColumn, SalesSKUColumn, "Data", "Produto"}, out.Header[:4])
	assert.Equal(t, []string{"NAT-00001", "EKO-HIDRAT-CAST-400ML", "01/03/2025", "Ekos Castanha"}, out.Rows[0][:4])
	assert.Equal(t, "PAGO|ENTREGUE", out.Value(0, "Observações"))
	assert.Equal(t, "NAT-00002", out.Value(1, SalesSerialColumn))
	assert.Equal(t, "KAI-PERFUM-KAIA-100ML", out.Value(1, SalesSKUColumn))
	assert.Equal(t, "", out.Value(1, "Observações"))

	require.Len(t, recorder.finished, 1)
	assert.Equal(t, 3, recorder.finished[0].Records)
}

func TestSalesTidier_Errors(t *testing.T) {
	workbooks := NewMockWorkbooks()
	workbooks.Put("dados/natura.xlsx", newTable("Vendas", []string{"Data", "Produto"}))

	t.Run("missing observations column", func(t *testing.T) {
		_, err := NewSalesTidier(workbooks, nil, SalesConfig{Path: "dados/natura.xlsx", OutputPath: "dados/out.xlsx"}).Run(context.Background())
		assert.ErrorIs(t, err, domain.ErrColumnNotFound)
	})

	t.Run("output over input", func(t *testing.T) {
		_, err := NewSalesTidier(workbooks, nil, SalesConfig{Path: "dados/natura.xlsx", OutputPath: "dados/natura.xlsx"}).Run(context.Background())
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	})
}
