package csvfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codmatch/backend/internal/domain"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestReadDelimited(t *testing.T) {
	store := NewStore()

	t.Run("reads semicolon file with BOM", func(t *testing.T) {
		content := "\xEF\xBB\xBFProduto;Código;Página\nKaiak Aventura;12345;10\n;;\nEkos Castanha;678;11\n"
		path := writeFile(t, "revista.csv", []byte(content))

		table, err := store.ReadDelimited(path, ';')
		require.NoError(t, err)

		assert.Equal(t, "revista", table.Name)
		assert.Equal(t, []string{"Produto", "Código", "Página"}, table.Header)
		require.Equal(t, 2, table.Len())
		assert.Equal(t, "12345", table.Value(0, "Código"))
		assert.Equal(t, "Ekos Castanha", table.Value(1, "Produto"))
	})

	t.Run("skips rows with too many fields", func(t *testing.T) {
		content := "Produto;Código\nA;1\nB;2;extra\nC;3\n"
		path := writeFile(t, "bad.csv", []byte(content))

		table, err := store.ReadDelimited(path, ';')
		require.NoError(t, err)
		require.Equal(t, 2, table.Len())
		assert.Equal(t, "C", table.Value(1, "Produto"))
	})

	t.Run("decodes Windows-1252", func(t *testing.T) {
		// "Código" and "Colônia" encoded as single bytes
		content := []byte("Produto;C\xF3digo\nCol\xF4nia;1\n")
		path := writeFile(t, "latin.csv", content)

		table, err := store.ReadDelimited(path, ';')
		require.NoError(t, err)
		assert.Equal(t, "Colônia", table.Value(0, "Produto"))
		assert.Equal(t, "Código", table.Header[1])
	})

	t.Run("empty file", func(t *testing.T) {
		path := writeFile(t, "empty.csv", nil)
		_, err := store.ReadDelimited(path, ';')
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := store.ReadDelimited(filepath.Join(t.TempDir(), "nope.csv"), ';')
		assert.Error(t, err)
	})
}

func TestWriteDelimited(t *testing.T) {
	store := NewStore()
	path := filepath.Join(t.TempDir(), "reports", "match.csv")

	table := domain.NewTable("report", []string{"Produto", "Score"})
	table.Rows = [][]string{{"Sabonete, Rosa", "100"}, {"Kaiak"}}

	require.NoError(t, store.WriteDelimited(path, table, ','))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Produto,Score\n\"Sabonete, Rosa\",100\nKaiak,\n", string(data))

	back, err := store.ReadDelimited(path, ',')
	require.NoError(t, err)
	assert.Equal(t, "Sabonete, Rosa", back.Value(0, "Produto"))
	assert.Equal(t, "", back.Value(1, "Score"))
}
