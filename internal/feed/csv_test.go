package feed

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCSV_HeaderAndRows(t *testing.T) {
	in := strings.NewReader("article_number,name,width\nA1,Billy Bookcase,80 cm\nA2,Malm Dresser,\n")

	header, rows, err := parseCSV(in)
	require.NoError(t, err)
	assert.Equal(t, []string{"article_number", "name", "width"}, header)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"A1", "Billy Bookcase", "80 cm"}, rows[0])
	assert.Equal(t, []string{"A2", "Malm Dresser", ""}, rows[1])
}

func TestParseCSV_VariableFieldCounts(t *testing.T) {
	in := strings.NewReader("article_number,name\nA1,Billy,extra\nA2\n")

	_, rows, err := parseCSV(in)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Len(t, rows[0], 3)
	assert.Len(t, rows[1], 1)
}

func TestParseCSV_QuotedFields(t *testing.T) {
	in := strings.NewReader("article_number,name\nA1,\"Kallax Shelving Unit, 4 Cube\"\n")

	_, rows, err := parseCSV(in)
	require.NoError(t, err)
	assert.Equal(t, "Kallax Shelving Unit, 4 Cube", rows[0][1])
}

func TestParseCSV_Empty(t *testing.T) {
	_, _, err := parseCSV(strings.NewReader(""))
	assert.Error(t, err)
}

func TestReadCSV_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.csv")
	require.NoError(t, os.WriteFile(path, []byte("article_number,name\nA1,Billy\n"), 0o644))

	header, rows, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"article_number", "name"}, header)
	require.Len(t, rows, 1)
}

func TestReadCSV_MissingFile(t *testing.T) {
	_, _, err := ReadCSV(filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}
