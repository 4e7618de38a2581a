package catalog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `Referans,2023 Liste Fiyatı,Para Birimi
50171,"1.000,00",TRY
60222,"100,00",EUR
70333,,TRY
80444,"2.500,50",
`

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestLoad(t *testing.T) {
	cat, err := Load(strings.NewReader(sampleCSV), Columns{})
	require.NoError(t, err)

	// The empty-price row is skipped.
	assert.Len(t, cat, 3)
	assert.True(t, cat["50171"].Amount.Equal(dec(t, "1000")))
	assert.Equal(t, "TRY", cat["50171"].Currency)
	assert.True(t, cat["60222"].Amount.Equal(dec(t, "100")))
	assert.Equal(t, "EUR", cat["60222"].Currency)
	assert.Equal(t, "", cat["80444"].Currency)
}

func TestLoad_MissingColumn(t *testing.T) {
	_, err := Load(strings.NewReader("a,b\n1,2\n"), Columns{})
	require.Error(t, err)
}

func TestResolve_Domestic(t *testing.T) {
	cat := Catalog{"50171": {Amount: dec(t, "1000"), Currency: "TRY"}}

	entry, ok := Resolver{}.Resolve("50171", cat, nil)
	require.True(t, ok)
	require.NotNil(t, entry.ListPrice)
	assert.True(t, entry.ListPrice.Equal(dec(t, "1000")))
	assert.Nil(t, entry.ForeignAmount)
	assert.Nil(t, entry.Rate)
}

func TestResolve_ForeignConverted(t *testing.T) {
	cat := Catalog{"60222": {Amount: dec(t, "100"), Currency: "EUR"}}
	rate := dec(t, "35.5")

	entry, ok := Resolver{Domestic: "TRY"}.Resolve("60222", cat, &rate)
	require.True(t, ok)
	require.NotNil(t, entry.ListPrice)
	assert.Equal(t, "3550.00", entry.ListPrice.StringFixed(2))
	require.NotNil(t, entry.ForeignAmount)
	assert.True(t, entry.ForeignAmount.Equal(dec(t, "100")))
	require.NotNil(t, entry.Rate)
	assert.True(t, entry.Rate.Equal(rate))
}

func TestResolve_ForeignWithoutRate(t *testing.T) {
	cat := Catalog{"60222": {Amount: dec(t, "100"), Currency: "EUR"}}

	entry, ok := Resolver{}.Resolve("60222", cat, nil)
	require.True(t, ok)
	// Never silently treat the foreign amount as domestic.
	assert.Nil(t, entry.ListPrice)
	require.NotNil(t, entry.ForeignAmount)
	assert.True(t, entry.ForeignAmount.Equal(dec(t, "100")))
}

func TestResolve_NotFound(t *testing.T) {
	entry, ok := Resolver{}.Resolve("nope", Catalog{}, nil)
	assert.False(t, ok)
	assert.Nil(t, entry)
}

func TestStore_TTLReuse(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prices.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))

	s := &Store{Path: path, TTL: time.Minute}
	first, err := s.Get(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 3)

	// Replace the file; the cached copy must still be served inside the TTL.
	require.NoError(t, os.WriteFile(path, []byte("Referans,2023 Liste Fiyatı,Para Birimi\n"), 0o644))
	second, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.Len(t, second, 3)
}

func TestStore_NoTTLReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prices.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))

	s := &Store{Path: path}
	_, err := s.Get(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("Referans,2023 Liste Fiyatı,Para Birimi\n"), 0o644))
	reloaded, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.Len(t, reloaded, 0)
}
