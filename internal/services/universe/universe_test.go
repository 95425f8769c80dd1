package universe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketSweep/internal/domain/models"
)

type listStub struct {
	symbols []string
	err     error
}

func (s listStub) FetchBatch(context.Context, []string, models.DateRange) (map[string][]models.Bar, error) {
	return nil, nil
}
func (s listStub) ListSymbols(context.Context) ([]string, error) { return s.symbols, s.err }
func (s listStub) Health(context.Context) error                  { return nil }

func TestResolveExplicitList(t *testing.T) {
	p := New([]string{"SPY"}, "", listStub{})
	got, err := p.Resolve(context.Background(), []string{" aapl", "MSFT", "aapl", ""})
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, got)
}

func TestResolveAllFallsBackToConfigured(t *testing.T) {
	p := New([]string{"qqq", "spy"}, "", listStub{})
	for _, req := range [][]string{nil, {}, {"ALL"}, {"all"}} {
		got, err := p.Resolve(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, []string{"QQQ", "SPY"}, got)
	}
}

func TestResolveFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "universe.txt")
	require.NoError(t, os.WriteFile(path, []byte("# sampled large caps\naapl\n\nmsft\nAAPL\n"), 0o644))

	p := New(nil, path, listStub{})
	got, err := p.Resolve(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAPL", "MSFT"}, got)
}

func TestResolveFromUpstream(t *testing.T) {
	p := New(nil, "", listStub{symbols: []string{"nvda", "amd"}})
	got, err := p.Resolve(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"AMD", "NVDA"}, got)
}

func TestResolveUpstreamError(t *testing.T) {
	p := New(nil, "", listStub{err: errors.New("listing down")})
	_, err := p.Resolve(context.Background(), nil)
	assert.Error(t, err)
}

func TestHashStableAndOrderSensitive(t *testing.T) {
	a := Hash([]string{"AAPL", "MSFT"})
	assert.Equal(t, a, Hash([]string{"AAPL", "MSFT"}))
	assert.NotEqual(t, a, Hash([]string{"MSFT", "AAPL"}))
	assert.NotEqual(t, a, Hash([]string{"AAPL"}))
}
