package universe

import (
	"bufio"
	"context"
	"fmt"
	"hash/fnv"
	"os"
	"sort"
	"strings"

	"MarketSweep/internal/domain/repository"
)

// Provider resolves the symbol universe for a scan. The configured universe
// comes from a static list or a symbols file; "ALL" expands to the upstream
// provider's full listing.
type Provider struct {
	symbols  []string
	file     string
	upstream repository.BarProvider
}

func New(symbols []string, file string, upstream repository.BarProvider) *Provider {
	return &Provider{symbols: symbols, file: file, upstream: upstream}
}

// Resolve returns the normalized symbol list for a request. An empty request
// or the single entry "ALL" expands to the configured universe; when none is
// configured it falls back to the upstream listing.
func (p *Provider) Resolve(ctx context.Context, requested []string) ([]string, error) {
	if len(requested) > 0 && !(len(requested) == 1 && strings.EqualFold(requested[0], "ALL")) {
		return normalize(requested), nil
	}

	if len(p.symbols) > 0 {
		return normalize(p.symbols), nil
	}
	if p.file != "" {
		syms, err := readSymbolFile(p.file)
		if err != nil {
			return nil, fmt.Errorf("read universe file: %w", err)
		}
		return normalize(syms), nil
	}

	syms, err := p.upstream.ListSymbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}
	return normalize(syms), nil
}

// Hash returns a stable hash of a normalized universe, used as a cache key
// component so identical universes share fetched bars.
func Hash(symbols []string) uint64 {
	h := fnv.New64a()
	for _, s := range symbols {
		h.Write([]byte(s))
		h.Write([]byte{','})
	}
	return h.Sum64()
}

func normalize(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func readSymbolFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, sc.Err()
}
