package pokeapi

import (
	"context"
	"strconv"
	"strings"

	"github.com/okian/pokerank/internal/domain/model"
)

// Entries lists the first limit catalogue entries with their dex numbers.
func (c *Client) Entries(ctx context.Context, limit int) ([]model.CatalogueEntry, error) {
	list, err := c.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]model.CatalogueEntry, 0, len(list))
	for i, r := range list {
		n, ok := NumberFromURL(r.URL)
		if !ok {
			n = i + 1
		}
		out = append(out, model.CatalogueEntry{PokedexNumber: n, Name: r.Name})
	}
	return out, nil
}

// Types returns the lower-case type names of entry n in slot order.
func (c *Client) Types(ctx context.Context, n int) ([]string, error) {
	p, err := c.Pokemon(ctx, n)
	if err != nil {
		return nil, err
	}
	return p.TypeNames(), nil
}

// NumberFromURL extracts the trailing id of a resource URL such as
// https://pokeapi.co/api/v2/pokemon/25/.
func NumberFromURL(u string) (int, bool) {
	u = strings.TrimRight(u, "/")
	i := strings.LastIndexByte(u, '/')
	if i < 0 {
		return 0, false
	}
	n, err := strconv.Atoi(u[i+1:])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
