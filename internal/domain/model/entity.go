// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"slices"
	"strings"

	"github.com/okian/pokerank/internal/domain/types"
)

// DefaultRating is the rating every new entity starts with.
const DefaultRating = 1500

// Entity is a ranked Pokémon. Rating, Wins and Losses change only through
// a resolved vote, an explicit seed override, or an administrative reset.
type Entity struct {
	ID            int64            `json:"id"`
	PokedexNumber int              `json:"pokedexNumber"`
	Name          string           `json:"name"`
	ImageURL      string           `json:"imageUrl"`
	Types         []types.Category `json:"types"`
	Rating        int              `json:"rating"`
	Wins          int              `json:"wins"`
	Losses        int              `json:"losses"`
}

// Clone returns a copy that shares no memory with e.
func (e Entity) Clone() Entity {
	e.Types = slices.Clone(e.Types)
	return e
}

// HasType reports whether e carries category c.
func (e Entity) HasType(c types.Category) bool {
	return slices.Contains(e.Types, c)
}

// EntitySeed is the upsert payload, keyed by PokedexNumber. Nil rating
// fields keep the stored values (or defaults on insert).
type EntitySeed struct {
	PokedexNumber int
	Name          string
	ImageURL      string
	Types         []types.Category
	Rating        *int
	Wins          *int
	Losses        *int
}

// Validate rejects seeds that cannot be stored.
func (s EntitySeed) Validate() error {
	switch {
	case s.PokedexNumber <= 0:
		return fmt.Errorf("%w: pokedex number must be positive, got %d", ErrInvalidArgument, s.PokedexNumber)
	case strings.TrimSpace(s.Name) == "":
		return fmt.Errorf("%w: name is required for #%d", ErrInvalidArgument, s.PokedexNumber)
	case s.Wins != nil && *s.Wins < 0, s.Losses != nil && *s.Losses < 0:
		return fmt.Errorf("%w: tallies must not be negative for #%d", ErrInvalidArgument, s.PokedexNumber)
	}
	return nil
}

// Apply merges the seed into e, preserving id and, unless overridden,
// rating and tallies. Categories are sanitized on the way in.
func (s EntitySeed) Apply(e Entity) Entity {
	e.PokedexNumber = s.PokedexNumber
	e.Name = s.Name
	e.ImageURL = s.ImageURL
	e.Types = types.Sanitize(s.Types)
	if s.Rating != nil {
		e.Rating = *s.Rating
	}
	if s.Wins != nil {
		e.Wins = *s.Wins
	}
	if s.Losses != nil {
		e.Losses = *s.Losses
	}
	return e
}

// NewEntity builds a fresh entity from s with default rating and tallies
// unless s overrides them. The id is assigned by the store.
func (s EntitySeed) NewEntity() Entity {
	return s.Apply(Entity{Rating: DefaultRating})
}

// RankedEntity is an entity with its dense 1-based position.
type RankedEntity struct {
	Entity
	Rank int `json:"rank"`
}

// Matchup is a pair of distinct entities offered for a vote.
type Matchup struct {
	EntityA Entity `json:"entityA"`
	EntityB Entity `json:"entityB"`
}

// CatalogueEntry is one row of the external roster listing.
type CatalogueEntry struct {
	PokedexNumber int
	Name          string
}
