// Package types holds the fixed enumeration of elemental categories.
package types

import (
	"strings"
)

// Category is an elemental type tag. Categories feed the aggregate
// statistics only and never affect ranking order.
type Category string

// The 18 elemental categories.
const (
	Normal   Category = "Normal"
	Fire     Category = "Fire"
	Water    Category = "Water"
	Grass    Category = "Grass"
	Electric Category = "Electric"
	Ice      Category = "Ice"
	Fighting Category = "Fighting"
	Poison   Category = "Poison"
	Ground   Category = "Ground"
	Flying   Category = "Flying"
	Psychic  Category = "Psychic"
	Bug      Category = "Bug"
	Rock     Category = "Rock"
	Ghost    Category = "Ghost"
	Dark     Category = "Dark"
	Dragon   Category = "Dragon"
	Steel    Category = "Steel"
	Fairy    Category = "Fairy"
)

// DefaultColor is the display token for unknown categories.
const DefaultColor = "bg-gray-400"

var colors = map[Category]string{
	Normal:   "bg-gray-400",
	Fire:     "bg-orange-500",
	Water:    "bg-blue-500",
	Grass:    "bg-green-500",
	Electric: "bg-yellow-500",
	Ice:      "bg-cyan-400",
	Fighting: "bg-red-700",
	Poison:   "bg-purple-500",
	Ground:   "bg-amber-700",
	Flying:   "bg-indigo-300",
	Psychic:  "bg-pink-500",
	Bug:      "bg-lime-500",
	Rock:     "bg-yellow-700",
	Ghost:    "bg-purple-700",
	Dark:     "bg-gray-700",
	Dragon:   "bg-indigo-600",
	Steel:    "bg-gray-500",
	Fairy:    "bg-pink-300",
}

// All returns every category in canonical order.
func All() []Category {
	return []Category{
		Normal, Fire, Water, Grass, Electric, Ice, Fighting, Poison, Ground,
		Flying, Psychic, Bug, Rock, Ghost, Dark, Dragon, Steel, Fairy,
	}
}

// Valid reports whether c is one of the 18 categories.
func (c Category) Valid() bool {
	_, ok := colors[c]
	return ok
}

// Color returns the display token for c.
func (c Category) Color() string {
	if col, ok := colors[c]; ok {
		return col
	}
	return DefaultColor
}

// Normalize maps upstream spellings ("fire", " FIRE ") onto the canonical form.
func Normalize(s string) Category {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return Category(strings.ToUpper(s[:1]) + strings.ToLower(s[1:]))
}

// Sanitize normalizes, drops unknown and duplicate categories, and keeps
// order. An empty result becomes [Normal] so every entity has a category.
func Sanitize(in []Category) []Category {
	out := make([]Category, 0, len(in))
	seen := make(map[Category]struct{}, len(in))
	for _, c := range in {
		c = Normalize(string(c))
		if !c.Valid() {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	if len(out) == 0 {
		return []Category{Normal}
	}
	return out
}

// FromStrings converts and sanitizes raw category names.
func FromStrings(in []string) []Category {
	cs := make([]Category, len(in))
	for i, s := range in {
		cs[i] = Category(s)
	}
	return Sanitize(cs)
}
