package seed

import (
	"github.com/okian/pokerank/internal/domain/types"
)

type correction struct {
	name  string
	types []types.Category
}

func fix(name string, cs ...types.Category) correction {
	return correction{name: name, types: cs}
}

// corrections pins names and types for entries the catalogue tends to get
// wrong or that stay placeholders after partial enrichment.
var corrections = map[int]correction{
	1:   fix("Bulbasaur", types.Grass, types.Poison),
	2:   fix("Ivysaur", types.Grass, types.Poison),
	3:   fix("Venusaur", types.Grass, types.Poison),
	4:   fix("Charmander", types.Fire),
	5:   fix("Charmeleon", types.Fire),
	6:   fix("Charizard", types.Fire, types.Flying),
	7:   fix("Squirtle", types.Water),
	8:   fix("Wartortle", types.Water),
	9:   fix("Blastoise", types.Water),
	10:  fix("Caterpie", types.Bug),
	11:  fix("Metapod", types.Bug),
	12:  fix("Butterfree", types.Bug, types.Flying),
	13:  fix("Weedle", types.Bug, types.Poison),
	14:  fix("Kakuna", types.Bug, types.Poison),
	15:  fix("Beedrill", types.Bug, types.Poison),
	16:  fix("Pidgey", types.Normal, types.Flying),
	17:  fix("Pidgeotto", types.Normal, types.Flying),
	18:  fix("Pidgeot", types.Normal, types.Flying),
	19:  fix("Rattata", types.Normal),
	20:  fix("Raticate", types.Normal),
	25:  fix("Pikachu", types.Electric),
	26:  fix("Raichu", types.Electric),
	150: fix("Mewtwo", types.Psychic),
	151: fix("Mew", types.Psychic),
	152: fix("Chikorita", types.Grass),
	155: fix("Cyndaquil", types.Fire),
	158: fix("Totodile", types.Water),
	252: fix("Treecko", types.Grass),
	253: fix("Grovyle", types.Grass),
	255: fix("Torchic", types.Fire),
	258: fix("Mudkip", types.Water),
	300: fix("Skitty", types.Normal),
	387: fix("Turtwig", types.Grass),
	390: fix("Chimchar", types.Fire),
	393: fix("Piplup", types.Water),
	495: fix("Snivy", types.Grass),
	498: fix("Tepig", types.Fire),
	501: fix("Oshawott", types.Water),
	553: fix("Krookodile", types.Ground, types.Dark),
	650: fix("Chespin", types.Grass),
	653: fix("Fennekin", types.Fire),
	656: fix("Froakie", types.Water),
	722: fix("Rowlet", types.Grass, types.Flying),
	725: fix("Litten", types.Fire),
	728: fix("Popplio", types.Water),
	800: fix("Necrozma", types.Psychic),
	810: fix("Grookey", types.Grass),
	813: fix("Scorbunny", types.Fire),
	816: fix("Sobble", types.Water),
	906: fix("Sprigatito", types.Grass),
	909: fix("Fuecoco", types.Fire),
	912: fix("Quaxly", types.Water),
}

// fallbackRoster is used when the catalogue cannot be listed at all.
var fallbackRoster = []int{1, 4, 7, 25}
