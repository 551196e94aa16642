package catalog

import "github.com/tbourn/go-game-watchlist/internal/utils"

// genreNames lists the Portuguese and English names accepted for well-known
// IGDB genre ids.
var genreNames = map[int64][]string{
	2:  {"point-and-click"},
	4:  {"luta", "fighting"},
	5:  {"tiro", "shooter", "fps"},
	7:  {"musica", "music"},
	8:  {"plataforma", "platform"},
	9:  {"puzzle", "quebra-cabeca"},
	10: {"corrida", "racing"},
	11: {"rts"},
	12: {"rpg", "role-playing", "role-playing (rpg)"},
	13: {"simulador", "simulator"},
	14: {"esporte", "sport"},
	15: {"estrategia", "strategy"},
	26: {"card", "cartas"},
	30: {"pinball"},
	31: {"aventura", "adventure", "terror", "horror"},
	32: {"indie"},
	33: {"arcade"},
	34: {"visual novel"},
}

// genreAliases is genreNames inverted and keyed by folded name.
var genreAliases = func() map[string]int64 {
	m := make(map[string]int64)
	for id, names := range genreNames {
		for _, n := range names {
			m[utils.Fold(n)] = id
		}
	}
	return m
}()

// GenreID returns the IGDB id for a well-known genre name, ignoring case and
// accents.
func GenreID(name string) (int64, bool) {
	id, ok := genreAliases[utils.Fold(name)]
	return id, ok
}
