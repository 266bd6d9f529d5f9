package entity

import "strings"

// Genre describes the editorial type of an item.
type Genre string

// Genres accepted by news sitemaps.
const (
	GenrePressRelease  Genre = "PressRelease"
	GenreSatire        Genre = "Satire"
	GenreBlog          Genre = "Blog"
	GenreOpEd          Genre = "OpEd"
	GenreOpinion       Genre = "Opinion"
	GenreUserGenerated Genre = "UserGenerated"
)

var genres = []Genre{GenrePressRelease, GenreSatire, GenreBlog, GenreOpEd, GenreOpinion, GenreUserGenerated}

// Valid reports whether g is one of the fixed genre values.
func (g Genre) Valid() bool {
	for _, v := range genres {
		if g == v {
			return true
		}
	}
	return false
}

// ParseGenre matches s case-insensitively against the known genres.
// The second return value is false when s is not a known genre.
func ParseGenre(s string) (Genre, bool) {
	s = strings.TrimSpace(s)
	for _, v := range genres {
		if strings.EqualFold(s, string(v)) {
			return v, true
		}
	}
	return "", false
}
