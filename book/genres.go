package book

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"
)

// GenreAliases maps raw provider genre names onto the names preferred
// by the library, eg "Sci-Fi" onto "Science Fiction". Matching is case
// insensitive.
type GenreAliases map[string]string

func LoadGenreAliases(path string) (GenreAliases, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read alias file: %w", err)
	}
	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse alias file: %w", err)
	}
	ga := make(GenreAliases, len(raw))
	for k, v := range raw {
		ga[strings.ToLower(NormSpace(k))] = NormSpace(v)
	}
	return ga, nil
}

func (ga GenreAliases) Apply(genres []string) []string {
	if len(ga) == 0 {
		return genres
	}
	out := make([]string, 0, len(genres))
	for _, g := range genres {
		if pref, ok := ga[strings.ToLower(NormSpace(g))]; ok {
			g = pref
		}
		out = append(out, g)
	}
	return UniqCI(out)
}
