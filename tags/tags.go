// tags wraps go-taglib to normalise known tag variants
package tags

import (
	"iter"
	"maps"
	"path/filepath"
	"slices"
	"strings"

	"go.senan.xyz/taglib"
)

// https://taglib.org/api/p_propertymapping.html
// Audiobook convention: the book title lives in ALBUM, the author in
// ARTIST/ALBUMARTIST, and the narrator in COMPOSER.
const (
	Album       = "ALBUM"
	AlbumArtist = "ALBUMARTIST"
	Artist      = "ARTIST"
	Composer    = "COMPOSER"
	Title       = "TITLE"
	Subtitle    = "SUBTITLE"
	Genre       = "GENRE"
	Grouping    = "GROUPING"
	Comment     = "COMMENT"
	Description = "DESCRIPTION"
	Publisher   = "PUBLISHER"
	Language    = "LANGUAGE"
	Date        = "DATE"
	TrackNumber = "TRACKNUMBER"
	DiscNumber  = "DISCNUMBER"
	Compilation = "COMPILATION"
	ISBN        = "ISBN"
	ASIN        = "ASIN"
)

var alternatives = map[string]string{
	"ALBUM_ARTIST": AlbumArtist,
	"ALBUMARTISTS": AlbumArtist,
	"YEAR":         Date,
	"RELEASEDATE":  Date,
	"TRACK":        TrackNumber,
	"TRACKC":       TrackNumber,
	"DISC":         DiscNumber,
	"COMMENTS":     Comment,
	"NARRATOR":     Composer,
	"LABEL":        Publisher,
	"CONTENTGROUP": Grouping,
}

func CanRead(absPath string) bool {
	switch ext := strings.ToLower(filepath.Ext(absPath)); ext {
	case ".mp3", ".flac", ".opus", ".aac", ".aiff", ".m4a", ".m4b", ".mp2", ".oga", ".ogg", ".wav", ".wma", ".wv":
		return true
	}
	return false
}

func ReadTags(path string) (Tags, error) {
	t, err := taglib.ReadTags(path)
	return Tags{t}, err
}

func ReplaceTags(path string, tags Tags) error {
	return taglib.WriteTags(path, tags.t, taglib.Clear)
}

func WriteTags(path string, tags Tags) error {
	return taglib.WriteTags(path, tags.t, 0)
}

func ReadProperties(path string) (taglib.Properties, error) {
	return taglib.ReadProperties(path)
}

type Tags struct {
	t map[string][]string
}

func NewTags(vs ...string) Tags {
	if len(vs)%2 != 0 {
		panic("vs should be kv pairs")
	}
	var t Tags
	for i := 0; i < len(vs)-1; i += 2 {
		t.Set(vs[i], vs[i+1])
	}
	return t
}

func (t Tags) Iter() iter.Seq2[string, []string] {
	return func(yield func(string, []string) bool) {
		for _, k := range slices.Sorted(maps.Keys(t.t)) {
			if k := NormKey(k); !yield(k, t.t[k]) {
				break
			}
		}
	}
}

func (t *Tags) Set(key string, values ...string) {
	if t.t == nil {
		t.t = map[string][]string{}
	}
	t.t[NormKey(key)] = values
}

func (t *Tags) Clear(key string) {
	delete(t.t, NormKey(key))
}

func (t Tags) Get(key string) string {
	if vs := t.t[NormKey(key)]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

func (t Tags) Values(key string) []string {
	return t.t[NormKey(key)]
}

func Equal(a, b Tags) bool {
	return maps.EqualFunc(a.t, b.t, slices.Equal)
}

func NormKey(k string) string {
	k = strings.ToUpper(k)
	if nk, ok := alternatives[k]; ok {
		return nk
	}
	return k
}
