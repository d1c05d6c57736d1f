// Package cachefile persists one resolution record per book directory
// so repeated runs don't touch the network. A record is a plain text
// file: the first line is a status token, the rest is a JSON payload
// with an optional base64 cover.
package cachefile

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"go.senan.xyz/booktag/book"
	"go.senan.xyz/booktag/fileutil"
)

const Ext = ".atf"

var ErrNoRecord = errors.New("no cache record")

type Status string

const (
	StatusSuccess       Status = "SUCCESS"
	StatusNotFound      Status = "METADATA_NOT_FOUND"
	StatusLowConfidence Status = "LOW_CONFIDENCE"
)

func (s Status) Valid() bool {
	switch s {
	case StatusSuccess, StatusNotFound, StatusLowConfidence:
		return true
	}
	return false
}

type Record struct {
	Status Status
	Meta   book.Meta
	Cover  []byte
}

type payload struct {
	book.Meta
	CoverBase64 string `json:"cover_base64,omitempty"`
}

// Path finds the record file in a directory, if any.
func Path(dir string) (string, bool) {
	paths, _ := fileutil.GlobBase(dir, "*"+Ext)
	if len(paths) == 0 {
		return "", false
	}
	return paths[0], true
}

// Read loads the directory's record. A missing, unreadable, or
// malformed record is ErrNoRecord, a cache miss rather than a failure.
func Read(dir string) (*Record, error) {
	path, ok := Path(dir)
	if !ok {
		return nil, ErrNoRecord
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ErrNoRecord
	}

	statusLine, rest, _ := strings.Cut(string(data), "\n")
	status := Status(strings.TrimSpace(statusLine))
	if !status.Valid() {
		return nil, ErrNoRecord
	}

	var p payload
	if rest = strings.TrimSpace(rest); rest != "" {
		if err := json.Unmarshal([]byte(rest), &p); err != nil {
			return nil, ErrNoRecord
		}
	}

	rec := Record{Status: status, Meta: p.Meta}
	if p.CoverBase64 != "" {
		if cover, err := base64.StdEncoding.DecodeString(p.CoverBase64); err == nil {
			rec.Cover = cover
		}
	}
	return &rec, nil
}

// Write replaces the directory's record wholesale. The filename comes
// from the book title so the record doubles as a human-readable marker
// of what the directory resolved to.
func Write(dir string, nameBase string, rec Record) error {
	name := sanitizeName(nameBase)
	if name == "" {
		name = "metadata"
	}

	p := payload{Meta: rec.Meta}
	if len(rec.Cover) > 0 {
		p.CoverBase64 = base64.StdEncoding.EncodeToString(rec.Cover)
	}
	data, err := json.MarshalIndent(p, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	// drop any stale record first, there is only ever one per directory
	old, _ := fileutil.GlobBase(dir, "*"+Ext)
	for _, o := range old {
		if err := os.Remove(o); err != nil {
			return fmt.Errorf("remove stale record: %w", err)
		}
	}

	path := filepath.Join(dir, name+Ext)
	content := string(rec.Status) + "\n" + string(data)
	if err := os.WriteFile(path, []byte(content), 0666); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return nil
}

func sanitizeName(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			sb.WriteRune(r)
		}
	}
	return strings.TrimSpace(sb.String())
}

// placeholder genres carry no information, a record with only these
// doesn't satisfy a genre request.
var placeholderGenres = map[string]struct{}{
	"audiobook": {}, "audiobooks": {}, "audio book": {}, "audio books": {},
}

// Satisfies reports whether a SUCCESS record already answers every
// requested field, meaning resolution can be skipped entirely. Field
// names accept the tag-level aliases callers naturally use.
// hasEmbeddedArt lets an existing in-file cover satisfy a cover
// request when the record itself has no blob.
func (r *Record) Satisfies(fields []string, hasEmbeddedArt bool) bool {
	if r.Status != StatusSuccess {
		return false
	}
	for _, field := range fields {
		switch strings.ToLower(strings.TrimSpace(field)) {
		case "title", "album":
			if r.Meta.Title == "" {
				return false
			}
		case "author", "authors", "artist", "albumartist", "album_artist":
			if len(r.Meta.Authors) == 0 {
				return false
			}
		case "narrator", "narrators", "composer":
			if len(r.Meta.Narrators) == 0 {
				return false
			}
		case "genre", "genres", "grouping":
			if !hasRealGenre(r.Meta.Genres) {
				return false
			}
		case "description", "comment":
			if r.Meta.Description == "" {
				return false
			}
		case "publisher":
			if r.Meta.Publisher == "" {
				return false
			}
		case "date", "year", "published":
			if r.Meta.PublishedDate == "" {
				return false
			}
		case "language":
			if r.Meta.Language == "" {
				return false
			}
		case "rating":
			if r.Meta.Rating == 0 {
				return false
			}
		case "isbn":
			if r.Meta.ISBN13 == "" && r.Meta.ISBN10 == "" {
				return false
			}
		case "cover":
			// a bare cover URL doesn't count, satisfying it would need
			// a download and satisfied records must stay offline
			if len(r.Cover) == 0 && !hasEmbeddedArt {
				return false
			}
		}
	}
	return true
}

func hasRealGenre(genres []string) bool {
	for _, g := range genres {
		if _, ok := placeholderGenres[strings.ToLower(book.NormSpace(g))]; !ok && g != "" {
			return true
		}
	}
	return false
}
