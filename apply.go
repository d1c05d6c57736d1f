package booktag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"go.senan.xyz/booktag/book"
	"go.senan.xyz/booktag/covers"
	"go.senan.xyz/booktag/tags"
)

// canonical field names accepted in Config.Fields, with the aliases
// callers naturally use at the tag level.
var fieldAliases = map[string]string{
	"title": "album", "book": "album",
	"author": "artist", "authors": "artist", "albumartist": "artist", "album_artist": "artist",
	"narrators": "narrator", "composer": "narrator",
	"genres": "genre", "grouping": "genre",
	"comment": "description",
	"year":    "date", "published": "date",
}

func normField(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if canon, ok := fieldAliases[name]; ok {
		return canon
	}
	return name
}

func (c *Config) wantField(name string) bool {
	if len(c.Fields) == 0 {
		return true
	}
	name = normField(name)
	for _, f := range c.Fields {
		if normField(f) == name {
			return true
		}
	}
	return false
}

// apply writes resolved metadata into the directory's audio files and
// its cover file, then runs any configured hooks. A write failure on
// one file doesn't stop the others.
func (c *Config) apply(ctx context.Context, dir string, paths []string, meta *book.Meta, cover []byte) error {
	if c.DryRun {
		slog.InfoContext(ctx, "dry run, skipping writes", "dir", dir, "title", meta.Title, "source", meta.Source)
		return nil
	}

	var fileErrs []error
	for i, path := range paths {
		t, err := tags.ReadTags(path)
		if err != nil {
			fileErrs = append(fileErrs, fmt.Errorf("%s: read: %w", path, err))
			continue
		}
		c.applyTags(&t, meta, i+1, len(paths))
		if err := tags.WriteTags(path, t); err != nil {
			fileErrs = append(fileErrs, fmt.Errorf("%s: write: %w", path, err))
		}
	}

	if err := c.applyCover(ctx, dir, paths, meta, cover); err != nil {
		slog.ErrorContext(ctx, "write cover", "dir", dir, "err", err)
	}

	for _, h := range c.Hooks {
		if err := h.ProcessBook(ctx, paths); err != nil {
			slog.ErrorContext(ctx, "run hook", "dir", dir, "err", err)
		}
	}

	return errors.Join(fileErrs...)
}

func (c *Config) applyTags(t *tags.Tags, meta *book.Meta, trackNum, numTracks int) {
	setIf := func(field, key string, values ...string) {
		if !c.wantField(field) {
			return
		}
		var keep []string
		for _, v := range values {
			if v != "" {
				keep = append(keep, v)
			}
		}
		if len(keep) > 0 {
			t.Set(key, keep...)
		}
	}

	setIf("album", tags.Album, meta.Title)
	setIf("album", tags.Subtitle, meta.Subtitle)
	setIf("artist", tags.Artist, meta.Authors...)
	setIf("artist", tags.AlbumArtist, meta.Authors...)
	setIf("narrator", tags.Composer, meta.Narrators...)
	setIf("genre", tags.Genre, meta.Genres...)
	setIf("genre", tags.Grouping, firstNonEmpty(meta.Grouping, first(meta.Genres)))
	setIf("description", tags.Description, meta.Description)
	setIf("description", tags.Comment, meta.Description)
	setIf("publisher", tags.Publisher, meta.Publisher)
	setIf("date", tags.Date, meta.PublishedDate)
	setIf("language", tags.Language, meta.Language)
	setIf("isbn", tags.ISBN, firstNonEmpty(meta.ISBN13, meta.ISBN10))
	setIf("asin", tags.ASIN, meta.ASIN)

	// chapter files play in filename order, make the tags agree
	if numTracks > 1 {
		t.Set(tags.TrackNumber, strconv.Itoa(trackNum))
	}
	t.Clear(tags.DiscNumber)
	t.Clear(tags.Compilation)
}

func (c *Config) applyCover(ctx context.Context, dir string, paths []string, meta *book.Meta, cover []byte) error {
	if !c.wantField("cover") {
		return nil
	}

	if !c.ForceCover {
		if _, ok := covers.BestInDir(dir); ok {
			return nil
		}
		if covers.HasEmbeddedArt(paths[0]) {
			return nil
		}
	}

	if len(cover) == 0 && meta.CoverURL != "" {
		data, err := covers.Download(ctx, nil, meta.CoverURL)
		if err != nil {
			return err
		}
		cover = data
	}
	if len(cover) == 0 {
		return nil
	}

	_, err := covers.WriteFile(dir, cover)
	return err
}

func first(vs []string) string {
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}
