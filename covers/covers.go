// Package covers handles cover art for book directories: finding an
// existing image, detecting art embedded in audio files, downloading
// provider covers, and writing the directory's canonical cover file.
package covers

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/dhowden/tag"
)

var ErrNoCover = errors.New("no cover")

const Filename = "cover.jpg"

func IsCoverFile(p string) bool {
	p = filepath.Ext(p)
	p = strings.ToLower(p)
	_, ok := filetypePriorities[p]
	return ok
}

// Compare ranks two potential cover paths, suitable for [slices.SortFunc].
func Compare(a, b string) int {
	a, b = strings.ToLower(a), strings.ToLower(b)
	return cmp.Or(
		slices.Compare(posArtTypes(a), posArtTypes(b)),
		slices.Compare(posNumbers(a), posNumbers(b)),
		cmp.Compare(posFiletype(a), posFiletype(b)),
	)
}

// BestInDir picks the highest ranked image file already in a
// directory.
func BestInDir(dir string) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	var best string
	for _, e := range entries {
		if e.IsDir() || !IsCoverFile(e.Name()) {
			continue
		}
		if best == "" || Compare(best, e.Name()) > 0 {
			best = e.Name()
		}
	}
	if best == "" {
		return "", false
	}
	return filepath.Join(dir, best), true
}

// HasEmbeddedArt reports whether an audio file already carries a
// picture in its tags.
func HasEmbeddedArt(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return false
	}
	return m.Picture() != nil
}

// Download fetches cover bytes from a provider URL.
func Download(ctx context.Context, client *http.Client, coverURL string) ([]byte, error) {
	if coverURL == "" {
		return nil, ErrNoCover
	}
	if client == nil {
		client = http.DefaultClient
	}
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, coverURL, nil)
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("req cover: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, ErrNoCover
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read cover: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrNoCover
	}
	return data, nil
}

// WriteFile stores cover bytes as the directory's canonical cover.
func WriteFile(dir string, data []byte) (string, error) {
	path := filepath.Join(dir, Filename)
	if err := os.WriteFile(path, data, 0666); err != nil {
		return "", fmt.Errorf("write cover: %w", err)
	}
	return path, nil
}

var artTypePriorities = map[string]int{
	"front":    3,
	"cover":    3,
	"book":     3,
	"folder":   2,
	"albumart": 2,
	"scan":     1,
	"back":     0, // ignore
	"author":   0, // ignore
}

var artTypeExpr *regexp.Regexp

func init() {
	var quoted []string
	for k := range artTypePriorities {
		quoted = append(quoted, regexp.QuoteMeta(k))
	}
	artTypeExpr = regexp.MustCompile(strings.Join(quoted, "|"))
}

func posArtTypes(path string) []int {
	matches := artTypeExpr.FindAllString(path, -1)
	r := make([]int, len(matches))
	for i, m := range matches {
		r[i] = -artTypePriorities[m]
	}
	return r
}

var numbersExpr = regexp.MustCompile(`\d+`)

func posNumbers(path string) []int {
	matches := numbersExpr.FindAllString(path, -1)
	r := make([]int, len(matches))
	for i, m := range matches {
		r[i], _ = strconv.Atoi(m)
	}
	return r
}

var filetypePriorities = map[string]int{
	".png":  2,
	".jpg":  1,
	".jpeg": 1,
	".bmp":  1,
	".gif":  1,
}

func posFiletype(path string) int {
	return -filetypePriorities[filepath.Ext(path)]
}
