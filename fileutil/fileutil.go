package fileutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"go.senan.xyz/natcmp"
)

func GlobEscape(path string) string {
	var r strings.Builder
	for _, c := range path {
		switch c {
		case '*', '?', '[':
			r.WriteRune('[')
			r.WriteRune(c)
			r.WriteRune(']')
		default:
			r.WriteRune(c)
		}
	}
	return r.String()
}

func GlobBase(dir, pattern string) ([]string, error) {
	return filepath.Glob(filepath.Join(GlobEscape(dir), pattern))
}

var safePathReplacer = strings.NewReplacer(
	"\x00", "",
	string(filepath.Separator), " ",
)

func SafePath(path string) string {
	path = safePathReplacer.Replace(path)
	path = strings.Join(strings.Fields(path), " ")
	return path
}

var audioExts = map[string]struct{}{
	".mp3": {}, ".m4a": {}, ".m4b": {}, ".opus": {}, ".ogg": {},
	".oga": {}, ".flac": {}, ".aac": {}, ".wma": {}, ".wav": {},
}

func IsAudio(path string) bool {
	_, ok := audioExts[strings.ToLower(filepath.Ext(path))]
	return ok
}

// macOS resource forks and other dot-underscore droppings look like
// audio files but aren't.
func isJunk(name string) bool {
	return strings.HasPrefix(name, "._")
}

// AudioFiles lists the audio files directly inside a directory, in
// natural order so that "Chapter 2" sorts before "Chapter 10".
func AudioFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || isJunk(e.Name()) || !IsAudio(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	slices.SortFunc(paths, natcmp.Compare)
	return paths, nil
}

// FindBookDirs walks a library root and returns every directory that
// directly contains audio files, one per book. Hidden directories are
// skipped.
func FindBookDirs(root string) ([]string, error) {
	seen := map[string]struct{}{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		if isJunk(d.Name()) || !IsAudio(d.Name()) {
			return nil
		}
		seen[filepath.Dir(path)] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, err
	}
	dirs := make([]string, 0, len(seen))
	for d := range seen {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	return dirs, nil
}
