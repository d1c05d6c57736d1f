package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"go.senan.xyz/booktag/tags"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage:\n")
		fmt.Fprintf(os.Stderr, "  $ %s read  [TAG]...               -- [PATH]...\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  $ %s write [TAG [VALUE]... , ]... -- [PATH]...\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  $ %s clear [TAG]...               -- [PATH]...\n", os.Args[0])
		fmt.Fprintln(os.Stderr)
		fmt.Fprintf(os.Stderr, "example:\n")
		fmt.Fprintf(os.Stderr, "  $ %s read -- a.m4b b.m4b c.m4b\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  $ %s read album artist -- a.m4b\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  $ %s write album \"book title\" -- x.m4b\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  $ %s write genre \"sci-fi\" \"fantasy\" , artist \"Andy Weir\" -- dir/*.mp3\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  $ %s clear -- a.m4b\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  $ %s clear comment description -- *.mp3\n", os.Args[0])
	}
	flag.Parse()

	command := flag.Arg(0)

	switch command {
	case "read", "write", "clear":
	default:
		flag.Usage()
		os.Exit(1)
	}

	argPaths := flag.Args()[1:]

	var args, paths []string
	if i := slices.Index(argPaths, "--"); i >= 0 {
		args = argPaths[:i]
		paths = argPaths[i+1:]
	}
	if len(paths) == 0 {
		fmt.Fprintf(os.Stderr, "no paths provided\n")
		fmt.Fprintln(os.Stderr)
		flag.Usage()
		os.Exit(1)
	}

	var err error
	switch command {
	case "read":
		args := parseTags(args)
		err = iterFiles(paths, func(p string) error {
			return read(p, args)
		})
	case "write":
		args := parseTagMap(args)
		err = iterFiles(paths, func(p string) error {
			return write(p, args)
		})
	case "clear":
		args := parseTags(args)
		err = iterFiles(paths, func(p string) error {
			return clear(p, args)
		})
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func read(path string, keys map[string]struct{}) error {
	t, err := tags.ReadTags(path)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	for k, vs := range t.Iter() {
		if len(keys) > 0 {
			if _, ok := keys[k]; !ok {
				continue
			}
		}
		for _, v := range vs {
			fmt.Printf("%s\t%s\t%s\n", path, k, v)
		}
	}
	return nil
}

func write(path string, raw map[string][]string) error {
	t, err := tags.ReadTags(path)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	for k, vs := range raw {
		t.Set(k, vs...)
	}
	if err := tags.WriteTags(path, t); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return nil
}

func clear(path string, keys map[string]struct{}) error {
	if len(keys) == 0 {
		if err := tags.ReplaceTags(path, tags.Tags{}); err != nil {
			return fmt.Errorf("save: %w", err)
		}
		return nil
	}
	t, err := tags.ReadTags(path)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	for k := range keys {
		t.Clear(k)
	}
	if err := tags.ReplaceTags(path, t); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return nil
}

func parseTags(args []string) map[string]struct{} {
	var keys = map[string]struct{}{}
	for _, k := range args {
		keys[tags.NormKey(k)] = struct{}{}
	}
	return keys
}

func parseTagMap(args []string) map[string][]string {
	r := make(map[string][]string)
	var k string
	for _, v := range args {
		if v == "," {
			k = ""
			continue
		}
		if k == "" {
			k = v
			r[k] = nil
			continue
		}
		r[k] = append(r[k], v)
	}
	return r
}

func iterFiles(paths []string, f func(p string) error) error {
	var pathErrs []error
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return err
		}

		switch info.Mode().Type() {
		// recurse if dir, only attempt when CanRead
		case os.ModeDir:
			err := filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if !d.Type().IsRegular() {
					return nil
				}
				if !tags.CanRead(path) {
					return nil
				}
				if err := f(path); err != nil {
					pathErrs = append(pathErrs, err)
					return nil
				}
				return nil
			})
			if err != nil {
				return fmt.Errorf("walk: %w", err)
			}
		// otherwise try directly, bubble errors
		default:
			if err := f(p); err != nil {
				pathErrs = append(pathErrs, err)
				continue
			}
		}
	}
	return errors.Join(pathErrs...)
}
