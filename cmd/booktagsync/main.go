package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.senan.xyz/booktag"
	"go.senan.xyz/booktag/cmd/internal/flags"
	"go.senan.xyz/booktag/fileutil"
	"go.senan.xyz/booktag/notifications"
)

func init() {
	flag := flag.CommandLine
	flag.Usage = func() {
		fmt.Fprintf(flag.Output(), "Usage:\n")
		fmt.Fprintf(flag.Output(), "  $ %s [<options>] <library-root>...\n", flag.Name())
		fmt.Fprintf(flag.Output(), "\n")
		fmt.Fprintf(flag.Output(), "Options:\n")
		flag.PrintDefaults()
	}
}

func main() {
	defer flags.ExitError()
	var (
		providers    = flags.Providers()
		notifs       = flags.Notifications()
		hooks        = flags.Hooks()
		fields       = flags.Fields()
		genreAliases = flags.GenreAliases()
		interval     = flag.Duration("interval", 0, "skip dirs modified within this duration, 0 to process all")
		dryRun       = flag.Bool("dry-run", false, "dry run")
	)
	flags.EnvPrefix("booktag") // reuse main binary's namespace
	flags.Parse()

	if flag.NArg() == 0 {
		slog.Error("need at least one library root")
		return
	}

	start := time.Now()

	var dirs []string
	for _, root := range flag.Args() {
		root, _ = filepath.Abs(root)
		found, err := fileutil.FindBookDirs(root)
		if err != nil {
			slog.Error("walking library", "root", root, "err", err)
			continue
		}
		dirs = append(dirs, found...)
	}
	dirs = filterRecent(dirs, *interval)

	cfg := booktag.Config{
		Providers:    providers,
		GenreAliases: *genreAliases,
		Hooks:        *hooks,
		Fields:       *fields,
		DryRun:       *dryRun,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	resolved, failed := cfg.ResolveBatch(ctx, dirs, func(p booktag.Progress) {
		if p.Err != nil {
			slog.ErrorContext(ctx, "processing dir", "dir", p.Result.Dir, "err", p.Err, "done", p.Done, "total", p.Total)
			return
		}
		slog.InfoContext(ctx, "processed dir", "dir", p.Result.Dir, "status", p.Result.Status, "done", p.Done, "total", p.Total)
	})

	log := slog.With("took", time.Since(start), "dirs", len(dirs), "resolved", resolved, "errs", failed)
	if failed > 0 {
		notifs.Sendf(ctx, notifications.SyncError, "sync finished with %d errors", failed)
		log.Error("sync finished with errors")
		return
	}
	notifs.Send(ctx, notifications.SyncComplete, "sync finished")
	log.Info("sync finished")
}

func filterRecent(dirs []string, interval time.Duration) []string {
	if interval <= 0 {
		return dirs
	}
	var keep []string
	for _, dir := range dirs {
		info, err := os.Stat(dir)
		if err != nil {
			continue
		}
		// recently modified dirs may still be mid-copy
		if time.Since(info.ModTime()) < interval {
			continue
		}
		keep = append(keep, dir)
	}
	return keep
}
