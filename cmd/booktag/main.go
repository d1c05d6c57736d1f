package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sergi/go-diff/diffmatchpatch"
	"go.senan.xyz/table/table"

	"go.senan.xyz/booktag"
	"go.senan.xyz/booktag/cmd/internal/flags"
	"go.senan.xyz/booktag/diff"
	"go.senan.xyz/booktag/fileutil"
	"go.senan.xyz/booktag/notifications"
	"go.senan.xyz/booktag/researchlink"
	"go.senan.xyz/booktag/tags"
)

func init() {
	flag := flag.CommandLine
	flag.Usage = func() {
		fmt.Fprintf(flag.Output(), "Usage:\n")
		fmt.Fprintf(flag.Output(), "  $ %s [<options>] <dir>...\n", flag.Name())
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
		research     = flags.ResearchLinks()
		hooks        = flags.Hooks()
		fields       = flags.Fields()
		genreAliases = flags.GenreAliases()
		dryRun       = flag.Bool("dry-run", false, "dry run")
		forceCover   = flag.Bool("force-cover", false, "replace cover art even when some already exists")
		forceRefresh = flag.Bool("force-refresh", false, "retry dirs a previous run marked unresolvable")
		yes          = flag.Bool("yes", false, "accept the best candidate even when it scores below the confidence threshold")
	)
	flags.EnvPrefix("booktag")
	flags.Parse()

	if flag.NArg() == 0 {
		slog.Error("need at least one dir")
		return
	}

	cfg := booktag.Config{
		Providers:    providers,
		GenreAliases: *genreAliases,
		Hooks:        *hooks,
		Fields:       *fields,
		DryRun:       *dryRun,
		ForceCover:   *forceCover,
		ForceRefresh: *forceRefresh,
		Yes:          *yes,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	for _, dir := range flag.Args() {
		before := readBefore(dir)

		res, err := cfg.ResolveOne(ctx, dir)
		switch {
		case errors.Is(err, booktag.ErrSkipped):
			slog.InfoContext(ctx, "skipping, marked unresolvable by a previous run", "dir", dir)
		case errors.Is(err, booktag.ErrNotFound), errors.Is(err, booktag.ErrLowConfidence):
			slog.ErrorContext(ctx, "no confident match", "dir", dir, "query", res.Query, "score", res.Score, "err", err)
			printResearchLinks(research, res.Query.Title, res.Query.Author)
			notifs.Sendf(ctx, notifications.NeedsInput, "no confident match for %q", dir)
		case err != nil:
			slog.ErrorContext(ctx, "processing dir", "dir", dir, "err", err)
		default:
			slog.InfoContext(ctx, "processed dir", "dir", dir, "status", res.Status, "title", res.Meta.Title, "source", res.Meta.Source, "score", res.Score)
			printDiff(before, res)
		}
	}

	notifs.Sendf(ctx, notifications.Complete, "finished %d dirs", flag.NArg())
}

func readBefore(dir string) tags.Tags {
	paths, err := fileutil.AudioFiles(dir)
	if err != nil || len(paths) == 0 {
		return tags.Tags{}
	}
	t, err := tags.ReadTags(paths[0])
	if err != nil {
		return tags.Tags{}
	}
	return t
}

var dmp = diffmatchpatch.New()

func printDiff(before tags.Tags, res *booktag.Result) {
	_, diffs := diff.DiffMeta(before, res.Meta)

	t := table.NewStringWriter()
	for _, d := range diffs {
		fmt.Fprintf(t, "%s\t%s\n", d.Field, fmtDiff(d.Changes))
	}
	for _, row := range strings.Split(strings.TrimRight(t.String(), "\n"), "\n") {
		slog.Info(row)
	}
}

func fmtDiff(changes []diffmatchpatch.Diff) string {
	if d := dmp.DiffPrettyText(changes); d != "" {
		return d
	}
	return "[empty]"
}

func printResearchLinks(research *researchlink.Builder, title, author string) {
	links, err := research.Build(researchlink.Query{Title: title, Author: author})
	if err != nil {
		slog.Error("build research links", "err", err)
	}
	for _, link := range links {
		slog.Info("search to try", "name", link.Name, "url", link.URL)
	}
}
