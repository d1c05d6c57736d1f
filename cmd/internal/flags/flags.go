// Package flags wires up the shared flag surface of the booktag
// binaries: config file parsing, logging, the default HTTP client,
// and constructors for each provider client.
package flags

import (
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.senan.xyz/flagconf"

	"go.senan.xyz/booktag"
	"go.senan.xyz/booktag/audible"
	"go.senan.xyz/booktag/audnexus"
	"go.senan.xyz/booktag/book"
	"go.senan.xyz/booktag/clientutil"
	"go.senan.xyz/booktag/googlebooks"
	"go.senan.xyz/booktag/hook"
	"go.senan.xyz/booktag/notifications"
	"go.senan.xyz/booktag/ratings"
	"go.senan.xyz/booktag/researchlink"
	"go.senan.xyz/booktag/websearch"
)

func EnvPrefix(prefix string) {
	flagconf.ReadEnvPrefix = func(_ *flag.FlagSet) string {
		return prefix
	}
}

func Parse() {
	userConfig, _ := os.UserConfigDir()
	defaultConfigPath := filepath.Join(userConfig, "booktag", "config")
	configPath := flag.String("config-path", defaultConfigPath, "path config file")
	httpCachePath := flag.String("http-cache-path", "", "path to a sqlite http response cache, empty for in-memory")

	printVersion := flag.Bool("version", false, "print the version")
	printConfig := flag.Bool("config", false, "print the parsed config")

	flag.TextVar(&logLevel, "log-level", &logLevel, "set the logging level")

	flag.Parse()
	flagconf.ParseEnv()
	flagconf.ParseConfig(*configPath)

	if *printVersion {
		fmt.Printf("%s %s\n", flag.CommandLine.Name(), booktag.Version)
		os.Exit(0)
	}
	if *printConfig {
		flag.VisitAll(func(f *flag.Flag) {
			fmt.Printf("%-16s %s\n", f.Name, f.Value)
		})
		os.Exit(0)
	}

	if *httpCachePath != "" {
		cache, err := clientutil.NewDBCache(*httpCachePath)
		if err != nil {
			slog.Error("open http cache, responses won't persist", "path", *httpCachePath, "err", err)
			return
		}
		httpClient.Transport = clientutil.WithCache(cache)(httpClient.Transport)
	}
}

func Providers() booktag.Providers {
	var aud audible.Client
	aud.HTTPClient = http.DefaultClient
	flag.StringVar(&aud.BaseURL, "audible-base-url", `https://www.audible.com`, "audible base url")
	flag.DurationVar(&aud.RateLimit, "audible-rate-limit", 1*time.Second, "audible rate limit duration")

	var adx audnexus.Client
	adx.HTTPClient = http.DefaultClient
	flag.StringVar(&adx.BaseURL, "audnexus-base-url", `https://api.audnex.us`, "audnexus base url")
	flag.DurationVar(&adx.RateLimit, "audnexus-rate-limit", 0, "audnexus rate limit duration")

	var gb googlebooks.Client
	gb.HTTPClient = http.DefaultClient
	flag.StringVar(&gb.BaseURL, "googlebooks-base-url", `https://www.googleapis.com/books/v1`, "google books base url")
	flag.StringVar(&gb.APIKey, "googlebooks-api-key", "", "google books api key")

	var search websearch.DuckDuckGo
	search.HTTPClient = http.DefaultClient
	flag.StringVar(&search.BaseURL, "search-base-url", `https://html.duckduckgo.com/html/`, "web search base url")
	flag.DurationVar(&search.RateLimit, "search-rate-limit", 1*time.Second, "web search rate limit duration")

	var goodreads ratings.Goodreads
	goodreads.HTTPClient = http.DefaultClient
	flag.StringVar(&goodreads.BaseURL, "goodreads-base-url", `https://www.goodreads.com`, "goodreads base url")
	flag.DurationVar(&goodreads.RateLimit, "goodreads-rate-limit", 1*time.Second, "goodreads rate limit duration")

	var amazon ratings.Amazon
	amazon.HTTPClient = http.DefaultClient
	amazon.Search = &search
	flag.StringVar(&amazon.Site, "amazon-site", "amazon.com", "amazon site to scrape ratings from")
	flag.DurationVar(&amazon.RateLimit, "amazon-rate-limit", 1*time.Second, "amazon rate limit duration")

	return booktag.Providers{
		Audible:     &aud,
		Audnexus:    &adx,
		GoogleBooks: &gb,
		Search:      &search,
		Ratings:     []ratings.Source{&goodreads, &amazon},
	}
}

func Notifications() *notifications.Notifications {
	var r notifications.Notifications
	flag.Var(&notificationsParser{&r}, "notification-uri", "add a shoutrrr notification uri for an event")
	return &r
}

func ResearchLinks() *researchlink.Builder {
	var r researchlink.Builder
	flag.Var(&researchLinkParser{&r}, "research-link", "define a helper url to help find information about an unmatched book")
	return &r
}

func Hooks() *[]hook.Hook {
	var r []hook.Hook
	flag.Var(&hooksParser{&r}, "hook", `add a post-tagging hook, eg "subproc beet import <files>"`)
	return &r
}

func Fields() *[]string {
	var r []string
	flag.Var(&fieldsParser{&r}, "field", "restrict updates to a field, repeatable or comma separated")
	return &r
}

func GenreAliases() *book.GenreAliases {
	var r book.GenreAliases
	flag.Var(&genreAliasesParser{&r}, "genre-aliases-path", "path to a yaml file remapping provider genres")
	return &r
}

var httpClient *http.Client

func init() {
	httpClient = &http.Client{Transport: clientutil.Chain(
		clientutil.WithLogging(slog.Default()),
		clientutil.WithUserAgent(fmt.Sprintf(`booktag/%s`, booktag.Version)),
	)(http.DefaultTransport)}

	http.DefaultClient = httpClient
}
