package flags

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"strings"

	"go.senan.xyz/booktag/book"
	"go.senan.xyz/booktag/hook"
	"go.senan.xyz/booktag/notifications"
	"go.senan.xyz/booktag/researchlink"
)

var _ flag.Value = (*notificationsParser)(nil)
var _ flag.Value = (*researchLinkParser)(nil)
var _ flag.Value = (*hooksParser)(nil)
var _ flag.Value = (*fieldsParser)(nil)
var _ flag.Value = (*genreAliasesParser)(nil)

type notificationsParser struct{ *notifications.Notifications }

func (n *notificationsParser) Set(value string) error {
	eventsRaw, uri, ok := strings.Cut(value, " ")
	if !ok {
		return fmt.Errorf("invalid notification uri format. expected eg \"ev1,ev2 uri\"")
	}
	var lineErrs []error
	for _, ev := range strings.Split(eventsRaw, ",") {
		ev, uri = strings.TrimSpace(ev), strings.TrimSpace(uri)
		err := n.AddURI(notifications.Event(ev), uri)
		lineErrs = append(lineErrs, err)
	}
	return errors.Join(lineErrs...)
}
func (n notificationsParser) String() string {
	if n.Notifications == nil {
		return ""
	}
	var parts []string
	n.Notifications.IterMappings(func(e notifications.Event, uri string) {
		url, _ := url.Parse(uri)
		parts = append(parts, fmt.Sprintf("%s: %s://%s/...", e, url.Scheme, url.Host))
	})
	return strings.Join(parts, ", ")
}

type researchLinkParser struct{ *researchlink.Builder }

func (r *researchLinkParser) Set(value string) error {
	name, value, _ := strings.Cut(value, " ")
	name, value = strings.TrimSpace(name), strings.TrimSpace(value)
	return r.AddSource(name, value)
}
func (r researchLinkParser) String() string {
	if r.Builder == nil {
		return ""
	}
	var names []string
	for name := range r.IterSources() {
		names = append(names, name)
	}
	return strings.Join(names, ", ")
}

type hooksParser struct{ hooks *[]hook.Hook }

func (h *hooksParser) Set(value string) error {
	name, conf, _ := strings.Cut(value, " ")
	hk, err := hook.New(strings.TrimSpace(name), strings.TrimSpace(conf))
	if err != nil {
		return fmt.Errorf("hook %q: %w", name, err)
	}
	*h.hooks = append(*h.hooks, hk)
	return nil
}
func (h hooksParser) String() string {
	if h.hooks == nil {
		return ""
	}
	var parts []string
	for _, hk := range *h.hooks {
		parts = append(parts, fmt.Sprint(hk))
	}
	return strings.Join(parts, ", ")
}

type fieldsParser struct{ fields *[]string }

func (f *fieldsParser) Set(value string) error {
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*f.fields = append(*f.fields, part)
		}
	}
	return nil
}
func (f fieldsParser) String() string {
	if f.fields == nil {
		return ""
	}
	return strings.Join(*f.fields, ", ")
}

type genreAliasesParser struct{ aliases *book.GenreAliases }

func (g *genreAliasesParser) Set(value string) error {
	aliases, err := book.LoadGenreAliases(value)
	if err != nil {
		return fmt.Errorf("load genre aliases: %w", err)
	}
	*g.aliases = aliases
	return nil
}
func (g genreAliasesParser) String() string {
	if g.aliases == nil || len(*g.aliases) == 0 {
		return ""
	}
	return fmt.Sprintf("%d aliases", len(*g.aliases))
}
