package core

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Wildcard matches every value in a filter dimension.
const Wildcard = "all"

// collationLang drives name sorting. The dashboard is a de-DE product, so
// umlauts sort the German way.
var collationLang = language.German

// Sort keys accepted by View. Anything else leaves the input order intact.
const (
	SortNameAsc   = "name-asc"
	SortNameDesc  = "name-desc"
	SortPriceAsc  = "price-asc"
	SortPriceDesc = "price-desc"
	SortDateAsc   = "date-asc"
)

// ViewOptions are the user-supplied predicate and ordering criteria for the
// list display. Empty fields (or Wildcard) disable the respective filter.
type ViewOptions struct {
	Search        string
	Category      string
	Type          string // "recurring", "one_time" or Wildcard
	Status        string // "active", "paused" or Wildcard
	PaymentMethod string
	Sort          string
}

// View applies the AND-composed filters and the requested ordering to the
// record set and returns a fresh slice; the input is never mutated.
func View(subs []Subscription, opts ViewOptions) []Subscription {
	search := strings.ToLower(strings.TrimSpace(opts.Search))

	out := make([]Subscription, 0, len(subs))
	for _, s := range subs {
		if search != "" && !strings.Contains(strings.ToLower(s.Name), search) {
			continue
		}
		if !matchesWildcard(opts.Category, s.Category) {
			continue
		}
		if !matchesWildcard(opts.PaymentMethod, s.PaymentMethod) {
			continue
		}
		switch opts.Type {
		case "recurring":
			if s.Cycle == OneTime {
				continue
			}
		case "one_time":
			if s.Cycle != OneTime {
				continue
			}
		}
		switch opts.Status {
		case "active":
			if !s.Active {
				continue
			}
		case "paused":
			if s.Active {
				continue
			}
		}
		out = append(out, s)
	}

	sortView(out, opts.Sort)
	return out
}

func matchesWildcard(want, got string) bool {
	return want == "" || want == Wildcard || want == got
}

func sortView(subs []Subscription, key string) {
	switch key {
	case SortNameAsc, SortNameDesc:
		// Name ordering is locale-aware; the dashboard's de-DE locale
		// fixes the collation language. A collator is not safe for
		// concurrent use, so each pass builds its own.
		coll := collate.New(collationLang, collate.IgnoreCase)
		sort.SliceStable(subs, func(i, j int) bool {
			c := coll.CompareString(subs[i].Name, subs[j].Name)
			if key == SortNameDesc {
				return c > 0
			}
			return c < 0
		})
	case SortPriceAsc:
		sort.SliceStable(subs, func(i, j int) bool {
			return subs[i].Price.Cents < subs[j].Price.Cents
		})
	case SortPriceDesc:
		sort.SliceStable(subs, func(i, j int) bool {
			return subs[i].Price.Cents > subs[j].Price.Cents
		})
	case SortDateAsc:
		// Unknown dates sort last.
		sort.SliceStable(subs, func(i, j int) bool {
			di, dj := subs[i].NextPayment, subs[j].NextPayment
			if !di.Known() {
				return false
			}
			if !dj.Known() {
				return true
			}
			return di.Time.Before(dj.Time)
		})
	}
}
