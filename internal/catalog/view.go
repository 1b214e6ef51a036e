package catalog

import (
	"math"
	"sort"
	"strings"

	"github.com/carelib/carelib/internal/progress"
)

const (
	BadgeMustWatch = "must-watch"
	BadgeWatched   = "watched"
)

// startHereMarker flags the item a topic's viewer should begin with when the
// publisher tags one via its custom badge text. Matched case-insensitively.
const startHereMarker = "start here"

type Row struct {
	Item    Item     `json:"item"`
	Badges  []string `json:"badges"`
	Watched bool     `json:"watched"`
}

type View struct {
	Topic          string `json:"topic"`
	Rows           []Row  `json:"rows"`
	Total          int    `json:"total"`
	WatchedCount   int    `json:"watchedCount"`
	Percent        int    `json:"percent"`
	MustWatchTotal int    `json:"mustWatchTotal"`
	MustWatchSeen  int    `json:"mustWatchSeen"`
}

// TopicItems returns the items of a topic in display order: category match,
// ascending order key, stable for ties. Items referencing unknown categories
// never match any topic and so never surface.
func TopicItems(c *Catalog, topicKey string) []Item {
	items := make([]Item, 0)
	for _, it := range c.Items {
		if it.Category == topicKey {
			items = append(items, it)
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Order < items[j].Order
	})
	return items
}

// BuildView derives the display rows and progress counters for a topic.
// Pure: neither the catalog nor the progress snapshot is mutated.
func BuildView(c *Catalog, pr progress.Progress, topicKey, searchText string) View {
	items := TopicItems(c, topicKey)

	if q := strings.ToLower(strings.TrimSpace(searchText)); q != "" {
		kept := items[:0:0]
		for _, it := range items {
			hay := strings.ToLower(it.Title + " " + it.Note + " " + strings.Join(it.Tags, " "))
			if strings.Contains(hay, q) {
				kept = append(kept, it)
			}
		}
		items = kept
	}

	view := View{Topic: topicKey, Rows: make([]Row, 0, len(items))}
	for _, it := range items {
		watched := pr.Watched(it.ID)
		badges := make([]string, 0, 3)
		if it.MustWatch {
			badges = append(badges, BadgeMustWatch)
			view.MustWatchTotal++
			if watched {
				view.MustWatchSeen++
			}
		}
		if watched {
			badges = append(badges, BadgeWatched)
			view.WatchedCount++
		}
		if it.Badge != "" {
			badges = append(badges, it.Badge)
		}
		view.Rows = append(view.Rows, Row{Item: it, Badges: badges, Watched: watched})
	}

	view.Total = len(view.Rows)
	if view.Total > 0 {
		view.Percent = int(math.Round(100 * float64(view.WatchedCount) / float64(view.Total)))
	}
	return view
}

// StartItem picks the item a first-time viewer of a topic should open:
// an explicit start-here badge wins, then the first must-watch, then the
// first item in sort order.
func StartItem(items []Item) (Item, bool) {
	for _, it := range items {
		if it.Badge != "" && strings.Contains(strings.ToLower(it.Badge), startHereMarker) {
			return it, true
		}
	}
	for _, it := range items {
		if it.MustWatch {
			return it, true
		}
	}
	if len(items) > 0 {
		return items[0], true
	}
	return Item{}, false
}

// NextItem suggests what to watch next: the first unwatched item after the
// last one opened, else the first unwatched overall, else the first item
// again so a fully watched topic becomes review mode.
func NextItem(items []Item, pr progress.Progress, lastOpened string) (Item, bool) {
	if len(items) == 0 {
		return Item{}, false
	}
	if lastOpened != "" {
		from := -1
		for i, it := range items {
			if it.ID == lastOpened {
				from = i
				break
			}
		}
		if from >= 0 {
			for _, it := range items[from+1:] {
				if !pr.Watched(it.ID) {
					return it, true
				}
			}
		}
	}
	for _, it := range items {
		if !pr.Watched(it.ID) {
			return it, true
		}
	}
	return items[0], true
}
