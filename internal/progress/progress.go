package progress

import (
	"encoding/json"
	"sort"
)

// Progress is the per-device watch record. The persisted JSON shape matches
// the document the mini-app historically kept in local storage:
// {"watched":[...],"lastByTopic":{...}}.
type Progress struct {
	WatchedIDs map[string]bool
	LastOpened map[string]string
}

func Empty() Progress {
	return Progress{
		WatchedIDs: make(map[string]bool),
		LastOpened: make(map[string]string),
	}
}

func (p Progress) Watched(itemID string) bool {
	return p.WatchedIDs[itemID]
}

// LastOpenedIn returns the most recently opened item id for a topic.
func (p Progress) LastOpenedIn(categoryKey string) string {
	return p.LastOpened[categoryKey]
}

type progressDoc struct {
	Watched     []string          `json:"watched"`
	LastByTopic map[string]string `json:"lastByTopic"`
}

func (p Progress) MarshalJSON() ([]byte, error) {
	doc := progressDoc{
		Watched:     make([]string, 0, len(p.WatchedIDs)),
		LastByTopic: p.LastOpened,
	}
	for id := range p.WatchedIDs {
		doc.Watched = append(doc.Watched, id)
	}
	sort.Strings(doc.Watched)
	if doc.LastByTopic == nil {
		doc.LastByTopic = map[string]string{}
	}
	return json.Marshal(doc)
}

func (p *Progress) UnmarshalJSON(data []byte) error {
	var doc progressDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	*p = Empty()
	for _, id := range doc.Watched {
		if id != "" {
			p.WatchedIDs[id] = true
		}
	}
	for k, v := range doc.LastByTopic {
		p.LastOpened[k] = v
	}
	return nil
}
