package catalog

import (
	"encoding/json"
	"fmt"

	"github.com/carelib/carelib/internal/validate"
)

// DefaultOrder is the sort key applied to items that do not declare one.
// Items without an explicit order sort after every explicitly ordered item.
const DefaultOrder = 999

type Category struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Emoji string `json:"emoji,omitempty"`
	Tip   string `json:"tip,omitempty"`
}

type Item struct {
	ID        string   `json:"id"`
	Category  string   `json:"category"`
	Title     string   `json:"title"`
	Note      string   `json:"note,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	Duration  string   `json:"duration,omitempty"`
	Order     int      `json:"order,omitempty"`
	MustWatch bool     `json:"mustWatch,omitempty"`
	Badge     string   `json:"badge,omitempty"`
	MediaID   string   `json:"driveId"`
}

type Contacts struct {
	NursePhone     string `json:"nursePhone,omitempty"`
	OALineID       string `json:"oaLineId,omitempty"`
	PresetChatText string `json:"presetChatText,omitempty"`
}

// Catalog is the dataset document: loaded once, immutable for the lifetime
// of a load. The wire format matches the data.json the mini-app consumes,
// where the item list is published under "videos".
type Catalog struct {
	AppTitle   string     `json:"appTitle"`
	Categories []Category `json:"categories"`
	Items      []Item     `json:"videos"`
	Contacts   *Contacts  `json:"contacts,omitempty"`
}

type itemOrder struct {
	Order *int `json:"order"`
}

// Parse decodes a dataset document and applies field defaults so downstream
// consumers always see fully populated records.
func Parse(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := json.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	// A second, narrow pass distinguishes "order": 0 from an absent order.
	var raw struct {
		Items []itemOrder `json:"videos"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse catalog orders: %w", err)
	}

	for i := range cat.Items {
		if i < len(raw.Items) && raw.Items[i].Order == nil {
			cat.Items[i].Order = DefaultOrder
		}
		if cat.Items[i].Tags == nil {
			cat.Items[i].Tags = []string{}
		}
	}

	if err := cat.validate(); err != nil {
		return nil, err
	}
	return &cat, nil
}

func (c *Catalog) validate() error {
	if len(c.Categories) == 0 {
		return fmt.Errorf("catalog has no categories")
	}
	if msg := validate.AppTitle(c.AppTitle); msg != "" {
		return fmt.Errorf("catalog: %s", msg)
	}
	seen := make(map[string]bool, len(c.Categories))
	for _, cat := range c.Categories {
		if cat.Key == "" {
			return fmt.Errorf("catalog category with empty key")
		}
		if seen[cat.Key] {
			return fmt.Errorf("duplicate category key %q", cat.Key)
		}
		seen[cat.Key] = true
		for _, msg := range []string{validate.CategoryLabel(cat.Label), validate.Tip(cat.Tip)} {
			if msg != "" {
				return fmt.Errorf("category %q: %s", cat.Key, msg)
			}
		}
	}
	ids := make(map[string]bool, len(c.Items))
	for _, it := range c.Items {
		if it.ID == "" {
			return fmt.Errorf("catalog item with empty id")
		}
		if ids[it.ID] {
			return fmt.Errorf("duplicate item id %q", it.ID)
		}
		ids[it.ID] = true
		checks := []string{validate.Title(it.Title), validate.Note(it.Note), validate.Badge(it.Badge)}
		for _, tag := range it.Tags {
			checks = append(checks, validate.Tag(tag))
		}
		for _, msg := range checks {
			if msg != "" {
				return fmt.Errorf("item %q: %s", it.ID, msg)
			}
		}
	}
	return nil
}

// HasCategory reports whether key names a known category.
func (c *Catalog) HasCategory(key string) bool {
	for _, cat := range c.Categories {
		if cat.Key == key {
			return true
		}
	}
	return false
}

// Category returns the category for key, if present.
func (c *Catalog) Category(key string) (Category, bool) {
	for _, cat := range c.Categories {
		if cat.Key == key {
			return cat, true
		}
	}
	return Category{}, false
}

// DefaultCategory is the startup fallback when a deep link names no topic
// or an unknown one.
func (c *Catalog) DefaultCategory() string {
	if len(c.Categories) == 0 {
		return ""
	}
	return c.Categories[0].Key
}

// Item returns the item with the given id, if present.
func (c *Catalog) Item(id string) (Item, bool) {
	for _, it := range c.Items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}
