package catalog

import (
	"strings"
	"testing"
)

const sampleDoc = `{
	"appTitle": "คลิปความรู้สำหรับผู้ป่วย",
	"categories": [
		{"key": "preop", "label": "ก่อนผ่าตัด", "emoji": "🏥", "tip": "ดูให้ครบก่อนวันนัด"},
		{"key": "home", "label": "ดูแลที่บ้าน"}
	],
	"videos": [
		{"id": "pre-02", "category": "preop", "title": "การเตรียมตัวก่อนผ่าตัด", "order": 2, "driveId": "d-pre-02"},
		{"id": "pre-01", "category": "preop", "title": "งดน้ำงดอาหาร", "order": 1, "mustWatch": true, "driveId": "d-pre-01"},
		{"id": "home-01", "category": "home", "title": "ล้างแผลที่บ้าน", "tags": ["แผล", "ทำแผล"], "driveId": "d-home-01"}
	],
	"contacts": {"nursePhone": "021234567", "oaLineId": "@clinic"}
}`

func TestParseSampleDocument(t *testing.T) {
	cat, err := Parse([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	if cat.AppTitle != "คลิปความรู้สำหรับผู้ป่วย" {
		t.Errorf("unexpected app title %q", cat.AppTitle)
	}
	if len(cat.Categories) != 2 || len(cat.Items) != 3 {
		t.Fatalf("expected 2 categories and 3 items, got %d and %d", len(cat.Categories), len(cat.Items))
	}
	if cat.Contacts == nil || cat.Contacts.OALineID != "@clinic" {
		t.Errorf("contacts not parsed: %+v", cat.Contacts)
	}
}

func TestParseDefaultsMissingOrder(t *testing.T) {
	cat, err := Parse([]byte(sampleDoc))
	if err != nil {
		t.Fatal(err)
	}

	item, found := cat.Item("home-01")
	if !found {
		t.Fatal("home-01 not found")
	}
	if item.Order != DefaultOrder {
		t.Errorf("expected missing order to default to %d, got %d", DefaultOrder, item.Order)
	}

	// An explicit order, even a low one, must survive the defaulting pass.
	item, _ = cat.Item("pre-01")
	if item.Order != 1 {
		t.Errorf("expected explicit order 1, got %d", item.Order)
	}
}

func TestParseKeepsExplicitZeroOrder(t *testing.T) {
	doc := `{
		"categories": [{"key": "a", "label": "A"}],
		"videos": [{"id": "x", "category": "a", "title": "t", "order": 0, "driveId": "d"}]
	}`
	cat, err := Parse([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	item, _ := cat.Item("x")
	if item.Order != 0 {
		t.Errorf(`expected "order": 0 to be kept, got %d`, item.Order)
	}
}

func TestParseNormalizesNilTags(t *testing.T) {
	cat, err := Parse([]byte(sampleDoc))
	if err != nil {
		t.Fatal(err)
	}
	item, _ := cat.Item("pre-01")
	if item.Tags == nil {
		t.Error("expected absent tags to decode as empty slice, got nil")
	}
}

func TestParseRejectsInvalidDocuments(t *testing.T) {
	cases := []struct {
		name    string
		doc     string
		errPart string
	}{
		{"not json", `{`, "parse catalog"},
		{"no categories", `{"categories": [], "videos": []}`, "no categories"},
		{"empty category key", `{"categories": [{"key": "", "label": "x"}]}`, "empty key"},
		{
			"duplicate category key",
			`{"categories": [{"key": "a", "label": "1"}, {"key": "a", "label": "2"}]}`,
			"duplicate category",
		},
		{
			"duplicate item id",
			`{"categories": [{"key": "a", "label": "1"}],
			  "videos": [{"id": "x", "category": "a", "title": "t", "driveId": "d"},
			             {"id": "x", "category": "a", "title": "t2", "driveId": "d2"}]}`,
			"duplicate item",
		},
		{
			"empty item id",
			`{"categories": [{"key": "a", "label": "1"}],
			  "videos": [{"id": "", "category": "a", "title": "t", "driveId": "d"}]}`,
			"empty id",
		},
		{
			"oversized title",
			`{"categories": [{"key": "a", "label": "1"}],
			  "videos": [{"id": "x", "category": "a", "title": "` + strings.Repeat("y", 600) + `", "driveId": "d"}]}`,
			"title",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc))
			if err == nil {
				t.Fatal("expected parse to fail")
			}
			if !strings.Contains(err.Error(), tc.errPart) {
				t.Errorf("expected error containing %q, got %q", tc.errPart, err.Error())
			}
		})
	}
}

func TestCategoryLookups(t *testing.T) {
	cat, err := Parse([]byte(sampleDoc))
	if err != nil {
		t.Fatal(err)
	}

	if !cat.HasCategory("home") {
		t.Error("expected home to be a known category")
	}
	if cat.HasCategory("missing") {
		t.Error("expected missing to be unknown")
	}
	if got := cat.DefaultCategory(); got != "preop" {
		t.Errorf("expected first category as default, got %q", got)
	}

	c, found := cat.Category("preop")
	if !found || c.Tip != "ดูให้ครบก่อนวันนัด" {
		t.Errorf("category lookup failed: %+v found=%v", c, found)
	}

	if _, found := cat.Item("nope"); found {
		t.Error("expected unknown item lookup to report not found")
	}
}
