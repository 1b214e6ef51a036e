package progress

import (
	"encoding/json"
	"testing"
)

func TestMarshalProducesStableDocument(t *testing.T) {
	p := Empty()
	p.WatchedIDs["b"] = true
	p.WatchedIDs["a"] = true
	p.LastOpened["preop"] = "a"

	raw, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}

	expected := `{"watched":["a","b"],"lastByTopic":{"preop":"a"}}`
	if string(raw) != expected {
		t.Errorf("expected %s, got %s", expected, raw)
	}
}

func TestMarshalEmptyProgress(t *testing.T) {
	raw, err := json.Marshal(Empty())
	if err != nil {
		t.Fatal(err)
	}
	expected := `{"watched":[],"lastByTopic":{}}`
	if string(raw) != expected {
		t.Errorf("expected %s, got %s", expected, raw)
	}
}

func TestUnmarshalRoundTrip(t *testing.T) {
	doc := `{"watched":["x","y",""],"lastByTopic":{"home":"x"}}`

	var p Progress
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		t.Fatal(err)
	}

	if !p.Watched("x") || !p.Watched("y") {
		t.Error("expected x and y to be watched")
	}
	if p.Watched("") {
		t.Error("empty ids must be dropped")
	}
	if p.LastOpenedIn("home") != "x" {
		t.Errorf("expected last opened x, got %q", p.LastOpenedIn("home"))
	}
	if p.LastOpenedIn("preop") != "" {
		t.Error("expected empty last opened for unknown topic")
	}
}

func TestUnmarshalToleratesMissingFields(t *testing.T) {
	var p Progress
	if err := json.Unmarshal([]byte(`{}`), &p); err != nil {
		t.Fatal(err)
	}
	if p.WatchedIDs == nil || p.LastOpened == nil {
		t.Error("maps must be initialized even for an empty document")
	}
}
