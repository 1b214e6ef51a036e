package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteJSONHeadersAndStatus(t *testing.T) {
	for _, status := range []int{http.StatusOK, http.StatusCreated, http.StatusBadRequest, http.StatusInternalServerError} {
		rec := httptest.NewRecorder()
		WriteJSON(rec, status, map[string]string{"topic": "preop"})

		if rec.Code != status {
			t.Errorf("expected status %d, got %d", status, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected Content-Type application/json, got %s", ct)
		}
	}
}

func TestWriteJSONEncodesStruct(t *testing.T) {
	type clip struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}

	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusOK, clip{ID: "preop-01", Title: "Fasting rules"})

	var decoded clip
	if err := json.NewDecoder(rec.Body).Decode(&decoded); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if decoded.ID != "preop-01" || decoded.Title != "Fasting rules" {
		t.Errorf("unexpected round trip: %+v", decoded)
	}
}

func TestWriteJSONEncodesSlice(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusOK, []string{"preop", "home", "recovery"})

	var decoded []string
	if err := json.NewDecoder(rec.Body).Decode(&decoded); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	if len(decoded) != 3 || decoded[0] != "preop" || decoded[2] != "recovery" {
		t.Errorf("unexpected slice contents: %v", decoded)
	}
}

func TestWriteErrorEnvelope(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		message string
	}{
		{"not found", http.StatusNotFound, "no clip with that id"},
		{"unauthorized", http.StatusUnauthorized, "device token required"},
		{"conflict", http.StatusConflict, "no clip is open"},
		{"empty message", http.StatusBadRequest, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, tc.status, tc.message)

			if rec.Code != tc.status {
				t.Errorf("expected status %d, got %d", tc.status, rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected Content-Type application/json, got %s", ct)
			}

			var decoded ErrorBody
			if err := json.NewDecoder(rec.Body).Decode(&decoded); err != nil {
				t.Fatalf("failed to decode response body: %v", err)
			}
			if decoded.Error != tc.message {
				t.Errorf("expected error %q, got %q", tc.message, decoded.Error)
			}
		})
	}
}
