// Package library exposes the clip library over HTTP: the catalog, per-device
// topic views, playback session operations, and share payloads.
package library

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/carelib/carelib/internal/analytics"
	"github.com/carelib/carelib/internal/catalog"
	"github.com/carelib/carelib/internal/device"
	"github.com/carelib/carelib/internal/httputil"
	"github.com/carelib/carelib/internal/liff"
	"github.com/carelib/carelib/internal/playback"
	"github.com/carelib/carelib/internal/progress"
	"github.com/carelib/carelib/internal/share"
)

type Handler struct {
	loader   *catalog.Loader
	store    *progress.Store
	manager  *playback.Manager
	recorder *analytics.Recorder
	links    share.Builder
}

func NewHandler(loader *catalog.Loader, store *progress.Store, manager *playback.Manager, links share.Builder) *Handler {
	return &Handler{loader: loader, store: store, manager: manager, links: links}
}

func (h *Handler) SetRecorder(r *analytics.Recorder) {
	h.recorder = r
}

// catalogOr503 resolves the loaded catalog or writes the terminal load
// status. A failed one-time load renders as a human-readable message, not a
// retry loop.
func (h *Handler) catalogOr503(w http.ResponseWriter) (*catalog.Catalog, bool) {
	cat, err := h.loader.Current()
	if err != nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, "video library is unavailable: "+err.Error())
		return nil, false
	}
	return cat, true
}

func (h *Handler) selector(r *http.Request, cat *catalog.Catalog) *playback.Selector {
	address := r.URL.Query().Get("url")
	if address == "" {
		address = h.links.BaseURL
	}
	return h.manager.ForDevice(r.Context(), cat, device.IDFromContext(r.Context()), address)
}

type categoryPayload struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Emoji string `json:"emoji,omitempty"`
	Tip   string `json:"tip,omitempty"`
}

type contactsPayload struct {
	NursePhone   string `json:"nursePhone,omitempty"`
	TelURL       string `json:"telUrl,omitempty"`
	OALineID     string `json:"oaLineId,omitempty"`
	OAMessageURL string `json:"oaMessageUrl,omitempty"`
}

type catalogResponse struct {
	AppTitle   string            `json:"appTitle"`
	Categories []categoryPayload `json:"categories"`
	Contacts   *contactsPayload  `json:"contacts,omitempty"`
}

// Catalog serves the dataset header the mini-app renders before any topic
// is picked: title, category selector entries, and contact links.
func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	cat, ok := h.catalogOr503(w)
	if !ok {
		return
	}

	resp := catalogResponse{AppTitle: cat.AppTitle}
	for _, c := range cat.Categories {
		resp.Categories = append(resp.Categories, categoryPayload(c))
	}
	if cat.Contacts != nil {
		contacts := &contactsPayload{
			NursePhone: cat.Contacts.NursePhone,
			TelURL:     share.TelURL(cat.Contacts.NursePhone),
			OALineID:   cat.Contacts.OALineID,
		}
		if cat.Contacts.OALineID != "" {
			preset := cat.Contacts.PresetChatText
			if preset == "" {
				preset = "ขอปรึกษาอาการ/การดูแลค่ะ/ครับ"
			}
			contacts.OAMessageURL = share.OAMessageURL(cat.Contacts.OALineID, preset)
		}
		resp.Contacts = contacts
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

type viewResponse struct {
	catalog.View
	Tip       string `json:"tip,omitempty"`
	Current   string `json:"current,omitempty"`
	Prev      string `json:"prev,omitempty"`
	Next      string `json:"next,omitempty"`
	StartWith string `json:"startWith,omitempty"`
	Address   string `json:"address"`
}

// TopicView selects a topic and returns its filtered, sorted, badge-annotated
// rows plus the progress counters.
func (h *Handler) TopicView(w http.ResponseWriter, r *http.Request) {
	cat, ok := h.catalogOr503(w)
	if !ok {
		return
	}
	sel := h.selector(r, cat)
	topic := sel.SelectTopic(r.Context(), chi.URLParam(r, "key"))

	resp := viewResponse{
		View:    sel.View(r.Context(), r.URL.Query().Get("q")),
		Address: sel.Address(),
	}
	if c, found := cat.Category(topic); found {
		resp.Tip = c.Tip
	}
	if cur, open := sel.Session().Current(); open {
		resp.Current = cur
		resp.Prev, resp.Next = sel.Session().Neighbors()
	}
	if start, found := sel.StartItem(); found {
		resp.StartWith = start.ID
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

type continueResponse struct {
	LastOpened string `json:"lastOpened,omitempty"`
	Suggested  string `json:"suggested,omitempty"`
}

// Continue resolves the "keep watching" targets for a topic: the item last
// opened there and the next suggested one.
func (h *Handler) Continue(w http.ResponseWriter, r *http.Request) {
	cat, ok := h.catalogOr503(w)
	if !ok {
		return
	}
	sel := h.selector(r, cat)
	sel.SelectTopic(r.Context(), chi.URLParam(r, "key"))

	var resp continueResponse
	if it, found := sel.ContinueItem(r.Context()); found {
		resp.LastOpened = it.ID
	}
	if it, found := sel.SuggestedNext(r.Context()); found {
		resp.Suggested = it.ID
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

type openRequest struct {
	ItemID string `json:"itemId"`
}

type openResponse struct {
	ItemID     string `json:"itemId"`
	Title      string `json:"title"`
	PreviewURL string `json:"previewUrl"`
	ViewURL    string `json:"viewUrl"`
	Prev       string `json:"prev,omitempty"`
	Next       string `json:"next,omitempty"`
	Address    string `json:"address"`
}

// Open starts playback of an item and reports the viewer payload: player
// URLs, neighbors, and the updated deep-link address.
func (h *Handler) Open(w http.ResponseWriter, r *http.Request) {
	cat, ok := h.catalogOr503(w)
	if !ok {
		return
	}

	var req openRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	item, found := cat.Item(req.ItemID)
	if !found {
		httputil.WriteError(w, http.StatusNotFound, "clip not found")
		return
	}

	sel := h.selector(r, cat)
	if cat.HasCategory(item.Category) && item.Category != sel.Topic() {
		sel.SelectTopic(r.Context(), item.Category)
	}
	sel.OpenItem(r.Context(), item.ID)

	h.recordEvent(r, item, analytics.KindOpen)

	resp := openResponse{
		ItemID:     item.ID,
		Title:      item.Title,
		PreviewURL: share.DrivePreviewURL(item.MediaID),
		ViewURL:    share.DriveViewURL(item.MediaID),
		Address:    sel.Address(),
	}
	resp.Prev, resp.Next = sel.Session().Neighbors()
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// Close ends playback; a long-enough viewing is caught up as watched.
func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	cat, ok := h.catalogOr503(w)
	if !ok {
		return
	}
	h.selector(r, cat).CloseItem(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

type toggleResponse struct {
	ItemID  string `json:"itemId"`
	Watched bool   `json:"watched"`
}

// ToggleWatched flips the watched mark of the open item.
func (h *Handler) ToggleWatched(w http.ResponseWriter, r *http.Request) {
	cat, ok := h.catalogOr503(w)
	if !ok {
		return
	}
	sel := h.selector(r, cat)
	itemID, open := sel.Session().Current()
	if !open {
		httputil.WriteError(w, http.StatusConflict, "no clip is open")
		return
	}
	watched, err := sel.Session().ToggleWatched(r.Context())
	if err != nil {
		httputil.WriteError(w, http.StatusConflict, "no clip is open")
		return
	}
	if watched {
		if item, found := cat.Item(itemID); found {
			h.recordEvent(r, item, analytics.KindWatched)
		}
	}
	httputil.WriteJSON(w, http.StatusOK, toggleResponse{ItemID: itemID, Watched: watched})
}

type stepResponse struct {
	ItemID  string `json:"itemId"`
	Address string `json:"address"`
}

// Next advances to the neighboring clip in the topic's order.
func (h *Handler) Next(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, true)
}

// Prev steps back to the previous clip in the topic's order.
func (h *Handler) Prev(w http.ResponseWriter, r *http.Request) {
	h.step(w, r, false)
}

func (h *Handler) step(w http.ResponseWriter, r *http.Request, forward bool) {
	cat, ok := h.catalogOr503(w)
	if !ok {
		return
	}
	sel := h.selector(r, cat)
	if _, open := sel.Session().Current(); !open {
		httputil.WriteError(w, http.StatusConflict, "no clip is open")
		return
	}

	itemID, moved := sel.Step(r.Context(), forward)
	if !moved {
		httputil.WriteError(w, http.StatusNotFound, "no neighboring clip")
		return
	}
	if item, found := cat.Item(itemID); found {
		h.recordEvent(r, item, analytics.KindOpen)
	}
	httputil.WriteJSON(w, http.StatusOK, stepResponse{ItemID: itemID, Address: sel.Address()})
}

type selectTopicRequest struct {
	Topic string `json:"topic"`
}

type selectTopicResponse struct {
	Topic   string `json:"topic"`
	Address string `json:"address"`
}

// SelectTopic switches the active topic; unknown keys leave it unchanged.
func (h *Handler) SelectTopic(w http.ResponseWriter, r *http.Request) {
	cat, ok := h.catalogOr503(w)
	if !ok {
		return
	}
	var req selectTopicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sel := h.selector(r, cat)
	topic := sel.SelectTopic(r.Context(), req.Topic)
	httputil.WriteJSON(w, http.StatusOK, selectTopicResponse{Topic: topic, Address: sel.Address()})
}

type resolveResponse struct {
	Name  string `json:"name"`
	Value string `json:"value,omitempty"`
	Found bool   `json:"found"`
}

// Resolve extracts a deep-link parameter from an address, unwrapping the
// liff.state indirection when needed. Used by the mini-app shell on boot.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name := q.Get("name")
	if name == "" {
		httputil.WriteError(w, http.StatusBadRequest, "name is required")
		return
	}
	value, found := liff.Resolve(q.Get("url"), name)
	httputil.WriteJSON(w, http.StatusOK, resolveResponse{Name: name, Value: value, Found: found})
}

type sharePayload struct {
	Link       string `json:"link"`
	LiffLink   string `json:"liffLink"`
	ShareURL   string `json:"shareUrl"`
	Text       string `json:"text"`
	ViewURL    string `json:"viewUrl,omitempty"`
	PreviewURL string `json:"previewUrl,omitempty"`
}

// ShareTopic builds the share payload recommending a whole topic.
func (h *Handler) ShareTopic(w http.ResponseWriter, r *http.Request) {
	cat, ok := h.catalogOr503(w)
	if !ok {
		return
	}
	key := chi.URLParam(r, "key")
	c, found := cat.Category(key)
	if !found {
		httputil.WriteError(w, http.StatusNotFound, "topic not found")
		return
	}
	text := h.links.TopicShareText(c.Label, key)
	httputil.WriteJSON(w, http.StatusOK, sharePayload{
		Link:     h.links.TopicLink(key),
		LiffLink: h.links.LiffLink(key, ""),
		ShareURL: share.ShareMessageURL(text),
		Text:     text,
	})
}

// ShareItem builds the share payload recommending a single clip.
func (h *Handler) ShareItem(w http.ResponseWriter, r *http.Request) {
	cat, ok := h.catalogOr503(w)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	item, found := cat.Item(id)
	if !found {
		httputil.WriteError(w, http.StatusNotFound, "clip not found")
		return
	}
	text := h.links.ItemShareText(item.Title, item.Category, item.ID)
	httputil.WriteJSON(w, http.StatusOK, sharePayload{
		Link:       h.links.ItemLink(item.Category, item.ID),
		LiffLink:   h.links.LiffLink(item.Category, item.ID),
		ShareURL:   share.ShareMessageURL(text),
		Text:       text,
		ViewURL:    share.DriveViewURL(item.MediaID),
		PreviewURL: share.DrivePreviewURL(item.MediaID),
	})
}

// recordEvent logs a watch event off the request path. Fire-and-forget with
// its own deadline.
func (h *Handler) recordEvent(r *http.Request, item catalog.Item, kind string) {
	if h.recorder == nil {
		return
	}
	ev := analytics.Event{
		DeviceID:    device.IDFromContext(r.Context()),
		ItemID:      item.ID,
		CategoryKey: item.Category,
		Kind:        kind,
		IP:          analytics.ClientIP(r),
		UserAgent:   r.UserAgent(),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		h.recorder.Record(ctx, ev)
	}()
}
