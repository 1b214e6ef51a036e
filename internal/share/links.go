// Package share builds the outbound links the mini-app hands to the LINE
// client: Drive viewer URLs for the hosted clips, prefilled share messages,
// and deep links back into the library.
package share

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/carelib/carelib/internal/liff"
)

// DriveViewURL is the standalone viewer page for a hosted clip.
func DriveViewURL(mediaID string) string {
	return fmt.Sprintf("https://drive.google.com/file/d/%s/view", url.PathEscape(mediaID))
}

// DrivePreviewURL is the embeddable inline player for a hosted clip.
func DrivePreviewURL(mediaID string) string {
	return fmt.Sprintf("https://drive.google.com/file/d/%s/preview", url.PathEscape(mediaID))
}

// ShareMessageURL opens the LINE share sheet with a prefilled text. Works
// without the LIFF SDK in most LINE versions.
func ShareMessageURL(text string) string {
	return "https://line.me/R/share?text=" + url.QueryEscape(text)
}

// OAMessageURL opens a chat with the clinic's official account, prefilled
// with text. The "@" in OA ids must be percent-encoded.
func OAMessageURL(oaLineID, presetText string) string {
	return fmt.Sprintf("https://line.me/R/oaMessage/%s/?%s",
		url.QueryEscape(oaLineID), url.QueryEscape(presetText))
}

// TelURL builds a tel: link, or empty when no phone is configured.
func TelURL(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return ""
	}
	return "tel:" + phone
}

// Builder constructs deep links for a deployment: plain web links against
// the service's base URL and liff.state-wrapped links through the LIFF id.
type Builder struct {
	BaseURL string
	LiffID  string
}

// TopicLink is a shareable address restoring a topic view.
func (b Builder) TopicLink(topic string) string {
	link, err := liff.SetParams(b.BaseURL, map[string]string{"topic": topic, "v": ""})
	if err != nil {
		return b.BaseURL
	}
	return link
}

// ItemLink is a shareable address restoring a topic view with an item open.
func (b Builder) ItemLink(topic, itemID string) string {
	link, err := liff.SetParams(b.BaseURL, map[string]string{"topic": topic, "v": itemID})
	if err != nil {
		return b.BaseURL
	}
	return link
}

// LiffLink wraps a topic/item deep link in the liff.state indirection so it
// opens inside the LINE mini-browser. Falls back to the plain link when no
// LIFF id is configured.
func (b Builder) LiffLink(topic, itemID string) string {
	if b.LiffID == "" {
		return b.ItemLink(topic, itemID)
	}
	state := liff.StateValue(topic, itemID)
	return fmt.Sprintf("https://liff.line.me/%s?liff.state=%s",
		url.PathEscape(b.LiffID), url.QueryEscape(state))
}

// TopicShareText is the prefilled message recommending a topic.
func (b Builder) TopicShareText(topicLabel, topic string) string {
	return fmt.Sprintf("หัวข้อ: %s\n%s", topicLabel, b.TopicLink(topic))
}

// ItemShareText is the prefilled message recommending a single clip.
func (b Builder) ItemShareText(itemTitle, topic, itemID string) string {
	return fmt.Sprintf("แนะนำคลิป: %s\n%s", itemTitle, b.ItemLink(topic, itemID))
}
