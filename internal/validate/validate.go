// Package validate holds the text field length limits for the dataset
// document — single source of truth for the backend and the editing tools.
package validate

import "fmt"

const (
	MaxAppTitleLength   = 200
	MaxTitleLength      = 500
	MaxNoteLength       = 2000
	MaxCategoryLabelLen = 100
	MaxTipLength        = 1000
	MaxTagLength        = 50
	MaxBadgeLength      = 50
	MaxSearchLength     = 200
	MaxPresetTextLength = 500
)

func checkLen(value string, max int, field string) string {
	if len(value) > max {
		return fmt.Sprintf("%s must be %d characters or fewer", field, max)
	}
	return ""
}

func AppTitle(s string) string      { return checkLen(s, MaxAppTitleLength, "app title") }
func Title(s string) string         { return checkLen(s, MaxTitleLength, "title") }
func Note(s string) string          { return checkLen(s, MaxNoteLength, "note") }
func CategoryLabel(s string) string { return checkLen(s, MaxCategoryLabelLen, "category label") }
func Tip(s string) string           { return checkLen(s, MaxTipLength, "tip") }
func Tag(s string) string           { return checkLen(s, MaxTagLength, "tag") }
func Badge(s string) string         { return checkLen(s, MaxBadgeLength, "badge") }
func SearchText(s string) string    { return checkLen(s, MaxSearchLength, "search text") }
func PresetText(s string) string    { return checkLen(s, MaxPresetTextLength, "preset chat text") }

// FieldLimits returns the field name to max length map for the /api/limits
// endpoint.
func FieldLimits() map[string]int {
	return map[string]int{
		"appTitle":       MaxAppTitleLength,
		"title":          MaxTitleLength,
		"note":           MaxNoteLength,
		"categoryLabel":  MaxCategoryLabelLen,
		"tip":            MaxTipLength,
		"tag":            MaxTagLength,
		"badge":          MaxBadgeLength,
		"searchText":     MaxSearchLength,
		"presetChatText": MaxPresetTextLength,
	}
}
