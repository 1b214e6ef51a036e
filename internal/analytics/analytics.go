// Package analytics records watch events so the clinic can see which clips
// reach patients and through which client. Recording is fire-and-forget:
// a failed insert never affects the viewer.
package analytics

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"github.com/carelib/carelib/internal/database"
	"github.com/carelib/carelib/internal/geoip"
)

const (
	KindOpen    = "open"
	KindWatched = "watched"
)

type Event struct {
	DeviceID    string
	ItemID      string
	CategoryKey string
	Kind        string
	IP          string
	UserAgent   string
}

type Recorder struct {
	db  database.DBTX
	geo *geoip.Resolver
}

func NewRecorder(db database.DBTX, geo *geoip.Resolver) *Recorder {
	return &Recorder{db: db, geo: geo}
}

// Record inserts one watch event. Best-effort: errors are logged only.
func (r *Recorder) Record(ctx context.Context, ev Event) {
	loc := geoip.Location{}
	if r.geo != nil {
		loc = r.geo.Locate(ev.IP)
	}
	browser, line := classifyClient(ev.UserAgent)

	if _, err := r.db.Exec(ctx,
		`INSERT INTO watch_events (device_id, item_id, category_key, event, country, city, browser, line_client)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		ev.DeviceID, ev.ItemID, ev.CategoryKey, ev.Kind, loc.Country, loc.City, browser, line,
	); err != nil {
		slog.Error("analytics: failed to record watch event", "item_id", ev.ItemID, "event", ev.Kind, "error", err)
	}
}

// classifyClient extracts the browser name and whether the request came
// from the LINE in-app browser, which tags its user agent with "Line/".
func classifyClient(uaString string) (browser string, lineClient bool) {
	if uaString == "" {
		return "", false
	}
	lineClient = strings.Contains(uaString, "Line/")
	ua := useragent.New(uaString)
	browser, _ = ua.Browser()
	if lineClient {
		browser = "LINE"
	}
	return browser, lineClient
}

// ClientIP pulls the originating address, preferring the proxy header the
// deployment sits behind.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type CountByKey struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

type Summary struct {
	TotalOpens      int64        `json:"totalOpens"`
	UniqueDevices   int64        `json:"uniqueDevices"`
	AutoWatched     int64        `json:"autoWatched"`
	LineClientOpens int64        `json:"lineClientOpens"`
	TopItems        []CountByKey `json:"topItems"`
	Countries       []CountByKey `json:"countries"`
	Browsers        []CountByKey `json:"browsers"`
}

// Summarize aggregates the recorded events for the admin view.
func (r *Recorder) Summarize(ctx context.Context) (Summary, error) {
	var s Summary

	err := r.db.QueryRow(ctx,
		`SELECT
			COUNT(*) FILTER (WHERE event = 'open'),
			COUNT(DISTINCT device_id),
			COUNT(*) FILTER (WHERE event = 'watched'),
			COUNT(*) FILTER (WHERE event = 'open' AND line_client)
		 FROM watch_events`,
	).Scan(&s.TotalOpens, &s.UniqueDevices, &s.AutoWatched, &s.LineClientOpens)
	if err != nil {
		return Summary{}, err
	}

	for _, q := range []struct {
		sql  string
		dest *[]CountByKey
	}{
		{`SELECT item_id, COUNT(*) FROM watch_events WHERE event = 'open'
		  GROUP BY item_id ORDER BY COUNT(*) DESC, item_id LIMIT 10`, &s.TopItems},
		{`SELECT country, COUNT(*) FROM watch_events WHERE event = 'open' AND country <> ''
		  GROUP BY country ORDER BY COUNT(*) DESC, country LIMIT 10`, &s.Countries},
		{`SELECT browser, COUNT(*) FROM watch_events WHERE event = 'open' AND browser <> ''
		  GROUP BY browser ORDER BY COUNT(*) DESC, browser LIMIT 10`, &s.Browsers},
	} {
		rows, err := r.db.Query(ctx, q.sql)
		if err != nil {
			return Summary{}, err
		}
		for rows.Next() {
			var c CountByKey
			if err := rows.Scan(&c.Key, &c.Count); err != nil {
				rows.Close()
				return Summary{}, err
			}
			*q.dest = append(*q.dest, c)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return Summary{}, err
		}
	}

	return s, nil
}
