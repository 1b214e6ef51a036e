// Package geoip annotates watch events with a coarse location. The database
// is optional: without one every lookup resolves to an empty location.
package geoip

import (
	"log/slog"
	"net"

	"github.com/oschwald/maxminddb-golang"
)

type Location struct {
	Country string
	City    string
}

type Resolver struct {
	db *maxminddb.Reader
}

type record struct {
	Country struct {
		ISOCode string `maxminddb:"iso_code"`
	} `maxminddb:"country"`
	City struct {
		Names map[string]string `maxminddb:"names"`
	} `maxminddb:"city"`
}

// New opens a MaxMind database at dbPath. An empty path or an unreadable
// file disables geolocation instead of failing startup.
func New(dbPath string) (*Resolver, error) {
	if dbPath == "" {
		return &Resolver{}, nil
	}
	db, err := maxminddb.Open(dbPath)
	if err != nil {
		slog.Warn("geoip: failed to open database, geolocation disabled", "path", dbPath, "error", err)
		return &Resolver{}, nil
	}
	slog.Info("geoip: loaded database", "path", dbPath)
	return &Resolver{db: db}, nil
}

func (r *Resolver) Locate(ipStr string) Location {
	if r.db == nil || ipStr == "" {
		return Location{}
	}
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return Location{}
	}
	var rec record
	if err := r.db.Lookup(ip, &rec); err != nil {
		return Location{}
	}
	return Location{Country: rec.Country.ISOCode, City: rec.City.Names["en"]}
}

func (r *Resolver) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
