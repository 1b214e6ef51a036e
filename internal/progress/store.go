package progress

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/carelib/carelib/internal/database"
)

// Store persists per-device progress documents. Persistence is optional to
// correct operation: reads degrade to an empty record and writes are
// best-effort, so a viewer with an unreachable database still gets a working
// library that simply forgets.
type Store struct {
	db database.DBTX
}

func NewStore(db database.DBTX) *Store {
	return &Store{db: db}
}

// Load returns the stored progress for a device. A missing row, a query
// failure, or a malformed document all yield empty progress, never an error.
func (s *Store) Load(ctx context.Context, deviceID string) Progress {
	var raw []byte
	err := s.db.QueryRow(ctx,
		`SELECT data FROM device_progress WHERE device_id = $1`,
		deviceID,
	).Scan(&raw)
	if err != nil {
		return Empty()
	}

	var p Progress
	if err := json.Unmarshal(raw, &p); err != nil {
		slog.Warn("progress: stored document malformed, starting fresh", "device_id", deviceID, "error", err)
		return Empty()
	}
	return p
}

// Save upserts the progress document. Failures are logged and swallowed;
// the in-memory state keeps working for the rest of the session.
func (s *Store) Save(ctx context.Context, deviceID string, p Progress) {
	raw, err := json.Marshal(p)
	if err != nil {
		slog.Warn("progress: failed to encode document", "device_id", deviceID, "error", err)
		return
	}
	if _, err := s.db.Exec(ctx,
		`INSERT INTO device_progress (device_id, data, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (device_id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		deviceID, raw,
	); err != nil {
		slog.Warn("progress: failed to save document", "device_id", deviceID, "error", err)
	}
}

// MarkWatched adds an item to the watched set. Idempotent.
func (s *Store) MarkWatched(ctx context.Context, deviceID, itemID string) {
	p := s.Load(ctx, deviceID)
	if p.WatchedIDs[itemID] {
		return
	}
	p.WatchedIDs[itemID] = true
	s.Save(ctx, deviceID, p)
}

// ToggleWatched flips watched membership and returns the new state.
func (s *Store) ToggleWatched(ctx context.Context, deviceID, itemID string) bool {
	p := s.Load(ctx, deviceID)
	if p.WatchedIDs[itemID] {
		delete(p.WatchedIDs, itemID)
	} else {
		p.WatchedIDs[itemID] = true
	}
	s.Save(ctx, deviceID, p)
	return p.WatchedIDs[itemID]
}

// SetLastOpened records the most recently opened item for a topic,
// overwriting any previous entry.
func (s *Store) SetLastOpened(ctx context.Context, deviceID, categoryKey, itemID string) {
	p := s.Load(ctx, deviceID)
	p.LastOpened[categoryKey] = itemID
	s.Save(ctx, deviceID, p)
}
