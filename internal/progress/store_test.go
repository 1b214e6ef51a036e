package progress

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
)

const testDeviceID = "device-1234"

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(mock.Close)
	return NewStore(mock), mock
}

func expectLoad(mock pgxmock.PgxPoolIface, doc string) {
	mock.ExpectQuery(`SELECT data FROM device_progress`).
		WithArgs(testDeviceID).
		WillReturnRows(pgxmock.NewRows([]string{"data"}).AddRow([]byte(doc)))
}

func TestLoadReturnsStoredProgress(t *testing.T) {
	store, mock := newMockStore(t)
	expectLoad(mock, `{"watched":["a"],"lastByTopic":{"preop":"a"}}`)

	p := store.Load(context.Background(), testDeviceID)

	if !p.Watched("a") {
		t.Error("expected a to be watched")
	}
	if p.LastOpenedIn("preop") != "a" {
		t.Errorf("unexpected last opened: %q", p.LastOpenedIn("preop"))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestLoadDegradesToEmptyOnQueryError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT data FROM device_progress`).
		WithArgs(testDeviceID).
		WillReturnError(errors.New("connection refused"))

	p := store.Load(context.Background(), testDeviceID)

	if len(p.WatchedIDs) != 0 || len(p.LastOpened) != 0 {
		t.Errorf("expected empty progress, got %+v", p)
	}
}

func TestLoadDegradesToEmptyOnMalformedDocument(t *testing.T) {
	store, mock := newMockStore(t)
	expectLoad(mock, `not-json`)

	p := store.Load(context.Background(), testDeviceID)

	if len(p.WatchedIDs) != 0 {
		t.Errorf("expected empty progress for malformed document, got %+v", p)
	}
}

func TestMarkWatchedPersistsNewItem(t *testing.T) {
	store, mock := newMockStore(t)
	expectLoad(mock, `{"watched":[],"lastByTopic":{}}`)
	mock.ExpectExec(`INSERT INTO device_progress`).
		WithArgs(testDeviceID, []byte(`{"watched":["a"],"lastByTopic":{}}`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	store.MarkWatched(context.Background(), testDeviceID, "a")

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestMarkWatchedIsIdempotent(t *testing.T) {
	store, mock := newMockStore(t)
	// Already watched: the store must not issue a write at all.
	expectLoad(mock, `{"watched":["a"],"lastByTopic":{}}`)

	store.MarkWatched(context.Background(), testDeviceID, "a")

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestToggleWatchedFlipsBothWays(t *testing.T) {
	store, mock := newMockStore(t)

	expectLoad(mock, `{"watched":[],"lastByTopic":{}}`)
	mock.ExpectExec(`INSERT INTO device_progress`).
		WithArgs(testDeviceID, []byte(`{"watched":["a"],"lastByTopic":{}}`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if watched := store.ToggleWatched(context.Background(), testDeviceID, "a"); !watched {
		t.Error("expected first toggle to mark watched")
	}

	expectLoad(mock, `{"watched":["a"],"lastByTopic":{}}`)
	mock.ExpectExec(`INSERT INTO device_progress`).
		WithArgs(testDeviceID, []byte(`{"watched":[],"lastByTopic":{}}`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if watched := store.ToggleWatched(context.Background(), testDeviceID, "a"); watched {
		t.Error("expected second toggle to unmark")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSetLastOpenedOverwrites(t *testing.T) {
	store, mock := newMockStore(t)
	expectLoad(mock, `{"watched":[],"lastByTopic":{"preop":"old"}}`)
	mock.ExpectExec(`INSERT INTO device_progress`).
		WithArgs(testDeviceID, []byte(`{"watched":[],"lastByTopic":{"preop":"new"}}`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	store.SetLastOpened(context.Background(), testDeviceID, "preop", "new")

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSaveSwallowsWriteErrors(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec(`INSERT INTO device_progress`).
		WithArgs(testDeviceID, []byte(`{"watched":[],"lastByTopic":{}}`)).
		WillReturnError(errors.New("write failed"))

	// Must not panic or surface the error.
	store.Save(context.Background(), testDeviceID, Empty())

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
