package repository

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"nostrpush/internal/model"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

// expectLedgerSetup registers the statement sequence Setup runs. When the
// sent_at column already exists the probe short-circuits and no ALTER runs.
func expectLedgerSetup(mock sqlmock.Sqlmock, sentAtExists bool) {
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS notifications").
		WillReturnResult(sqlmock.NewResult(0, 0))

	count := 0
	if sentAtExists {
		count = 1
	}
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM information_schema\.columns`).
		WithArgs("notifications", "sent_at").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(count))

	if !sentAtExists {
		mock.ExpectExec("ALTER TABLE notifications ADD COLUMN sent_at BIGINT").
			WillReturnResult(sqlmock.NewResult(0, 0))
	}

	mock.ExpectExec("CREATE UNIQUE INDEX IF NOT EXISTS notifications_event_pubkey_idx").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS notifications_event_id_idx").
		WillReturnResult(sqlmock.NewResult(0, 0))
}

func TestNotificationLedger_SetupIsIdempotent(t *testing.T) {
	db, mock := newMockDB(t)
	ledger := NewNotificationLedger(db)

	// First run on a fresh database: sent_at is missing and gets added.
	expectLedgerSetup(mock, false)
	if err := ledger.Setup(context.Background()); err != nil {
		t.Fatalf("first Setup: %v", err)
	}

	// Second run: the probe finds the column, nothing is altered.
	expectLedgerSetup(mock, true)
	if err := ledger.Setup(context.Background()); err != nil {
		t.Fatalf("second Setup: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestNotificationLedger_RefusesQueriesBeforeSetup(t *testing.T) {
	db, _ := newMockDB(t)
	ledger := NewNotificationLedger(db)

	if _, err := ledger.AlreadyNotified(context.Background(), "e1"); !errors.Is(err, model.ErrNotSetup) {
		t.Errorf("AlreadyNotified err = %v, want ErrNotSetup", err)
	}
	if _, err := ledger.SubscribersOf(context.Background(), "e1"); !errors.Is(err, model.ErrNotSetup) {
		t.Errorf("SubscribersOf err = %v, want ErrNotSetup", err)
	}
	if err := ledger.RecordNotified(context.Background(), "e1", "bob", 123); !errors.Is(err, model.ErrNotSetup) {
		t.Errorf("RecordNotified err = %v, want ErrNotSetup", err)
	}
}

func TestNotificationLedger_AlreadyNotified(t *testing.T) {
	db, mock := newMockDB(t)
	ledger := NewNotificationLedger(db)

	expectLedgerSetup(mock, true)
	if err := ledger.Setup(context.Background()); err != nil {
		t.Fatalf("Setup: %v", err)
	}

	mock.ExpectQuery("SELECT pubkey FROM notifications").
		WithArgs("e1").
		WillReturnRows(sqlmock.NewRows([]string{"pubkey"}).AddRow("bob").AddRow("carol"))

	pubkeys, err := ledger.AlreadyNotified(context.Background(), "e1")
	if err != nil {
		t.Fatalf("AlreadyNotified: %v", err)
	}
	if want := []string{"bob", "carol"}; !reflect.DeepEqual(pubkeys, want) {
		t.Errorf("pubkeys = %v, want %v (insertion order)", pubkeys, want)
	}

	// No rows is an empty result, never an error.
	mock.ExpectQuery("SELECT pubkey FROM notifications").
		WithArgs("unknown").
		WillReturnRows(sqlmock.NewRows([]string{"pubkey"}))

	pubkeys, err = ledger.AlreadyNotified(context.Background(), "unknown")
	if err != nil {
		t.Fatalf("AlreadyNotified for unknown event: %v", err)
	}
	if len(pubkeys) != 0 {
		t.Errorf("pubkeys = %v, want empty", pubkeys)
	}
}

func TestNotificationLedger_RecordNotifiedUpserts(t *testing.T) {
	db, mock := newMockDB(t)
	ledger := NewNotificationLedger(db)

	expectLedgerSetup(mock, true)
	if err := ledger.Setup(context.Background()); err != nil {
		t.Fatalf("Setup: %v", err)
	}

	// The same pair twice: both calls run the same ON CONFLICT upsert.
	for i := 0; i < 2; i++ {
		mock.ExpectExec("INSERT INTO notifications").
			WithArgs("e1", "bob", int64(1700000000)).
			WillReturnResult(sqlmock.NewResult(1, 1))
	}

	if err := ledger.RecordNotified(context.Background(), "e1", "bob", 1700000000); err != nil {
		t.Fatalf("first RecordNotified: %v", err)
	}
	if err := ledger.RecordNotified(context.Background(), "e1", "bob", 1700000000); err != nil {
		t.Fatalf("second RecordNotified: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
