package repository

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"nostrpush/internal/model"
)

func expectRegistrySetup(mock sqlmock.Sqlmock, addedAtExists bool) {
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS user_info").
		WillReturnResult(sqlmock.NewResult(0, 0))

	count := 0
	if addedAtExists {
		count = 1
	}
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM information_schema\.columns`).
		WithArgs("user_info", "added_at").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(count))

	if !addedAtExists {
		mock.ExpectExec("ALTER TABLE user_info ADD COLUMN added_at BIGINT").
			WillReturnResult(sqlmock.NewResult(0, 0))
	}

	mock.ExpectExec("CREATE INDEX IF NOT EXISTS user_info_pubkey_idx").
		WillReturnResult(sqlmock.NewResult(0, 0))
}

func TestDeviceTokenRepository_SetupIsIdempotent(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDeviceTokenRepository(db)

	expectRegistrySetup(mock, false)
	if err := repo.Setup(context.Background()); err != nil {
		t.Fatalf("first Setup: %v", err)
	}

	expectRegistrySetup(mock, true)
	if err := repo.Setup(context.Background()); err != nil {
		t.Fatalf("second Setup: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestDeviceTokenRepository_RefusesQueriesBeforeSetup(t *testing.T) {
	db, _ := newMockDB(t)
	repo := NewDeviceTokenRepository(db)

	if _, err := repo.TokensFor(context.Background(), "alice"); !errors.Is(err, model.ErrNotSetup) {
		t.Errorf("TokensFor err = %v, want ErrNotSetup", err)
	}
	if err := repo.Register(context.Background(), "alice", "t1", 123); !errors.Is(err, model.ErrNotSetup) {
		t.Errorf("Register err = %v, want ErrNotSetup", err)
	}
}

func TestDeviceTokenRepository_TokensFor(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDeviceTokenRepository(db)

	expectRegistrySetup(mock, true)
	if err := repo.Setup(context.Background()); err != nil {
		t.Fatalf("Setup: %v", err)
	}

	mock.ExpectQuery("SELECT device_token FROM user_info").
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"device_token"}).AddRow("t1").AddRow("t2"))

	tokens, err := repo.TokensFor(context.Background(), "alice")
	if err != nil {
		t.Fatalf("TokensFor: %v", err)
	}
	if want := []string{"t1", "t2"}; !reflect.DeepEqual(tokens, want) {
		t.Errorf("tokens = %v, want %v", tokens, want)
	}
}

func TestDeviceTokenRepository_RegisterUpserts(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDeviceTokenRepository(db)

	expectRegistrySetup(mock, true)
	if err := repo.Setup(context.Background()); err != nil {
		t.Fatalf("Setup: %v", err)
	}

	mock.ExpectExec("INSERT INTO user_info").
		WithArgs("alice", "t1", int64(1700000000)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	if err := repo.Register(context.Background(), "alice", "t1", 1700000000); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestDeviceTokenRepository_UnregisterMissingPairIsNoOp(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewDeviceTokenRepository(db)

	expectRegistrySetup(mock, true)
	if err := repo.Setup(context.Background()); err != nil {
		t.Fatalf("Setup: %v", err)
	}

	// Zero rows affected: the pair never existed. Still no error.
	mock.ExpectExec("DELETE FROM user_info").
		WithArgs("alice", "unknown-token").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.Unregister(context.Background(), "alice", "unknown-token"); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
}
