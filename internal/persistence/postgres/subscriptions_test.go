package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/maxcoind/kapelukh-backend/internal/ierr"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

func TestSubscriptionStore_Create(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	store := NewSubscriptionStore(db)
	ctx := context.Background()

	now := time.Now()
	mock.ExpectQuery(`INSERT INTO ws_subscriptions \(subscription_id, username, topic\)`).
		WithArgs(pgxmock.AnyArg(), "admin", "payment").
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	sub, err := store.Create(ctx, "admin", "payment")
	require.NoError(t, err)
	require.Equal(t, "admin", sub.Username)
	require.Equal(t, "payment", sub.Topic)
	require.True(t, len(sub.SubscriptionID) > len("sub_"))
	require.Equal(t, "sub_", sub.SubscriptionID[:4])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionStore_GetByID(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	store := NewSubscriptionStore(db)
	ctx := context.Background()

	now := time.Now()
	mock.ExpectQuery(`SELECT subscription_id, username, topic, created_at, updated_at`).
		WithArgs("sub_abc").
		WillReturnRows(pgxmock.NewRows([]string{"subscription_id", "username", "topic", "created_at", "updated_at"}).
			AddRow("sub_abc", "admin", "payment", now, now))

	sub, err := store.GetByID(ctx, "sub_abc")
	require.NoError(t, err)
	require.Equal(t, "sub_abc", sub.SubscriptionID)

	mock.ExpectQuery(`SELECT subscription_id, username, topic, created_at, updated_at`).
		WithArgs("sub_missing").
		WillReturnError(pgx.ErrNoRows)

	_, err = store.GetByID(ctx, "sub_missing")
	var typed ierr.Error
	require.ErrorAs(t, err, &typed)
	require.Equal(t, ierr.ErrorCodeNotFound, typed.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionStore_ListByTopic(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	store := NewSubscriptionStore(db)
	ctx := context.Background()

	now := time.Now()
	mock.ExpectQuery(`FROM ws_subscriptions WHERE topic=\$1`).
		WithArgs("payment").
		WillReturnRows(pgxmock.NewRows([]string{"subscription_id", "username", "topic", "created_at", "updated_at"}).
			AddRow("sub_a", "admin", "payment", now, now).
			AddRow("sub_b", "admin", "payment", now, now))

	subs, err := store.ListByTopic(ctx, "payment")
	require.NoError(t, err)
	require.Len(t, subs, 2)
	require.Equal(t, "sub_a", subs[0].SubscriptionID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionStore_Delete(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	store := NewSubscriptionStore(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM ws_subscription_rows WHERE subscription_id=\$1`).
		WithArgs("sub_abc").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectExec(`DELETE FROM ws_subscriptions WHERE subscription_id=\$1`).
		WithArgs("sub_abc").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	require.NoError(t, store.Delete(ctx, "sub_abc"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionStore_DeleteRollsBackOnError(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	store := NewSubscriptionStore(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM ws_subscription_rows WHERE subscription_id=\$1`).
		WithArgs("sub_abc").
		WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	require.Error(t, store.Delete(ctx, "sub_abc"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionStore_ReplaceRows(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	store := NewSubscriptionStore(db)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM ws_subscription_rows WHERE subscription_id=\$1`).
		WithArgs("sub_abc").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`INSERT INTO ws_subscription_rows`).
		WithArgs("sub_abc", "rec-1", 0, []byte(`{"id":"rec-1"}`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO ws_subscription_rows`).
		WithArgs("sub_abc", "rec-2", 1, []byte(`{"id":"rec-2"}`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	records := []map[string]any{
		{"id": "rec-1"},
		{"id": "rec-2"},
	}
	require.NoError(t, store.ReplaceRows(ctx, "sub_abc", records))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriptionStore_DeleteRowByRecordID(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	store := NewSubscriptionStore(db)
	ctx := context.Background()

	mock.ExpectExec(`DELETE FROM ws_subscription_rows WHERE subscription_id=\$1 AND record_id=\$2`).
		WithArgs("sub_abc", "rec-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	deleted, err := store.DeleteRowByRecordID(ctx, "sub_abc", "rec-1")
	require.NoError(t, err)
	require.True(t, deleted)

	mock.ExpectExec(`DELETE FROM ws_subscription_rows WHERE subscription_id=\$1 AND record_id=\$2`).
		WithArgs("sub_abc", "rec-2").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	deleted, err = store.DeleteRowByRecordID(ctx, "sub_abc", "rec-2")
	require.NoError(t, err)
	require.False(t, deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}
