package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/maxcoind/kapelukh-backend/internal/ierr"
	"github.com/maxcoind/kapelukh-backend/internal/model"
)

// SubscriptionStore persists WebSocket subscriptions and their snapshot
// rows. Mutations touching both tables run in one transaction.
type SubscriptionStore struct{ db *DB }

func NewSubscriptionStore(db *DB) *SubscriptionStore { return &SubscriptionStore{db: db} }

// Create inserts a subscription under a freshly generated opaque id.
func (s *SubscriptionStore) Create(ctx context.Context, username, topic string) (model.Subscription, error) {
	id, err := gonanoid.New(12)
	if err != nil {
		return model.Subscription{}, err
	}
	subscriptionID := "sub_" + id

	const q = `
INSERT INTO ws_subscriptions (subscription_id, username, topic)
VALUES ($1, $2, $3)
RETURNING created_at, updated_at`

	sub := model.Subscription{
		SubscriptionID: subscriptionID,
		Username:       username,
		Topic:          topic,
	}
	row := s.db.Pool.QueryRow(ctx, q, subscriptionID, username, topic)
	if err := row.Scan(&sub.CreatedAt, &sub.UpdatedAt); err != nil {
		return model.Subscription{}, err
	}

	return sub, nil
}

func (s *SubscriptionStore) GetByID(ctx context.Context, subscriptionID string) (model.Subscription, error) {
	const q = `
SELECT subscription_id, username, topic, created_at, updated_at
FROM ws_subscriptions WHERE subscription_id=$1`

	var sub model.Subscription
	row := s.db.Pool.QueryRow(ctx, q, subscriptionID)
	err := row.Scan(&sub.SubscriptionID, &sub.Username, &sub.Topic, &sub.CreatedAt, &sub.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Subscription{}, ierr.New(ierr.ErrorCodeNotFound, errors.New("subscription not found"))
	}
	if err != nil {
		return model.Subscription{}, err
	}

	return sub, nil
}

// ListByTopic returns every durable subscription for a topic. This is the
// fan-out lookup, so it must see subscriptions held by any connection.
func (s *SubscriptionStore) ListByTopic(ctx context.Context, topic string) ([]model.Subscription, error) {
	const q = `
SELECT subscription_id, username, topic, created_at, updated_at
FROM ws_subscriptions WHERE topic=$1
ORDER BY created_at ASC`

	return s.list(ctx, q, topic)
}

func (s *SubscriptionStore) ListByUser(ctx context.Context, username string) ([]model.Subscription, error) {
	const q = `
SELECT subscription_id, username, topic, created_at, updated_at
FROM ws_subscriptions WHERE username=$1
ORDER BY created_at ASC`

	return s.list(ctx, q, username)
}

func (s *SubscriptionStore) list(ctx context.Context, query string, arg any) ([]model.Subscription, error) {
	rows, err := s.db.Pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Subscription
	for rows.Next() {
		var sub model.Subscription
		if err := rows.Scan(&sub.SubscriptionID, &sub.Username, &sub.Topic, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, sub)
	}

	return out, rows.Err()
}

// Delete removes a subscription and all of its rows in one transaction.
func (s *SubscriptionStore) Delete(ctx context.Context, subscriptionID string) (err error) {
	tx, err := s.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	const delRows = `DELETE FROM ws_subscription_rows WHERE subscription_id=$1`
	const delSub = `DELETE FROM ws_subscriptions WHERE subscription_id=$1`

	if _, err = tx.Exec(ctx, delRows, subscriptionID); err != nil {
		return err
	}
	if _, err = tx.Exec(ctx, delSub, subscriptionID); err != nil {
		return err
	}

	return nil
}

// ReplaceRows swaps a subscription's materialized snapshot: existing rows
// are deleted and the new records inserted with indexes 0..n-1, each
// tagged with its source record's id, all in one transaction.
func (s *SubscriptionStore) ReplaceRows(ctx context.Context, subscriptionID string, records []map[string]any) (err error) {
	tx, err := s.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if e := tx.Commit(ctx); e != nil {
			err = e
		}
	}()

	const del = `DELETE FROM ws_subscription_rows WHERE subscription_id=$1`
	const ins = `
INSERT INTO ws_subscription_rows (subscription_id, record_id, row_index, record_data)
VALUES ($1, $2, $3, $4)`

	if _, err = tx.Exec(ctx, del, subscriptionID); err != nil {
		return err
	}

	for index, record := range records {
		recordID, _ := record["id"].(string)

		var data []byte
		data, err = json.Marshal(record)
		if err != nil {
			return fmt.Errorf("row %d: %w", index, err)
		}

		if _, err = tx.Exec(ctx, ins, subscriptionID, recordID, index, data); err != nil {
			return err
		}
	}

	return nil
}

// Rows returns a subscription's snapshot rows in index order.
func (s *SubscriptionStore) Rows(ctx context.Context, subscriptionID string) ([]model.SubscriptionRow, error) {
	const q = `
SELECT subscription_id, record_id, row_index, record_data, created_at
FROM ws_subscription_rows WHERE subscription_id=$1
ORDER BY row_index ASC`

	rows, err := s.db.Pool.Query(ctx, q, subscriptionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.SubscriptionRow
	for rows.Next() {
		var r model.SubscriptionRow
		if err := rows.Scan(&r.SubscriptionID, &r.RecordID, &r.RowIndex, &r.RecordData, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}

	return out, rows.Err()
}

// DeleteRowByRecordID removes the snapshot row for one source record
// within a subscription. Reports whether a row was deleted.
func (s *SubscriptionStore) DeleteRowByRecordID(ctx context.Context, subscriptionID, recordID string) (bool, error) {
	const q = `DELETE FROM ws_subscription_rows WHERE subscription_id=$1 AND record_id=$2`

	tag, err := s.db.Pool.Exec(ctx, q, subscriptionID, recordID)
	if err != nil {
		return false, err
	}

	return tag.RowsAffected() > 0, nil
}
