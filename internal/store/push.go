package store

import (
	"database/sql"
	"fmt"

	"github.com/cwinters/pocketmoney/internal/model"
)

type PushStore struct {
	db *sql.DB
}

func NewPushStore(db *sql.DB) *PushStore {
	return &PushStore{db: db}
}

// Subscribe upserts a browser push subscription. Re-subscribing the same
// endpoint refreshes its keys and owner.
func (s *PushStore) Subscribe(userID int64, endpoint, p256dh, auth string) error {
	_, err := s.db.Exec(
		`INSERT INTO push_subscriptions (user_id, endpoint, p256dh_key, auth_key) VALUES (?, ?, ?, ?)
		 ON CONFLICT(endpoint) DO UPDATE SET user_id = excluded.user_id, p256dh_key = excluded.p256dh_key, auth_key = excluded.auth_key`,
		userID, endpoint, p256dh, auth,
	)
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	return nil
}

func (s *PushStore) Unsubscribe(endpoint string) error {
	_, err := s.db.Exec(`DELETE FROM push_subscriptions WHERE endpoint = ?`, endpoint)
	if err != nil {
		return fmt.Errorf("unsubscribe: %w", err)
	}
	return nil
}

// DeleteByID removes one of a user's subscriptions. Scoping by owner
// keeps users from dropping each other's devices.
func (s *PushStore) DeleteByID(userID, id int64) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM push_subscriptions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("delete subscription: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete subscription: %w", err)
	}
	return n > 0, nil
}

func (s *PushStore) ListForUser(userID int64) ([]model.PushSubscription, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, endpoint, p256dh_key, auth_key, created_at FROM push_subscriptions WHERE user_id = ?`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []model.PushSubscription
	for rows.Next() {
		var sub model.PushSubscription
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.Endpoint, &sub.P256dhKey, &sub.AuthKey, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// MarkSent records that a notification with the given ref was delivered
// to a user. It reports false when the ref was already sent, which is
// how the reminder scheduler dedupes across ticks.
func (s *PushStore) MarkSent(userID int64, ref string) (bool, error) {
	_, err := s.db.Exec(`INSERT INTO push_sent_log (user_id, ref) VALUES (?, ?)`, userID, ref)
	if isUniqueViolation(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("mark sent: %w", err)
	}
	return true, nil
}

// PruneSentLog drops sent-log rows older than the given cutoff so the
// table does not grow without bound.
func (s *PushStore) PruneSentLog(before string) error {
	_, err := s.db.Exec(`DELETE FROM push_sent_log WHERE sent_at < ?`, before)
	if err != nil {
		return fmt.Errorf("prune sent log: %w", err)
	}
	return nil
}
