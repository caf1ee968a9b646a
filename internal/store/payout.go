package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/cwinters/pocketmoney/internal/model"
	"github.com/cwinters/pocketmoney/internal/points"
)

type PayoutStore struct {
	db *sql.DB
}

func NewPayoutStore(db *sql.DB) *PayoutStore {
	return &PayoutStore{db: db}
}

func (s *PayoutStore) State(userID int64) (*model.PayoutState, error) {
	var st model.PayoutState
	var lastPayout sql.NullTime
	err := s.db.QueryRow(
		`SELECT user_id, last_payout_at, updated_at FROM user_payout_states WHERE user_id = ?`,
		userID,
	).Scan(&st.UserID, &lastPayout, &st.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get payout state: %w", err)
	}
	if lastPayout.Valid {
		st.LastPayoutAt = &lastPayout.Time
	}
	return &st, nil
}

// Preview settles a user's open period at the given rate without writing
// anything.
func (s *PayoutStore) Preview(userID int64, rateCents int64, now time.Time) (points.PeriodSummary, error) {
	st, err := s.State(userID)
	if err != nil {
		return points.PeriodSummary{}, err
	}
	var lastPayoutAt *time.Time
	if st != nil {
		lastPayoutAt = st.LastPayoutAt
	}
	periodStart := points.PeriodStartFor(lastPayoutAt)

	net, err := netInPeriod(s.db, userID, periodStart, now)
	if err != nil {
		return points.PeriodSummary{}, err
	}
	return points.Settle(periodStart, now, net, rateCents), nil
}

// PayoutResult is one user's outcome within an executed batch. Payout
// is nil when the user's period netted zero and only the watermark
// moved.
type PayoutResult struct {
	UserID  int64
	Payout  *model.Payout
	Summary points.PeriodSummary
}

// ExecuteBatch closes the open period for every listed user in a single
// transaction: per user it settles the net, records a payout row when
// there is anything to record, and advances the watermark to the period
// end. The watermark moves even when the net is zero, so repeating the
// call immediately pays nothing again. A failure on any user rolls back
// the whole batch, so no watermark advances without its payout row.
func (s *PayoutStore) ExecuteBatch(userIDs []int64, paidBy int64, rateCents int64, now time.Time, note string) ([]PayoutResult, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	results := make([]PayoutResult, 0, len(userIDs))
	for _, userID := range userIDs {
		payout, summary, err := executePayoutTx(tx, userID, paidBy, rateCents, now, note)
		if err != nil {
			return nil, fmt.Errorf("payout user %d: %w", userID, err)
		}
		results = append(results, PayoutResult{UserID: userID, Payout: payout, Summary: summary})
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit payouts: %w", err)
	}
	return results, nil
}

// Execute closes a single user's open period with the same semantics as
// ExecuteBatch.
func (s *PayoutStore) Execute(userID, paidBy int64, rateCents int64, now time.Time, note string) (*model.Payout, points.PeriodSummary, error) {
	results, err := s.ExecuteBatch([]int64{userID}, paidBy, rateCents, now, note)
	if err != nil {
		return nil, points.PeriodSummary{}, err
	}
	return results[0].Payout, results[0].Summary, nil
}

func executePayoutTx(tx *sql.Tx, userID, paidBy int64, rateCents int64, now time.Time, note string) (*model.Payout, points.PeriodSummary, error) {
	var lastPayout sql.NullTime
	err := tx.QueryRow(`SELECT last_payout_at FROM user_payout_states WHERE user_id = ?`, userID).Scan(&lastPayout)
	if err != nil && err != sql.ErrNoRows {
		return nil, points.PeriodSummary{}, fmt.Errorf("get payout state: %w", err)
	}
	var lastPayoutAt *time.Time
	if lastPayout.Valid {
		lastPayoutAt = &lastPayout.Time
	}
	periodStart := points.PeriodStartFor(lastPayoutAt)

	net, err := netInPeriod(tx, userID, periodStart, now)
	if err != nil {
		return nil, points.PeriodSummary{}, err
	}
	summary := points.Settle(periodStart, now, net, rateCents)

	var payout *model.Payout
	if summary.NetPoints != 0 {
		result, err := tx.Exec(
			`INSERT INTO payouts (user_id, period_start, period_end, net_points, rate_cents, money_paid_cents, paid_by, paid_at, note)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			userID, summary.PeriodStart, summary.PeriodEnd, summary.NetPoints,
			rateCents, summary.MoneyCents, paidBy, now, note,
		)
		if err != nil {
			return nil, points.PeriodSummary{}, fmt.Errorf("insert payout: %w", err)
		}
		payoutID, err := result.LastInsertId()
		if err != nil {
			return nil, points.PeriodSummary{}, fmt.Errorf("last insert id: %w", err)
		}
		payout = &model.Payout{
			ID:             payoutID,
			UserID:         userID,
			PeriodStart:    summary.PeriodStart,
			PeriodEnd:      summary.PeriodEnd,
			NetPoints:      summary.NetPoints,
			RateCents:      rateCents,
			MoneyPaidCents: summary.MoneyCents,
			PaidBy:         paidBy,
			PaidAt:         now,
			Note:           note,
		}
	}

	_, err = tx.Exec(
		`INSERT INTO user_payout_states (user_id, last_payout_at, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(user_id) DO UPDATE SET last_payout_at = excluded.last_payout_at, updated_at = CURRENT_TIMESTAMP`,
		userID, now,
	)
	if err != nil {
		return nil, points.PeriodSummary{}, fmt.Errorf("advance watermark: %w", err)
	}
	return payout, summary, nil
}

type querier interface {
	QueryRow(query string, args ...any) *sql.Row
}

func netInPeriod(q querier, userID int64, start, end time.Time) (int, error) {
	var net int
	err := q.QueryRow(
		`SELECT COALESCE(SUM(points_delta), 0) FROM points_ledger WHERE user_id = ? AND created_at > ? AND created_at <= ?`,
		userID, start, end,
	).Scan(&net)
	if err != nil {
		return 0, fmt.Errorf("sum period: %w", err)
	}
	return net, nil
}

const payoutCols = `id, user_id, period_start, period_end, net_points, rate_cents, money_paid_cents, paid_by, paid_at, note`

func scanPayout(scanner interface{ Scan(...any) error }) (*model.Payout, error) {
	var p model.Payout
	err := scanner.Scan(
		&p.ID, &p.UserID, &p.PeriodStart, &p.PeriodEnd, &p.NetPoints,
		&p.RateCents, &p.MoneyPaidCents, &p.PaidBy, &p.PaidAt, &p.Note,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PayoutStore) GetByID(id int64) (*model.Payout, error) {
	row := s.db.QueryRow(`SELECT `+payoutCols+` FROM payouts WHERE id = ?`, id)
	p, err := scanPayout(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get payout: %w", err)
	}
	return p, nil
}

// TotalsSince reports how many payouts ran at or after the given time
// and the total money they paid.
func (s *PayoutStore) TotalsSince(since time.Time) (count int, totalCents int64, err error) {
	err = s.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(money_paid_cents), 0) FROM payouts WHERE paid_at >= ?`,
		since,
	).Scan(&count, &totalCents)
	if err != nil {
		return 0, 0, fmt.Errorf("payout totals: %w", err)
	}
	return count, totalCents, nil
}

// History returns payout records newest first, optionally for one user.
func (s *PayoutStore) History(userID *int64, limit int) ([]model.Payout, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows *sql.Rows
	var err error
	if userID != nil {
		rows, err = s.db.Query(
			`SELECT `+payoutCols+` FROM payouts WHERE user_id = ? ORDER BY paid_at DESC, id DESC LIMIT ?`,
			*userID, limit,
		)
	} else {
		rows, err = s.db.Query(
			`SELECT `+payoutCols+` FROM payouts ORDER BY paid_at DESC, id DESC LIMIT ?`,
			limit,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("payout history: %w", err)
	}
	defer rows.Close()

	var payouts []model.Payout
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payout: %w", err)
		}
		payouts = append(payouts, *p)
	}
	return payouts, rows.Err()
}
