package model

import "time"

// PayoutState carries the per-user watermark marking the end of the last
// paid period. A nil LastPayoutAt means the user has never been paid.
type PayoutState struct {
	UserID       int64      `json:"user_id"`
	LastPayoutAt *time.Time `json:"last_payout_at,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Payout is the immutable record of one executed conversion of net
// points into money for one user over one closed period. NetPoints keeps
// the true signed value for audit even though money is clamped at zero.
type Payout struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"user_id"`
	PeriodStart    time.Time `json:"period_start"`
	PeriodEnd      time.Time `json:"period_end"`
	NetPoints      int       `json:"net_points"`
	RateCents      int64     `json:"rate_cents"`
	MoneyPaidCents int64     `json:"money_paid_cents"`
	PaidBy         int64     `json:"paid_by"`
	PaidAt         time.Time `json:"paid_at"`
	Note           string    `json:"note,omitempty"`
}
