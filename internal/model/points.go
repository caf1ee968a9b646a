package model

import "time"

type SourceType string

const (
	SourceTaskVerified   SourceType = "task_verified"
	SourceBonus          SourceType = "bonus"
	SourceRewardRedeemed SourceType = "reward_redeemed"
	SourceAdjustment     SourceType = "adjustment"
)

// LedgerEntry is one signed point transaction. The ledger is append-only:
// corrections are new offsetting entries, never updates or deletes.
type LedgerEntry struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	SourceType  SourceType `json:"source_type"`
	SourceID    *int64     `json:"source_id,omitempty"`
	PointsDelta int        `json:"points_delta"`
	Note        string     `json:"note,omitempty"`
	CreatedBy   int64      `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
}

// UserPoints is one aggregated leaderboard row before ranking.
type UserPoints struct {
	UserID      int64  `json:"user_id"`
	DisplayName string `json:"display_name"`
	TotalPoints int    `json:"total_points"`
	Rank        int    `json:"rank"`
}
