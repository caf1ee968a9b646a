// Package points holds the arithmetic behind balances, leaderboard
// ranks, and point-to-money payout periods. Everything here is a pure
// function of loaded data; persistence stays in the store layer.
package points

import (
	"sort"
	"time"

	"github.com/cwinters/pocketmoney/internal/model"
)

// Balance sums every signed delta in the entries. A user's balance is
// always a live aggregate over their full history.
func Balance(entries []model.LedgerEntry) int {
	total := 0
	for _, e := range entries {
		total += e.PointsDelta
	}
	return total
}

// PeriodSummary is the outcome of settling one user's payout period.
type PeriodSummary struct {
	PeriodStart   time.Time
	PeriodEnd     time.Time
	NetPoints     int   // true signed net, kept for audit
	PayablePoints int   // net clamped at zero
	MoneyCents    int64 // payable points at the configured rate
}

// PeriodStartFor resolves the start of a user's open payout period. A
// user who has never been paid accumulates from the beginning of time.
func PeriodStartFor(lastPayoutAt *time.Time) time.Time {
	if lastPayoutAt == nil {
		return time.Time{}
	}
	return *lastPayoutAt
}

// Settle computes the money owed for a period with the given signed net
// points. Negative nets never produce negative money; the signed value
// is preserved in NetPoints so the payout record can store the truth.
func Settle(periodStart, periodEnd time.Time, netPoints int, rateCents int64) PeriodSummary {
	payable := netPoints
	if payable < 0 {
		payable = 0
	}
	return PeriodSummary{
		PeriodStart:   periodStart,
		PeriodEnd:     periodEnd,
		NetPoints:     netPoints,
		PayablePoints: payable,
		MoneyCents:    int64(payable) * rateCents,
	}
}

// NetInPeriod sums the deltas of entries falling inside the half-open
// period (periodStart, periodEnd]. The exclusive lower bound keeps an
// entry created exactly at a payout instant from being counted twice.
func NetInPeriod(entries []model.LedgerEntry, periodStart, periodEnd time.Time) int {
	net := 0
	for _, e := range entries {
		if e.CreatedAt.After(periodStart) && !e.CreatedAt.After(periodEnd) {
			net += e.PointsDelta
		}
	}
	return net
}

// Rank sorts rows by points descending and assigns ranks 1..N in that
// order. Ties receive distinct sequential ranks in encounter order.
func Rank(rows []model.UserPoints) []model.UserPoints {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].TotalPoints > rows[j].TotalPoints
	})
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows
}
