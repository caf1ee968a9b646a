package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cwinters/pocketmoney/internal/model"
	"github.com/cwinters/pocketmoney/internal/schedule"
	"github.com/cwinters/pocketmoney/internal/store"
)

const (
	defaultAnalyticsDays = 30
	maxAnalyticsDays     = 365
)

type AnalyticsHandler struct {
	tasks       *store.TaskStore
	completions *store.CompletionStore
	ledger      *store.LedgerStore
	payouts     *store.PayoutStore
	users       *store.UserStore
	settings    *store.SettingsStore
	logger      *slog.Logger
	now         func() time.Time
}

func NewAnalyticsHandler(ts *store.TaskStore, cs *store.CompletionStore, ls *store.LedgerStore, ps *store.PayoutStore, us *store.UserStore, ss *store.SettingsStore, logger *slog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		tasks:       ts,
		completions: cs,
		ledger:      ls,
		payouts:     ps,
		users:       us,
		settings:    ss,
		logger:      logger,
		now:         time.Now,
	}
}

type dayStats struct {
	Date         string `json:"date"`
	Expected     int    `json:"expected"`
	Completed    int    `json:"completed"`
	Verified     int    `json:"verified"`
	PointsEarned int    `json:"points_earned"`
}

type analyticsResponse struct {
	Days                int        `json:"days"`
	Series              []dayStats `json:"series"`
	PayoutCount         int        `json:"payout_count"`
	PayoutTotalCents    int64      `json:"payout_total_cents"`
	OutstandingPoints   int        `json:"outstanding_points"`
	OutstandingCents    int64      `json:"outstanding_cents"`
	PendingVerification int        `json:"pending_verification"`
}

// Overview returns a per-day series over the last ?days=N days: how many
// task instances were expected (daily plus weekly-mask schedules),
// how many were completed and verified, and the points earned. It also
// reports payout totals over the window and what is currently owed.
func (h *AnalyticsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	days := defaultAnalyticsDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxAnalyticsDays {
			writeError(w, http.StatusBadRequest, "days must be between 1 and 365")
			return
		}
		days = n
	}

	settings, err := h.settings.Get()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	loc := settings.Location()

	today, _ := schedule.LocalToday(h.now(), loc)
	from := today.AddDate(0, 0, -(days - 1))

	assignments, err := h.tasks.ListActiveAssignments()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list assignments")
		return
	}
	completions, err := h.completions.ListInRange(from, today)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list completions")
		return
	}
	entries, err := h.ledger.ListSince(from.Add(-time.Second))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read ledger")
		return
	}

	completedByDay := map[string]int{}
	verifiedByDay := map[string]int{}
	for _, c := range completions {
		key := c.Date.Format("2006-01-02")
		if c.Status == model.CompletionRejected {
			continue
		}
		completedByDay[key]++
		if c.Status == model.CompletionVerified {
			verifiedByDay[key]++
		}
	}

	earnedByDay := map[string]int{}
	for _, e := range entries {
		if e.PointsDelta > 0 {
			earnedByDay[e.CreatedAt.In(loc).Format("2006-01-02")] += e.PointsDelta
		}
	}

	series := make([]dayStats, 0, days)
	for d := from; !d.After(today); d = d.AddDate(0, 0, 1) {
		key := d.Format("2006-01-02")
		expected := 0
		mask := schedule.DayBit(d.Weekday())
		for _, a := range assignments {
			if !schedule.InRange(a, d) {
				continue
			}
			switch a.ScheduleType {
			case model.ScheduleDaily:
				expected++
			case model.ScheduleWeekly:
				if schedule.DayMask(a.DaysOfWeek)&mask != 0 {
					expected++
				}
			}
		}
		series = append(series, dayStats{
			Date:         key,
			Expected:     expected,
			Completed:    completedByDay[key],
			Verified:     verifiedByDay[key],
			PointsEarned: earnedByDay[key],
		})
	}

	resp := analyticsResponse{Days: days, Series: series}

	resp.PayoutCount, resp.PayoutTotalCents, err = h.payouts.TotalsSince(from)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read payouts")
		return
	}

	users, err := h.users.ListActive()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	var rate int64
	if settings != nil {
		rate = settings.RateCents
	}
	nowUTC := h.now().UTC()
	for _, u := range users {
		if u.Role != model.RoleUser {
			continue
		}
		summary, err := h.payouts.Preview(u.ID, rate, nowUTC)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to compute outstanding balance")
			return
		}
		resp.OutstandingPoints += summary.PayablePoints
		resp.OutstandingCents += summary.MoneyCents
	}

	pending, err := h.completions.ListPending()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list pending completions")
		return
	}
	resp.PendingVerification = len(pending)

	writeJSON(w, http.StatusOK, resp)
}
