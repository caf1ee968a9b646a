package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/cwinters/pocketmoney/internal/auth"
	"github.com/cwinters/pocketmoney/internal/backup"
	"github.com/cwinters/pocketmoney/internal/config"
	"github.com/cwinters/pocketmoney/internal/handler"
	"github.com/cwinters/pocketmoney/internal/middleware"
	"github.com/cwinters/pocketmoney/internal/push"
	"github.com/cwinters/pocketmoney/internal/store"
	ws "github.com/cwinters/pocketmoney/internal/websocket"
)

type Server struct {
	db            *sql.DB
	hub           *ws.Hub
	tokens        *auth.TokenIssuer
	authH         *handler.AuthHandler
	taskH         *handler.TaskHandler
	verificationH *handler.VerificationHandler
	pointsH       *handler.PointsHandler
	payoutH       *handler.PayoutHandler
	userH         *handler.UserHandler
	settingsH     *handler.SettingsHandler
	rewardH       *handler.RewardHandler
	analyticsH    *handler.AnalyticsHandler
	pushH         *handler.PushHandler
	backupH       *handler.BackupHandler
	rateLimiter   *middleware.RateLimiter
	backupManager *backup.Manager
	pushScheduler *push.Scheduler
	logger        *slog.Logger
}

func New(db *sql.DB, cfg *config.Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))
	tokens := auth.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.JWTAudience)

	userStore := store.NewUserStore(db)
	settingsStore := store.NewSettingsStore(db)
	taskStore := store.NewTaskStore(db)
	completionStore := store.NewCompletionStore(db)
	ledgerStore := store.NewLedgerStore(db)
	payoutStore := store.NewPayoutStore(db)
	rewardStore := store.NewRewardStore(db)
	pushStore := store.NewPushStore(db)
	backupStore := store.NewBackupStore(db)

	var backupMgr *backup.Manager
	if cfg.BackupEnabled() {
		backupMgr = backup.NewManager(backup.Config{
			Bucket:     cfg.BackupBucket,
			Region:     cfg.BackupRegion,
			Endpoint:   cfg.BackupEndpoint,
			AccessKey:  cfg.BackupAccessKey,
			SecretKey:  cfg.BackupSecretKey,
			Passphrase: cfg.BackupPassphrase,
			Interval:   cfg.BackupInterval,
			DBPath:     cfg.DBPath,
		}, db, backupStore, logger.With("component", "backup"))
	}

	var pushSvc *push.Service
	var pushSched *push.Scheduler
	if cfg.PushEnabled() {
		pushSvc = push.NewService(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubject)
		pushSched = push.NewScheduler(pushSvc, pushStore, taskStore, completionStore, userStore, settingsStore, logger.With("component", "push-scheduler"))
	}

	return &Server{
		db:            db,
		hub:           hub,
		tokens:        tokens,
		authH:         handler.NewAuthHandler(userStore, ledgerStore, tokens, logger.With("component", "auth")),
		taskH:         handler.NewTaskHandler(taskStore, completionStore, settingsStore, userStore, hub, logger.With("component", "task")),
		verificationH: handler.NewVerificationHandler(completionStore, taskStore, userStore, ledgerStore, hub, logger.With("component", "verification")),
		pointsH:       handler.NewPointsHandler(ledgerStore, userStore, settingsStore, hub, logger.With("component", "points")),
		payoutH:       handler.NewPayoutHandler(payoutStore, settingsStore, userStore, hub, logger.With("component", "payout")),
		userH:         handler.NewUserHandler(userStore, logger.With("component", "user")),
		settingsH:     handler.NewSettingsHandler(settingsStore, hub, logger.With("component", "settings")),
		rewardH:       handler.NewRewardHandler(rewardStore, hub, logger.With("component", "reward")),
		analyticsH:    handler.NewAnalyticsHandler(taskStore, completionStore, ledgerStore, payoutStore, userStore, settingsStore, logger.With("component", "analytics")),
		pushH:         handler.NewPushHandler(pushStore, pushSvc, logger.With("component", "push")),
		backupH:       handler.NewBackupHandler(backupStore, backupMgr, logger.With("component", "backup")),
		rateLimiter:   middleware.NewRateLimiter(),
		backupManager: backupMgr,
		pushScheduler: pushSched,
		logger:        logger,
	}
}

// BackupManager returns the backup manager, nil when backups are not
// configured.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupManager
}

// PushScheduler returns the reminder scheduler, nil when push is not
// configured.
func (s *Server) PushScheduler() *push.Scheduler {
	return s.pushScheduler
}

// RateLimiter returns the login rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	outerMux.HandleFunc("POST /api/auth/login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("GET /api/auth/users", s.authH.LoginUsers)
	outerMux.HandleFunc("GET /api/scoreboard", s.pointsH.Scoreboard)
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.HandleFunc("GET /ws", ws.Handler(s.hub, s.tokens, s.logger.With("component", "websocket")))

	// Signed-in routes
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	// Admin routes
	adminMux := http.NewServeMux()
	s.registerAdminRoutes(adminMux)
	protectedMux.Handle("/api/admin/", middleware.RequireAdmin(adminMux))

	requireAuth := middleware.RequireAuth(s.tokens)
	outerMux.Handle("/api/", requireAuth(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/me", s.authH.Me)
	mux.HandleFunc("PATCH /api/me/preferences", s.userH.UpdatePreferences)
	mux.HandleFunc("PATCH /api/me/language", s.userH.UpdatePreferences)
	mux.HandleFunc("PATCH /api/me/dark-mode", s.userH.UpdatePreferences)
	mux.HandleFunc("GET /api/me/points", s.pointsH.MyPoints)
	mux.HandleFunc("GET /api/me/redemptions", s.rewardH.MyRedemptions)
	mux.HandleFunc("GET /api/users/{id}/points", s.pointsH.UserPoints)

	mux.HandleFunc("GET /api/me/today", s.taskH.Today)
	mux.HandleFunc("GET /api/me/calendar", s.taskH.Calendar)
	mux.HandleFunc("POST /api/assignments/{id}/complete", s.taskH.Complete)

	mux.HandleFunc("GET /api/leaderboard", s.pointsH.Leaderboard)

	mux.HandleFunc("GET /api/rewards", s.rewardH.List)
	mux.HandleFunc("POST /api/rewards/{id}/redeem", s.rewardH.Redeem)

	mux.HandleFunc("GET /api/push/vapid-key", s.pushH.PublicKey)
	mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
	mux.HandleFunc("POST /api/push/unsubscribe", s.pushH.Unsubscribe)
	mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
	mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.DeleteSubscription)
}

func (s *Server) registerAdminRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/admin/users", s.userH.List)
	mux.HandleFunc("POST /api/admin/users", s.userH.Create)
	mux.HandleFunc("GET /api/admin/users/{id}", s.userH.Get)
	mux.HandleFunc("PUT /api/admin/users/{id}", s.userH.Update)
	mux.HandleFunc("DELETE /api/admin/users/{id}", s.userH.Delete)
	mux.HandleFunc("POST /api/admin/users/{id}/reset-password", s.userH.ResetPassword)
	mux.HandleFunc("POST /api/admin/users/{id}/reset-points", s.pointsH.ResetPoints)
	mux.HandleFunc("POST /api/admin/bonus", s.pointsH.Bonus)

	mux.HandleFunc("POST /api/admin/tasks", s.taskH.CreateDefinition)
	mux.HandleFunc("GET /api/admin/tasks", s.taskH.ListDefinitions)
	mux.HandleFunc("GET /api/admin/tasks/{id}", s.taskH.GetDefinition)
	mux.HandleFunc("PUT /api/admin/tasks/{id}", s.taskH.UpdateDefinition)
	mux.HandleFunc("DELETE /api/admin/tasks/{id}", s.taskH.DeleteDefinition)
	mux.HandleFunc("POST /api/admin/assignments", s.taskH.CreateAssignment)
	mux.HandleFunc("GET /api/admin/assignments", s.taskH.ListAssignments)
	mux.HandleFunc("PUT /api/admin/assignments/{id}", s.taskH.UpdateAssignment)
	mux.HandleFunc("DELETE /api/admin/assignments/{id}", s.taskH.DeleteAssignment)

	mux.HandleFunc("GET /api/admin/verifications/pending", s.verificationH.Pending)
	mux.HandleFunc("POST /api/admin/verifications/{id}/verify", s.verificationH.Verify)
	mux.HandleFunc("POST /api/admin/verifications/{id}/reject", s.verificationH.Reject)

	mux.HandleFunc("GET /api/admin/payouts/preview", s.payoutH.Preview)
	mux.HandleFunc("POST /api/admin/payouts/execute", s.payoutH.Execute)
	mux.HandleFunc("GET /api/admin/payouts", s.payoutH.History)

	mux.HandleFunc("GET /api/admin/settings", s.settingsH.Get)
	mux.HandleFunc("PUT /api/admin/settings", s.settingsH.Update)

	mux.HandleFunc("POST /api/admin/rewards", s.rewardH.Create)
	mux.HandleFunc("PUT /api/admin/rewards/{id}", s.rewardH.Update)
	mux.HandleFunc("DELETE /api/admin/rewards/{id}", s.rewardH.Delete)

	mux.HandleFunc("GET /api/admin/analytics", s.analyticsH.Overview)

	mux.HandleFunc("GET /api/admin/backups", s.backupH.List)
	mux.HandleFunc("POST /api/admin/backups", s.backupH.RunNow)
	mux.HandleFunc("GET /api/admin/backups/status", s.backupH.Status)
}
