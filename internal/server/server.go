package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/binshadcs/settle-up/internal/cache"
	"github.com/binshadcs/settle-up/internal/cloudsync"
	"github.com/binshadcs/settle-up/internal/handler"
	"github.com/binshadcs/settle-up/internal/ident"
	"github.com/binshadcs/settle-up/internal/ledger"
	"github.com/binshadcs/settle-up/internal/middleware"
	ws "github.com/binshadcs/settle-up/internal/websocket"
)

type Server struct {
	hub     *ws.Hub
	ledgerH *handler.LedgerHandler
	syncH   *handler.SyncHandler
	syncMgr *cloudsync.Manager
	logger  *slog.Logger
}

// New wires the data layer to its HTTP collaborators. remote may be nil for
// a local-only deployment.
func New(c *cache.Cache, remote cloudsync.Remote, clock ident.Clock, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	syncMgr := cloudsync.NewManager(c, remote,
		func(s cloudsync.Status) {
			hub.Broadcast(ws.SyncStatus(s.Enabled, s.LastError))
		},
		func() {
			// Wholesale hydration: connected UIs must re-fetch everything.
			hub.Broadcast(ws.Hydrated())
		},
		logger.With("component", "cloudsync"),
	)

	svc := ledger.NewService(c, clock)

	return &Server{
		hub:     hub,
		ledgerH: handler.NewLedgerHandler(svc, hub, logger.With("component", "ledger")),
		syncH:   handler.NewSyncHandler(syncMgr, logger.With("component", "sync")),
		syncMgr: syncMgr,
		logger:  logger,
	}
}

// SyncManager returns the sync manager, for startup auto-bind.
func (s *Server) SyncManager() *cloudsync.Manager {
	return s.syncMgr
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)

	// Friends
	mux.HandleFunc("GET /api/friends", s.ledgerH.ListFriends)
	mux.HandleFunc("POST /api/friends", s.ledgerH.CreateFriend)
	mux.HandleFunc("GET /api/friends/{id}", s.ledgerH.GetFriend)
	mux.HandleFunc("GET /api/friends/{id}/balance", s.ledgerH.FriendBalance)
	mux.HandleFunc("GET /api/friends/{id}/expenses", s.ledgerH.FriendExpenses)
	mux.HandleFunc("GET /api/friends/{id}/activities", s.ledgerH.FriendActivities)
	mux.HandleFunc("POST /api/friends/{id}/settle", s.ledgerH.SettleFriend)
	mux.HandleFunc("POST /api/friends/{id}/payments", s.ledgerH.FriendPayment)

	// Expenses
	mux.HandleFunc("GET /api/expenses", s.ledgerH.ListExpenses)
	mux.HandleFunc("POST /api/expenses", s.ledgerH.CreateExpense)
	mux.HandleFunc("POST /api/expenses/{id}/paid", s.ledgerH.MarkExpensePaid)
	mux.HandleFunc("POST /api/expenses/{id}/payments", s.ledgerH.ExpensePayment)

	// History and dashboard
	mux.HandleFunc("GET /api/activities", s.ledgerH.ListActivities)
	mux.HandleFunc("GET /api/summary", s.ledgerH.Summary)

	// Cloud sync
	mux.HandleFunc("GET /api/sync/status", s.syncH.Status)
	mux.HandleFunc("POST /api/sync/bind", s.syncH.Bind)
	mux.HandleFunc("POST /api/sync/push", s.syncH.Push)
	mux.HandleFunc("POST /api/sync/pull", s.syncH.Pull)

	// Change notifications
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
