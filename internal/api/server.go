// Package api is the HTTP façade: it validates request shapes, delegates to
// the Store/Supervisor/ingestion/blacklist packages, and translates their
// outcomes into JSON responses. It carries no business logic of its own.
package api

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"pvz-shift-monitor/internal/blacklist"
	"pvz-shift-monitor/internal/domain/geofilter"
	"pvz-shift-monitor/internal/infra/config"
	"pvz-shift-monitor/internal/infra/logger"
	"pvz-shift-monitor/internal/infra/telegram/client"
	"pvz-shift-monitor/internal/notify"
	"pvz-shift-monitor/internal/store"
	"pvz-shift-monitor/internal/supervisor"
)

const (
	readTimeout  = 15 * time.Second
	writeTimeout = 30 * time.Second
	idleTimeout  = 60 * time.Second
)

// Server is the process's single HTTP façade instance.
type Server struct {
	store  *store.Store
	sup    *supervisor.Supervisor
	geo    *geofilter.Filter
	sender notify.Sender

	srv *http.Server

	// blMu serializes blacklist lookups: the spec requires the blacklist
	// session file be owned by at most one in-flight search at a time.
	blMu sync.Mutex

	// tasksMu guards the cancel functions of tasks this process started,
	// so /workers/stop can reach a task Run loop spawned in the background.
	tasksMu sync.Mutex
	tasks   map[string]context.CancelFunc
}

// New builds the façade. geo and sender may be shared, process-wide
// instances; sender may be nil if no notification bot token is configured.
func New(st *store.Store, sup *supervisor.Supervisor, geo *geofilter.Filter, sender notify.Sender) *Server {
	s := &Server{
		store:  st,
		sup:    sup,
		geo:    geo,
		sender: sender,
		tasks:  make(map[string]context.CancelFunc),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /workers/start", s.handleWorkersStart)
	mux.HandleFunc("GET /workers/status/{task_id}", s.handleWorkersStatus)
	mux.HandleFunc("POST /workers/stop/{task_id}", s.handleWorkersStop)
	mux.HandleFunc("GET /workers/list/{task_id}", s.handleWorkersList)
	mux.HandleFunc("POST /workers/{item_id}/check-blacklist", s.handleWorkerCheckBlacklist)

	mux.HandleFunc("POST /blacklist/check", s.handleBlacklistCheck)
	mux.HandleFunc("GET /blacklist/chats", s.handleBlacklistChatsList)
	mux.HandleFunc("POST /blacklist/chats/sync", s.handleBlacklistChatsSync)
	mux.HandleFunc("POST /blacklist/chats/add", s.handleBlacklistChatsAdd)
	mux.HandleFunc("POST /blacklist/chats/remove", s.handleBlacklistChatsRemove)
	mux.HandleFunc("GET /blacklist/chats/topics", s.handleBlacklistChatsTopics)

	mux.HandleFunc("GET /admin/stats", s.handleAdminStats)
	mux.HandleFunc("POST /admin/cleanup", s.handleAdminCleanup)

	env := config.Env()
	s.srv = &http.Server{
		Addr:         env.Host + ":" + strconv.Itoa(env.Port),
		Handler:      loggingMiddleware(mux),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
	return s
}

// Start runs the HTTP server until Shutdown is called or it fails.
func (s *Server) Start() error {
	logger.Infof("api: listening on %s", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server and cancels every task this
// process started, per the shutdown sequence of §5.
func (s *Server) Shutdown(ctx context.Context) error {
	s.tasksMu.Lock()
	for id, cancel := range s.tasks {
		cancel()
		delete(s.tasks, id)
	}
	s.tasksMu.Unlock()
	return s.srv.Shutdown(ctx)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Debugf("api: %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)
		next.ServeHTTP(w, r)
	})
}

// newBlacklistTenant builds a fresh MTProto session scoped to the blacklist
// search alone, honoring the per-call override of the session path and
// credentials the request may carry.
func newBlacklistTenant(env config.EnvConfig, apiID int, apiHash, sessionPath string) (*client.Tenant, error) {
	if apiID == 0 {
		apiID = env.APIID
	}
	if apiHash == "" {
		apiHash = env.APIHash
	}
	if sessionPath == "" {
		sessionPath = env.BlacklistSession
	}
	return client.New(client.Options{
		APIID:       apiID,
		APIHash:     apiHash,
		SessionPath: sessionPath,
		PeerDBPath:  sessionPath + ".peers",
	})
}

// newIngestionTenant builds the MTProto session a monitoring task runs on.
func newIngestionTenant(env config.EnvConfig, apiID int, apiHash, sessionPath string) (*client.Tenant, error) {
	if apiID == 0 {
		apiID = env.APIID
	}
	if apiHash == "" {
		apiHash = env.APIHash
	}
	if sessionPath == "" {
		sessionPath = env.SessionPath
	}
	return client.New(client.Options{
		APIID:       apiID,
		APIHash:     apiHash,
		SessionPath: sessionPath,
		PeerDBPath:  sessionPath + ".peers",
	})
}

// runBlacklistSearch starts a short-lived tenant, runs a single search
// against it, and always tears the session back down, since the spec
// requires the blacklist session be owned by at most one in-flight search.
func (s *Server) runBlacklistSearch(ctx context.Context, apiID int, apiHash, sessionPath, username, fio string, days int) (blacklist.Result, error) {
	s.blMu.Lock()
	defer s.blMu.Unlock()

	env := config.Env()
	tenant, err := newBlacklistTenant(env, apiID, apiHash, sessionPath)
	if err != nil {
		return blacklist.Result{}, err
	}

	searchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var result blacklist.Result
	var searchErr error
	runErr := tenant.Start(searchCtx, func(innerCtx context.Context) error {
		searcher := blacklist.New(s.store, tenant)
		result, searchErr = searcher.Search(innerCtx, username, fio, days)
		return nil
	})
	if runErr != nil {
		return blacklist.Result{}, runErr
	}
	return result, searchErr
}
