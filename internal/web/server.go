// Package web serves the review engine as a JSON HTTP API.
package web

import (
	"context"
	"encoding/json"
	"net/http"
	gosync "sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/conorfennell/vocadeck/internal/domain"
	"github.com/conorfennell/vocadeck/internal/review"
	"github.com/conorfennell/vocadeck/internal/sync"
)

// Store is the part of the word store the API reads and manages directly.
// Reviews go through the review.Service.
type Store interface {
	GetWord(ctx context.Context, deck, term string) (*domain.WordEntry, error)
	ListWords(ctx context.Context, deck string) ([]domain.WordEntry, error)
	UpdateWord(ctx context.Context, deck string, w domain.WordEntry) error
	DeleteWord(ctx context.Context, deck, term string) error
	DeleteDeck(ctx context.Context, deck string) error
	GetStudyLog(ctx context.Context, deck string) (domain.StudyLog, error)
	InsertSource(ctx context.Context, deck, path string, typ domain.SourceType) (int64, error)
	ListSources(ctx context.Context) ([]domain.Source, error)
	DeleteSource(ctx context.Context, id int64) error
}

// Syncer reconciles every source into its deck.
type Syncer interface {
	RunSync(ctx context.Context) ([]sync.Report, error)
}

// liveSession serialises calls on one review session. Sessions are not safe
// for concurrent use, but requests for different sessions proceed in parallel.
type liveSession struct {
	mu      gosync.Mutex
	session *review.Session

	// lastUsed is guarded by Server.mu.
	lastUsed time.Time
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	store  Store
	svc    *review.Service
	syncer Syncer
	log    *zap.Logger
	router *http.ServeMux
	now    func() time.Time

	mu         gosync.Mutex
	sessions   map[string]*liveSession
	sessionTTL time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithSessionTTL forgets sessions that have seen no request for ttl. Evicted
// sessions are discarded, not finished. Zero keeps sessions until they are
// finished or discarded.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Server) { s.sessionTTL = ttl }
}

// NewServer creates and configures a new server. syncer may be nil, in which
// case POST /sync is not served.
func NewServer(store Store, svc *review.Service, syncer Syncer, log *zap.Logger, opts ...Option) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		store:    store,
		svc:      svc,
		syncer:   syncer,
		log:      log,
		router:   http.NewServeMux(),
		now:      time.Now,
		sessions: make(map[string]*liveSession),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// Handler returns the server wrapped in request metrics.
func (s *Server) Handler() http.Handler {
	return instrument(s)
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	s.router.HandleFunc("GET /decks/{deck}/due", s.handleGetDue())
	s.router.HandleFunc("POST /decks/{deck}/sessions", s.handleStartSession())
	s.router.HandleFunc("GET /decks/{deck}/stats", s.handleGetStats())
	s.router.HandleFunc("DELETE /decks/{deck}", s.handleDeleteDeck())

	s.router.HandleFunc("GET /decks/{deck}/words", s.handleListWords())
	s.router.HandleFunc("GET /decks/{deck}/words/{term}", s.handleGetWord())
	s.router.HandleFunc("PUT /decks/{deck}/words/{term}", s.handlePutWord())
	s.router.HandleFunc("DELETE /decks/{deck}/words/{term}", s.handleDeleteWord())

	s.router.HandleFunc("GET /sessions/{id}/question", s.handleGetQuestion())
	s.router.HandleFunc("POST /sessions/{id}/answer", s.handlePostAnswer())
	s.router.HandleFunc("POST /sessions/{id}/mistakes", s.handleRetryMistakes())
	s.router.HandleFunc("POST /sessions/{id}/finish", s.handleFinish())
	s.router.HandleFunc("DELETE /sessions/{id}", s.handleDiscard())

	// Source management routes
	s.router.HandleFunc("GET /sources", s.handleGetSources())
	s.router.HandleFunc("POST /sources", s.handlePostSource())
	s.router.HandleFunc("DELETE /sources/{id}", s.handleDeleteSource())
	if s.syncer != nil {
		s.router.HandleFunc("POST /sync", s.handlePostSync())
	}

	s.router.Handle("GET /metrics", promhttp.Handler())
}

func (s *Server) addSession(sess *review.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.evictIdle(now)
	s.sessions[sess.ID] = &liveSession{session: sess, lastUsed: now}
}

func (s *Server) getSession(id string) (*liveSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.evictIdle(now)
	ls, ok := s.sessions[id]
	if ok {
		ls.lastUsed = now
	}
	return ls, ok
}

// dropDeckSessions forgets every session of deck and returns how many there were.
func (s *Server) dropDeckSessions(deck string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, ls := range s.sessions {
		if ls.session.Deck() == deck {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// evictIdle drops sessions idle for longer than the TTL. s.mu must be held.
func (s *Server) evictIdle(now time.Time) {
	if s.sessionTTL <= 0 {
		return
	}
	for id, ls := range s.sessions {
		if now.Sub(ls.lastUsed) <= s.sessionTTL {
			continue
		}
		delete(s.sessions, id)
		reviewSessionsTotal.WithLabelValues("expired").Inc()
		s.log.Info("evicted idle session",
			zap.String("session", id),
			zap.Duration("idle", now.Sub(ls.lastUsed)))
	}
}

func (s *Server) dropSession(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	State   string `json:"state,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("failed to write response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code string, err error) {
	s.writeJSON(w, status, errorResponse{Error: code, Message: err.Error()})
}
