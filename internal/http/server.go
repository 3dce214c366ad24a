// Package http exposes the dashboard API: subscription CRUD, the stats
// endpoints backed by the aggregation engine, receipt intake and the
// websocket feed.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"subtrackr/internal/cache"
	"subtrackr/internal/hub"
	"subtrackr/internal/log"
	"subtrackr/internal/middleware/ratelimit"
	"subtrackr/internal/middleware/security"
	"subtrackr/internal/middleware/trace"
	"subtrackr/internal/services"
)

const statsCacheTTL = time.Minute

type Server struct {
	http.Server

	subscriptions *services.SubscriptionService
	receipts      *services.ReceiptService
	hub           *hub.Hub
	logger        *log.Logger

	tracer  *trace.Middleware
	limiter *ratelimit.Limiter

	// Stats responses are cached as marshaled bytes keyed by path+query
	// and purged wholesale on every mutation.
	statsCache *cache.LRU[[]byte]
	caches     *cache.Manager

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
// receipts may be nil when receipt processing is not configured; the
// receipt routes then answer 503.
func NewServer(addr string, subs *services.SubscriptionService, receipts *services.ReceiptService, h *hub.Hub, logger *log.Logger) *Server {
	s := &Server{
		subscriptions: subs,
		receipts:      receipts,
		hub:           h,
		logger:        logger.WithComponent(log.ComponentHTTP),
		tracer:        trace.NewMiddleware(extractClientIP),
		limiter:       ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		statsCache:    cache.NewLRU[[]byte](256, statsCacheTTL),
		caches:        cache.NewManager(),
	}
	s.caches.Register(s.statsCache)
	s.caches.StartCleanup(10 * time.Minute)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/subscriptions", s.handleListSubscriptions)
	mux.HandleFunc("POST /api/subscriptions", s.handleCreateSubscription)
	mux.HandleFunc("GET /api/subscriptions/export", s.handleExport)
	mux.HandleFunc("GET /api/subscriptions/{id}", s.handleGetSubscription)
	mux.HandleFunc("PUT /api/subscriptions/{id}", s.handleUpdateSubscription)
	mux.HandleFunc("DELETE /api/subscriptions/{id}", s.handleDeleteSubscription)

	mux.HandleFunc("GET /api/stats/summary", s.handleStatsSummary)
	mux.HandleFunc("GET /api/stats/categories", s.handleStatsCategories)
	mux.HandleFunc("GET /api/stats/top", s.handleStatsTop)
	mux.HandleFunc("GET /api/stats/forecast", s.handleStatsForecast)
	mux.HandleFunc("GET /api/stats/upcoming", s.handleStatsUpcoming)

	mux.HandleFunc("GET /api/receipts", s.handleListReceipts)
	mux.HandleFunc("POST /api/receipts", s.handleUploadReceipt)
	mux.HandleFunc("GET /api/receipts/{id}", s.handleGetReceipt)
	mux.HandleFunc("POST /api/receipts/{id}/confirm", s.handleConfirmReceipt)
	mux.HandleFunc("POST /api/receipts/{id}/reject", s.handleRejectReceipt)
	mux.HandleFunc("POST /api/receipts/{id}/retry", s.handleRetryReceipt)

	mux.Handle("GET /ws", h)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	rateLimit := s.limiter.Middleware(extractClientIP, nil)

	var handler http.Handler = mux
	handler = rateLimit(handler)
	handler = headers.Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server.Addr = addr
	s.Server.Handler = handler
	s.Server.ReadHeaderTimeout = 10 * time.Second
	return s
}

// Shutdown stops the HTTP server and the background cleanup goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		s.caches.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// invalidateStats drops every cached stats response. Mutations are rare
// relative to reads, so wholesale purging beats key bookkeeping.
func (s *Server) invalidateStats() {
	s.statsCache.Purge()
}

// extractClientIP resolves the client address, honoring proxy headers.
func extractClientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

type metricsResponse struct {
	TotalRequests      int64 `json:"totalRequests"`
	AverageResponseUS  int64 `json:"averageResponseMicros"`
	RateLimitHits      int64 `json:"rateLimitHits"`
	RateLimitedClients int64 `json:"rateLimitedClients"`
	WebsocketClients   int   `json:"websocketClients"`
	StatsCacheEntries  int   `json:"statsCacheEntries"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	reqMetrics := s.tracer.GetMetrics()
	rlMetrics := s.limiter.GetMetrics()
	respondJSON(w, http.StatusOK, metricsResponse{
		TotalRequests:      reqMetrics.TotalRequests,
		AverageResponseUS:  reqMetrics.AverageResponseTime,
		RateLimitHits:      rlMetrics.TotalHits,
		RateLimitedClients: rlMetrics.ClientCount,
		WebsocketClients:   s.hub.ClientCount(),
		StatsCacheEntries:  s.statsCache.Size(),
	})
}
