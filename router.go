package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/seatmap-services/common/config"
	apperrors "github.com/seatmap-services/common/errors"
	"github.com/seatmap-services/common/jwt"
	"github.com/seatmap-services/common/logger"
	"github.com/seatmap-services/common/response"
	"github.com/seatmap-services/services/bootstrap"
)

// methods maps an HTTP method to the handler serving it on one path.
type methods map[string]bootstrap.Handler

func newRouter(a *bootstrap.App, cfg *config.Config, log *logger.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	auth := authMiddleware(a.JWT, log)
	holdLimit := rateLimit(newClientLimiters(rate.Limit(cfg.ReserveRatePerSec), cfg.ReserveBurst, 10*time.Minute), log)

	// ======================= VENUE ROUTES =======================
	mux.HandleFunc("/api/venues", auth(lambdaRoute(log, methods{
		http.MethodGet: a.VenueH.HandleGetVenues,
		http.MethodPut: a.VenueH.HandleUpsertVenue,
	})))
	mux.HandleFunc("/api/seat-map", auth(lambdaRoute(log, methods{
		http.MethodGet: a.VenueH.HandleGetSeatMap,
		http.MethodPut: a.VenueH.HandleSetSeatMap,
	})))
	mux.HandleFunc("/api/seat-map/effective", auth(lambdaRoute(log, methods{
		http.MethodGet: a.VenueH.HandleGetEffectiveMap,
	})))
	mux.HandleFunc("/api/seats/status", auth(lambdaRoute(log, methods{
		http.MethodPut: a.VenueH.HandleUpdateSeatStatus,
	})))

	// ======================= OVERRIDE ROUTES =======================
	mux.HandleFunc("/api/overrides", auth(lambdaRoute(log, methods{
		http.MethodGet:  a.OverrideH.HandleListOverrides,
		http.MethodPost: a.OverrideH.HandleCreateOverride,
		http.MethodPut:  a.OverrideH.HandleUpdateOverride,
	})))
	mux.HandleFunc("/api/overrides/activate", auth(lambdaRoute(log, methods{
		http.MethodPut: a.OverrideH.HandleActivateOverride,
	})))
	mux.HandleFunc("/api/overrides/deactivate", auth(lambdaRoute(log, methods{
		http.MethodPut: a.OverrideH.HandleDeactivateOverride,
	})))

	// ======================= HOLD ROUTES =======================
	mux.HandleFunc("/api/holds", auth(holdLimit(lambdaRoute(log, methods{
		http.MethodGet:    a.HoldH.HandleGetHold,
		http.MethodPost:   a.HoldH.HandleReserve,
		http.MethodDelete: a.HoldH.HandleRelease,
	}))))
	mux.HandleFunc("/api/holds/commit", auth(holdLimit(lambdaRoute(log, methods{
		http.MethodPost: a.HoldH.HandleCommit,
	}))))

	// ======================= HEALTH CHECK =======================
	mux.HandleFunc("/health", corsMiddleware(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}))
	return mux
}

// lambdaRoute adapts the request, dispatches on method and writes the result.
func lambdaRoute(log *logger.Logger, routes methods) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		handle, ok := routes[r.Method]
		if !ok {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		req, err := adaptRequest(r)
		if err != nil {
			apperrors.InvalidInput("body", "failed to read request").WriteJSON(w)
			return
		}

		resp, err := handle(r.Context(), req)
		if err != nil {
			log.WithError(err).With("path", r.URL.Path).Error("Handler failed")
			resp, _ = response.Error(err)
		}
		writeResponse(w, resp)
	}
}

// adaptRequest converts http.Request to APIGatewayProxyRequest
func adaptRequest(r *http.Request) (events.APIGatewayProxyRequest, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return events.APIGatewayProxyRequest{}, err
	}
	defer r.Body.Close()

	headers := make(map[string]string)
	for key, values := range r.Header {
		if len(values) > 0 {
			headers[key] = values[0]
		}
	}

	queryParams := make(map[string]string)
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			queryParams[key] = values[0]
		}
	}

	return events.APIGatewayProxyRequest{
		HTTPMethod:            r.Method,
		Path:                  r.URL.Path,
		Headers:               headers,
		QueryStringParameters: queryParams,
		Body:                  string(body),
	}, nil
}

// writeResponse writes APIGatewayProxyResponse to http.ResponseWriter
func writeResponse(w http.ResponseWriter, resp events.APIGatewayProxyResponse) {
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	w.Write([]byte(resp.Body))
}

// corsMiddleware handles CORS preflight requests
func corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for key, value := range response.CORSHeaders {
			w.Header().Set(key, value)
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next(w, r)
	}
}

// authMiddleware replaces any client supplied identity headers with the ones
// carried by the bearer token. Requests without a token pass through
// anonymous and handlers decide what needs a role; an invalid token is 401.
func authMiddleware(m *jwt.Manager, log *logger.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return corsMiddleware(func(w http.ResponseWriter, r *http.Request) {
			r.Header.Del("X-User-Id")
			r.Header.Del("X-User-Role")

			if authHeader := r.Header.Get("Authorization"); authHeader != "" {
				claims, err := m.FromBearer(authHeader)
				if err != nil {
					log.WithError(err).With("path", r.URL.Path).Debug("Rejected bearer token")
					apperrors.InvalidToken().WriteJSON(w)
					return
				}
				r.Header.Set("X-User-Id", claims.UserID)
				r.Header.Set("X-User-Role", claims.Role)
				r = r.WithContext(context.WithValue(r.Context(), logger.UserIDKey, claims.UserID))
			}
			next(w, r)
		})
	}
}

// clientLimiters keeps one token bucket per client IP. Buckets idle for longer
// than idle are dropped.
type clientLimiters struct {
	limit rate.Limit
	burst int
	idle  time.Duration
	now   func() time.Time

	mu        sync.Mutex
	byClient  map[string]*clientBucket
	lastSweep time.Time
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newClientLimiters(limit rate.Limit, burst int, idle time.Duration) *clientLimiters {
	return &clientLimiters{
		limit:    limit,
		burst:    burst,
		idle:     idle,
		now:      time.Now,
		byClient: make(map[string]*clientBucket),
	}
}

func (c *clientLimiters) allow(client string) bool {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	if now.Sub(c.lastSweep) >= c.idle {
		for k, b := range c.byClient {
			if now.Sub(b.lastSeen) >= c.idle {
				delete(c.byClient, k)
			}
		}
		c.lastSweep = now
	}

	b, ok := c.byClient[client]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(c.limit, c.burst)}
		c.byClient[client] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

func (c *clientLimiters) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byClient)
}

// clientIP is the first X-Forwarded-For hop when present, else the peer address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// rateLimit rejects a client's requests beyond its bucket's rate with 429.
func rateLimit(limiters *clientLimiters, log *logger.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			client := clientIP(r)
			if !limiters.allow(client) {
				log.With("path", r.URL.Path).With("client_ip", client).Warn("Rate limit exceeded")
				w.Header().Set("Retry-After", "1")
				apperrors.RateLimited().WriteJSON(w)
				return
			}
			next(w, r)
		}
	}
}

// statusRecorder remembers the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// requestLogger tags each request with an id and logs it once it completes.
func requestLogger(log *logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", requestID)
		r = r.WithContext(context.WithValue(r.Context(), logger.RequestIDKey, requestID))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		log.LogRequest(logger.RequestLog{
			Method:    r.Method,
			Path:      r.URL.Path,
			Status:    rec.status,
			Duration:  time.Since(start),
			ClientIP:  clientIP(r),
			UserAgent: r.UserAgent(),
			RequestID: requestID,
		})
	})
}
