package stats

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const defaultRecordLimit = 100

// HandlerOption configures the stats HTTP handler
type HandlerOption func(*handler)

// WithJWTSecret requires an HS256 bearer token signed with secret on every
// route except /healthz. An empty secret disables the check.
func WithJWTSecret(secret string) HandlerOption {
	return func(h *handler) { h.secret = secret }
}

// WithHandlerLogger sets the logger used for encoding failures
func WithHandlerLogger(logger *zap.Logger) HandlerOption {
	return func(h *handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

type handler struct {
	reader Reader
	secret string
	logger *zap.Logger
}

// NewHandler serves recorded statements over HTTP:
//
//	GET /healthz
//	GET /records?limit=N
//	GET /summary          (only when reader also implements Summarizer)
func NewHandler(reader Reader, opts ...HandlerOption) http.Handler {
	h := &handler{reader: reader, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(h)
	}

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		h.render(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		if h.secret != "" {
			r.Use(h.authenticate)
		}
		r.Get("/records", h.records)
		if _, ok := reader.(Summarizer); ok {
			r.Get("/summary", h.summary)
		}
	})
	return r
}

func (h *handler) records(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecordLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.renderError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", raw))
			return
		}
		limit = n
	}

	recs, err := h.reader.Recent(r.Context(), limit)
	if err != nil {
		h.renderError(w, http.StatusServiceUnavailable, err)
		return
	}
	if recs == nil {
		recs = []Record{}
	}
	h.render(w, http.StatusOK, recs)
}

func (h *handler) summary(w http.ResponseWriter, _ *http.Request) {
	h.render(w, http.StatusOK, h.reader.(Summarizer).Summary())
}

func (h *handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			h.renderError(w, http.StatusUnauthorized, fmt.Errorf("authorization required"))
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			h.renderError(w, http.StatusUnauthorized, fmt.Errorf("invalid authorization format"))
			return
		}

		if err := h.validate(parts[1]); err != nil {
			h.renderError(w, http.StatusUnauthorized, fmt.Errorf("invalid token"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *handler) validate(tokenString string) error {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != "HS256" {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(h.secret), nil
	})
	if err != nil {
		return err
	}
	if !token.Valid {
		return fmt.Errorf("invalid token")
	}
	return nil
}

func (h *handler) render(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode stats response", zap.Error(err))
	}
}

func (h *handler) renderError(w http.ResponseWriter, status int, err error) {
	h.render(w, status, map[string]string{
		"error":   http.StatusText(status),
		"message": err.Error(),
	})
}
