package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/crod-center/crod-bot/internal/kv"
	"github.com/crod-center/crod-bot/internal/metrics"
	"github.com/crod-center/crod-bot/internal/models"
	"github.com/crod-center/crod-bot/internal/notify"
)

type TokenResolver interface {
	Resolve(ctx context.Context, token string) (models.Role, int64, error)
}

type HTTPDeps struct {
	PingDB func(ctx context.Context) error
	PingKV func(ctx context.Context) error
	Tokens TokenResolver
	Sink   Broadcaster
	Log    *zap.Logger
}

type HTTPServer struct {
	srv *http.Server
}

// Ticket — заявка с сайта.
type Ticket struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
	Text    string `json:"text"`
}

func NewHTTPHandler(d HTTPDeps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 800*time.Millisecond)
		defer cancel()
		t0 := time.Now()
		if err := d.PingDB(ctx); err != nil {
			http.Error(w, "db not ok: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
		metrics.ObserveDBPing(time.Since(t0))
		if err := d.PingKV(ctx); err != nil {
			http.Error(w, "kv not ok: "+err.Error(), http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})

	mux.Handle("GET /metrics", metrics.Handler())

	// Заявка всегда подтверждается одним и тем же ответом; доставка — best effort.
	mux.HandleFunc("POST /api/ticket", func(w http.ResponseWriter, r *http.Request) {
		var t Ticket
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&t); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(t.Text) == "" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		text := fmt.Sprintf("📨 Заявка с сайта\nИмя: %s\nКонтакт: %s\n\n%s", t.Name, t.Contact, t.Text)
		if d.Sink.Broadcast(r.Context(), notify.Tagged(text, notify.TagTicket)) == 0 {
			d.Log.Warn("ticket not delivered", zap.String("contact", t.Contact))
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("GET /api/connect/resolve", func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			http.Error(w, "token required", http.StatusBadRequest)
			return
		}
		role, identity, err := d.Tokens.Resolve(r.Context(), token)
		if errors.Is(err, kv.ErrTokenNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err != nil {
			d.Log.Error("resolve token", zap.Error(err))
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"role": role, "identity": identity})
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func StartHTTP(ctx context.Context, addr string, d HTTPDeps) *HTTPServer {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewHTTPHandler(d),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.Log.Error("http server", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
	}()

	return &HTTPServer{srv: srv}
}
