package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/challenge-platform/coordinator/internal/store"
)

const (
	logDate string        = `2006-01-02T15:04:05.000-07:00`
	timeout time.Duration = 10 * time.Second
)

func securityHeaders(w http.ResponseWriter) {
	w.Header().Set("Cross-Origin-Resource-Policy", "same-site")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("X-Content-Type-Options", "nosniff")
}

func realIP(r *http.Request) string {
	host, port, _ := net.SplitHostPort(r.RemoteAddr)
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	} else if ip := r.Header.Get("X-Real-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	}
	if net.ParseIP(host) != nil && strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		return host + ":" + port
	}
	return host
}

func serveVersion(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(w)
		w.WriteHeader(http.StatusOK)

		written, err := w.Write([]byte("challenge-coordinator v" + releaseVersion + "\n"))
		if err != nil {
			return
		}

		logf(cfg, "SERVE: Version page (%s) to %s in %s",
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

func serveHealthCheck(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(w)

		if _, err := w.Write([]byte("Ok\n")); err != nil {
			logf(cfg, "SERVE: writing healthz response to %s: %v", realIP(r), err)
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// serveSocket upgrades the connection and hands it to the Session Manager
// (component F), per §6 "External Interfaces".
func serveSocket(cfg *Config, e *Engine) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "SERVE: websocket upgrade from %s failed: %v", realIP(r), err)
			return
		}

		client := newClient(conn)
		e.serve(cfg, client)
	}
}

// Serve brings the coordinator up end to end: it opens the store, warms the
// State Cache, starts the Janitor, and listens until ctx is cancelled, at
// which point it drains connections and shuts everything down in reverse
// order (§4.8).
func Serve(ctx context.Context, cfg *Config) error {
	logf(cfg, "START: challenge-coordinator v%s", releaseVersion)

	st, err := store.Open(ctx, cfg.databaseURL)
	if err != nil {
		return err
	}
	defer st.Close()

	engine := NewEngine(cfg, st)

	janitor := NewJanitor(engine, cfg)
	if err := janitor.Warm(ctx); err != nil {
		return err
	}

	janitorCtx, stopJanitor := context.WithCancel(context.Background())
	defer stopJanitor()
	go janitor.Run(janitorCtx)

	mux := httprouter.New()
	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, i any) {
		logf(cfg, "SERVE: panic handling request from %s: %v", realIP(r), i)
		w.WriteHeader(http.StatusInternalServerError)
	}

	mux.GET("/healthz", serveHealthCheck(cfg))
	mux.GET("/version", serveVersion(cfg))
	mux.GET("/ws", serveSocket(cfg, engine))

	if cfg.profile {
		registerProfileHandlers(mux)
	}

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.port)),
		Handler:           mux,
		IdleTimeout:       10 * time.Minute,
		ReadTimeout:       timeout,
		ReadHeaderTimeout: timeout,
		WriteTimeout:      timeout,
	}

	serveErrs := make(chan error, 1)
	go func() {
		logf(cfg, "SERVE: Listening on ws://%s/ws", srv.Addr)
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErrs <- err
			return
		}
		serveErrs <- nil
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErrs:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.shutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	stopJanitor()
	closeAllSockets(engine)

	return nil
}

// closeAllSockets sends the graceful-shutdown close code (code 1000,
// SPEC_FULL.md §11) to every connection bound to a user id in the presence
// cache before the process exits. A connection that never sent setOnline is
// not in the cache and is not sent a close frame.
func closeAllSockets(e *Engine) {
	for _, c := range e.cache.AllSockets() {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "server shutting down"),
			time.Now().Add(time.Second))
		_ = c.conn.Close()
	}
}
