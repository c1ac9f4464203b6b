package notify

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/vaultsync/internal/server/auth"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// HTTPServer serves the event stream and a health check.
type HTTPServer struct {
	address   string
	hub       *Hub
	jwtSecret []byte
	upgrader  websocket.Upgrader
}

func NewHTTPServer(address string, hub *Hub, secretKey string) *HTTPServer {
	return &HTTPServer{
		address:   address,
		hub:       hub,
		jwtSecret: []byte(secretKey),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (s *HTTPServer) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.HandleFunc("/v1/vaults/{vault_id}/events", s.handleEvents).Methods(http.MethodGet)
	return r
}

func bearerToken(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	h := r.Header.Get("Authorization")
	if t, ok := strings.CutPrefix(h, "Bearer "); ok {
		return t
	}
	return ""
}

func (s *HTTPServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		http.Error(w, "missing authorization token", http.StatusUnauthorized)
		return
	}
	claims, err := auth.ParseToken(token, s.jwtSecret)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	if claims.VaultID != mux.Vars(r)["vault_id"] {
		http.Error(w, "token does not grant this vault", http.StatusForbidden)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.hub.logger.Warn(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	c := &client{
		id:       uuid.NewString(),
		vaultID:  claims.VaultID,
		deviceID: claims.DeviceID,
		conn:     conn,
		hub:      s.hub,
		send:     make(chan []byte, sendBuffer),
	}
	s.hub.register(c)
	s.hub.logger.Debug(r.Context(), "device subscribed", "vault_id", c.vaultID, "device_id", c.deviceID)

	go c.writePump()
	go c.readPump()
}

// Run serves until ctx is done, then shuts down and closes all streams.
func (s *HTTPServer) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.hub.logger.Info(ctx, "Starting HTTP server", "address", s.address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.hub.logger.Info(context.Background(), "Stopping HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.hub.Close()
	return srv.Shutdown(shutdownCtx)
}
