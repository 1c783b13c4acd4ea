package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/screencontrol/core/internal/broadcaster"
	"github.com/screencontrol/core/internal/janitor"
	"github.com/screencontrol/core/internal/logging"
	"github.com/screencontrol/core/internal/mtls"
	"github.com/screencontrol/core/internal/objectstore"
	"github.com/screencontrol/core/internal/pubsub"
	"github.com/screencontrol/core/internal/registry"
	"github.com/screencontrol/core/internal/router"
	"github.com/screencontrol/core/internal/serverconfig"
	"github.com/screencontrol/core/internal/store"
	"github.com/screencontrol/core/internal/updatepolicy"
	"github.com/screencontrol/core/pkg/protocol"
)

var version = "0.1.0"
var cfgFile string

var log = logging.L("main")

var rootCmd = &cobra.Command{
	Use:   "scserver",
	Short: "Remote desktop control server",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the server",
	Run: func(cmd *cobra.Command, args []string) {
		runServer()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("scserver v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is the platform config directory)")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// server bundles every component the HTTP handlers need to reach.
type server struct {
	cfg         *serverconfig.Config
	store       *store.Store
	objStore    objectstore.Store
	registry    *registry.Registry
	broadcaster *broadcaster.Broadcaster
	router      *router.Router
}

func runServer() {
	cfg, err := serverconfig.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logging.Init(cfg.LogFormat, cfg.LogLevel, os.Stdout)
	log = logging.L("main")
	log.Info("starting server", "version", version, "listen", cfg.ListenAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := store.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Error("failed to open postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	objStore, err := objectstore.Open(ctx, objectstore.Config{
		Provider:           cfg.ObjectStoreProvider,
		Bucket:             cfg.ObjectStoreBucket,
		Region:             cfg.ObjectStoreRegion,
		GCSCredentialsFile: cfg.GCSCredentialsFile,
		AzureAccountName:   cfg.AzureAccountName,
		AzureAccountKey:    cfg.AzureAccountKey,
		AzureContainer:     cfg.AzureContainer,
		B2AccountID:        cfg.B2AccountID,
		B2ApplicationKey:   cfg.B2ApplicationKey,
		B2BucketID:         cfg.B2BucketID,
		PublicBaseURL:      cfg.ObjectStorePublicBaseURL,
	})
	if err != nil {
		log.Error("failed to open object store", "error", err)
		os.Exit(1)
	}

	var ps *pubsub.Broadcaster
	if cfg.RedisAddr != "" {
		ps = pubsub.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer ps.Close()
		if err := ps.Ping(ctx); err != nil {
			log.Warn("redis ping failed, cross-instance relay degraded to local-only", "error", err)
		}
	} else {
		log.Info("no redis configured, running single-instance (no cross-instance relay)")
	}

	var policy *updatepolicy.Policy
	if cfg.UpdateManifestPath != "" {
		manifest, err := updatepolicy.Load(cfg.UpdateManifestPath)
		if err != nil {
			log.Warn("failed to load update manifest, auto-update disabled", "error", err)
		} else {
			policy = updatepolicy.New(manifest)
		}
	}

	reg := registry.New()
	bc := broadcaster.New(reg, ps)

	rt := &router.Router{
		Registry:          reg,
		Store:             db,
		ObjectStore:       objStore,
		Bucket:            cfg.ObjectStoreBucket,
		NewID:             newEnvelopeID,
		ThumbnailInterval: time.Duration(cfg.ThumbnailIntervalSeconds) * time.Second,
		HeartbeatInterval: time.Duration(cfg.HeartbeatIntervalSeconds) * time.Second,
		Policy:            policy,
	}

	jan := &janitor.Janitor{Store: db, Registry: reg}
	go jan.Run(ctx)

	srv := &server{cfg: cfg, store: db, objStore: objStore, registry: reg, broadcaster: bc, router: rt}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/agent/{agentID}", srv.handleAgentWS)
	mux.HandleFunc("GET /ws/viewer/{sessionID}", srv.handleViewerWS)
	mux.HandleFunc("GET /ws/events", srv.handleEventsWS)

	httpSrv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}

	if cfg.MTLSEnabled {
		tlsCfg, err := loadServerTLSConfig(cfg)
		if err != nil {
			log.Error("failed to build mTLS config", "error", err)
			os.Exit(1)
		}
		httpSrv.TLSConfig = tlsCfg
	}

	go func() {
		var err error
		if cfg.MTLSEnabled {
			err = httpSrv.ListenAndServeTLS(cfg.MTLSCertFile, cfg.MTLSKeyFile)
		} else {
			err = httpSrv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			log.Error("http server stopped", "error", err)
		}
	}()

	log.Info("server is running", "listen", cfg.ListenAddr, "mtls", cfg.MTLSEnabled)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http server shutdown error", "error", err)
	}
	cancel()
	log.Info("server stopped")
}

func loadServerTLSConfig(cfg *serverconfig.Config) (*tls.Config, error) {
	caPEM, err := os.ReadFile(cfg.MTLSCAFile)
	if err != nil {
		return nil, fmt.Errorf("read mtls_ca_file: %w", err)
	}
	certPEM, err := os.ReadFile(cfg.MTLSCertFile)
	if err != nil {
		return nil, fmt.Errorf("read mtls_cert_file: %w", err)
	}
	keyPEM, err := os.ReadFile(cfg.MTLSKeyFile)
	if err != nil {
		return nil, fmt.Errorf("read mtls_key_file: %w", err)
	}
	return mtls.ServerConfig(string(caPEM), string(certPEM), string(keyPEM))
}

func newEnvelopeID() string {
	return uuid.NewString()
}

// handleAgentWS upgrades an agent's connection and registers it in the
// registry immediately so HandleAgentFrame has somewhere to send acks
// even before the agent's first AgentRegistration arrives. Cleanup on
// disconnect mirrors the original handler: unregister, mark offline,
// drop the broadcaster's cross-instance watch.
func (s *server) handleAgentWS(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("agentID")
	if agentID == "" {
		http.Error(w, "agentID required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("agent websocket upgrade failed", "agentId", agentID, "error", err)
		return
	}
	conn.SetReadLimit(protocol.MaxFrameSize)

	send := make(registry.ChanSender, 256)
	s.registry.RegisterAgent(agentID, "", send)
	s.broadcaster.WatchAgent(r.Context(), agentID)

	done := make(chan struct{})
	go wsWritePump(conn, send, done)

	log.Info("agent connected", "agentId", agentID)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		s.router.HandleAgentFrame(r.Context(), agentID, data)
	}

	close(done)
	conn.Close()
	s.broadcaster.UnwatchAgent(agentID)
	s.registry.UnregisterAgent(agentID)
	if err := s.store.MarkAgentOffline(context.Background(), agentID); err != nil {
		log.Warn("failed to mark agent offline", "agentId", agentID, "error", err)
	}
	log.Info("agent disconnected", "agentId", agentID)
}

// handleViewerWS upgrades a console/viewer connection bound to an
// already-existing session, rejecting it if the session isn't bound to
// a connected agent (matching the original's reject-on-unbound-session
// behavior). On attach it mirrors the original's on-connect side
// effects: mark the session active and trigger an immediate thumbnail.
func (s *server) handleViewerWS(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionID")
	if sessionID == "" {
		http.Error(w, "sessionID required", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("viewer websocket upgrade failed", "sessionId", sessionID, "error", err)
		return
	}
	conn.SetReadLimit(protocol.MaxFrameSize)

	send := make(registry.ChanSender, 256)
	if !s.registry.AttachViewer(sessionID, send) {
		log.Warn("viewer connected but session not bound, rejecting", "sessionId", sessionID)
		conn.Close()
		return
	}
	s.broadcaster.WatchSession(r.Context(), sessionID)

	agentID, _ := s.registry.AgentForSession(sessionID)
	s.router.OnViewerAttached(r.Context(), sessionID, agentID)

	done := make(chan struct{})
	go wsWritePump(conn, send, done)

	log.Info("viewer attached", "sessionId", sessionID, "agentId", agentID)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		s.router.HandleViewerFrame(r.Context(), sessionID, data, send)
	}

	close(done)
	conn.Close()
	s.broadcaster.UnwatchSession(sessionID)
	s.router.OnViewerDisconnected(context.Background(), sessionID)
	log.Info("viewer disconnected", "sessionId", sessionID)
}

// handleEventsWS streams registry-wide status events (agent online/
// offline, session ended) to an admin dashboard. Read-only from the
// client's perspective; inbound messages are ignored.
func (s *server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("events websocket upgrade failed", "error", err)
		return
	}

	subID := uuid.NewString()
	send := make(registry.ChanSender, 64)
	s.registry.AddEventSub(subID, send)

	done := make(chan struct{})
	go wsWritePump(conn, send, done)

	// Drain inbound messages (pings, client closes) without acting on them.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	close(done)
	conn.Close()
	s.registry.RemoveEventSub(subID)
}

// wsWritePump is the single writer for conn, draining send until done
// closes or a write fails — the same single-writer-per-socket
// discipline internal/session's client-side pump observes.
func wsWritePump(conn *websocket.Conn, send registry.ChanSender, done <-chan struct{}) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case data := <-send:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
