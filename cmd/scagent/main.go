package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/screencontrol/core/internal/clipboard"
	"github.com/screencontrol/core/internal/config"
	"github.com/screencontrol/core/internal/consent"
	"github.com/screencontrol/core/internal/desktop"
	"github.com/screencontrol/core/internal/executor"
	"github.com/screencontrol/core/internal/filetransfer"
	"github.com/screencontrol/core/internal/heartbeat"
	"github.com/screencontrol/core/internal/input"
	"github.com/screencontrol/core/internal/logging"
	"github.com/screencontrol/core/internal/mtls"
	"github.com/screencontrol/core/internal/privilege"
	"github.com/screencontrol/core/internal/pty"
	"github.com/screencontrol/core/internal/session"
	"github.com/screencontrol/core/internal/sessionbroker"
	"github.com/screencontrol/core/internal/updater"
	"github.com/screencontrol/core/pkg/protocol"
)

var version = "0.1.0"
var cfgFile string

var log = logging.L("main")

var rootCmd = &cobra.Command{
	Use:   "scagent",
	Short: "Remote desktop control agent",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the agent",
	Run: func(cmd *cobra.Command, args []string) {
		runAgent()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("scagent v%s\n", version)
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

// agent bundles every running component so the dispatch handler and
// the shutdown path can reach them without a pile of free variables.
type agent struct {
	cfg         *config.Config
	client      *session.Client
	hb          *heartbeat.Engine
	executor    *executor.Executor
	ptyManager  *pty.Manager
	fileManager *filetransfer.Manager
	sessions    *desktop.SessionManager
	injector    input.Injector
	clipWatcher *clipboard.Watcher

	mu               sync.Mutex
	activeMonitor    int
	pendingTransfers map[string]*pendingTransfer
}

// pendingTransfer holds whichever half of a file-transfer pairing has
// arrived so far. The router sends the FileTransferRequest and the
// FileTransferAck carrying the presigned URL as two separate envelopes
// with no guaranteed order, so both cachePendingTransfer and
// handleFileTransferAck fill in their half and fire the transfer once
// the other half is already present.
type pendingTransfer struct {
	req *protocol.FileTransferRequest
	url string
}

func runAgent() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.AgentID == "" || cfg.ServerURL == "" {
		fmt.Fprintln(os.Stderr, "agent is not configured: set agent_id and server_url")
		os.Exit(1)
	}

	logging.Init(cfg.LogFormat, cfg.LogLevel, os.Stdout)
	log = logging.L("main")
	log.Info("starting agent", "version", version, "server", cfg.ServerURL, "agentId", cfg.AgentID)

	a := &agent{
		cfg:              cfg,
		executor:         executor.New(),
		ptyManager:       pty.NewManager(),
		fileManager:      filetransfer.NewManager(),
		sessions:         desktop.NewSessionManager(),
		injector:         input.NewInjector(),
		pendingTransfers: make(map[string]*pendingTransfer),
	}

	tlsCfg, err := loadAgentTLSConfig(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build mTLS config: %v\n", err)
		os.Exit(1)
	}

	a.client = session.New(session.Config{
		ServerURL:       cfg.ServerURL,
		AgentID:         cfg.AgentID,
		TenantToken:     cfg.AuthToken,
		TLSClientConfig: tlsCfg,
		OnConnect:       a.sendRegistration,
	}, a.dispatch)

	a.hb = heartbeat.New(cfg.AgentID, heartbeat.NewCollector(), a.client, newEnvelopeID)
	a.hb.Thumbnailer = thumbnailerFunc(func(ctx context.Context, uploadURL string) error {
		return desktop.CaptureThumbnail(ctx, httpClient(), uploadURL)
	})
	if binaryPath, err := os.Executable(); err != nil {
		log.Warn("could not resolve own executable path, auto-update disabled", "error", err)
	} else {
		a.hb.Updater = updater.New(&updater.Config{
			BinaryPath: binaryPath,
			BackupPath: binaryPath + ".backup",
		})
	}

	clipProvider := clipboard.NewSystemProvider()
	a.clipWatcher = clipboard.NewWatcher(clipProvider, func(text string) error {
		return a.client.Send(&protocol.Envelope{
			ID:      newEnvelopeID(),
			Payload: &protocol.ClipboardData{Text: text, Mime: "text/plain"},
		})
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go a.client.Start()
	go a.hb.Run(ctx)

	clipStop := make(chan struct{})
	go a.clipWatcher.Watch(clipStop)

	var brokerStop chan struct{}
	if cfg.UserHelperEnabled && privilege.IsElevated() {
		brokerStop = make(chan struct{})
		broker := sessionbroker.New(cfg.IPCSocketPath, nil)
		consent.SetRelay(broker)
		go func() {
			if err := broker.Listen(brokerStop); err != nil {
				log.Error("session broker stopped", "error", err)
			}
		}()
		log.Info("session broker listening for user-helper connections", "socket", cfg.IPCSocketPath)
	}

	log.Info("agent is running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down agent")
	close(clipStop)
	if brokerStop != nil {
		close(brokerStop)
	}
	a.hb.Stop()
	a.client.Stop()
	a.ptyManager.CloseAll()
	log.Info("agent stopped")
}

func newEnvelopeID() string {
	return uuid.NewString()
}

// sendRegistration tells the server this agent's machine/version info.
// Runs on every (re)connect, not just the first, so a server restart or
// a network blip doesn't leave stale info behind.
func (a *agent) sendRegistration() {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = a.cfg.AgentID
	}
	_ = a.client.Send(&protocol.Envelope{
		ID: newEnvelopeID(),
		Payload: &protocol.AgentRegistration{
			AgentID:      a.cfg.AgentID,
			MachineName:  hostname,
			OS:           runtime.GOOS,
			OSVersion:    "",
			Arch:         runtime.GOARCH,
			AgentVersion: version,
			TenantToken:  a.cfg.AuthToken,
			GroupName:    a.cfg.GroupName,
		},
	})
}

func httpClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

// loadAgentTLSConfig builds the agent's mTLS client config from disk when
// the deployment has it enabled. Returns nil, nil when mTLS isn't
// configured, leaving the WebSocket dialer on its default TLS behavior.
func loadAgentTLSConfig(cfg *config.Config) (*tls.Config, error) {
	if !cfg.MTLSEnabled {
		return nil, nil
	}

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

	return mtls.ClientConfig(string(caPEM), string(certPEM), string(keyPEM))
}

// thumbnailerFunc adapts a plain function to heartbeat.Thumbnailer.
type thumbnailerFunc func(ctx context.Context, uploadURL string) error

func (f thumbnailerFunc) CaptureAndUpload(ctx context.Context, uploadURL string) error {
	return f(ctx, uploadURL)
}

// dispatch is the session.Handler invoked for every envelope the
// server sends this agent.
func (a *agent) dispatch(env *protocol.Envelope) {
	switch p := env.Payload.(type) {
	case *protocol.AgentRegistrationAck:
		if !p.Success {
			log.Error("agent registration rejected", "message", p.Message)
		}
	case *protocol.HeartbeatAck:
		a.hb.HandleAck(context.Background(), p)
	case *protocol.SessionRequest:
		a.handleSessionRequest(env.SessionID, p)
	case *protocol.SessionEnd:
		a.sessions.Stop(env.SessionID)
		a.ptyManager.Stop(env.SessionID)
	case *protocol.QualitySettings:
		if sess, ok := a.sessions.Get(env.SessionID); ok {
			sess.SetQuality(desktop.Settings{Quality: p.Quality, MaxFPS: p.MaxFPS, BitrateKbps: p.BitrateKbps})
		}
	case *protocol.MonitorSwitch:
		a.handleMonitorSwitch(env.SessionID, p)
	case *protocol.InputEvent:
		a.handleInputEvent(p)
	case *protocol.CommandRequest:
		a.handleCommandRequest(env, p)
	case *protocol.TerminalData:
		if err := a.ptyManager.Write(env.SessionID, p.Data); err != nil {
			log.Warn("terminal write failed", "session", env.SessionID, "error", err)
		}
	case *protocol.TerminalResize:
		if err := a.ptyManager.Resize(env.SessionID, p.Cols, p.Rows); err != nil {
			log.Warn("terminal resize failed", "session", env.SessionID, "error", err)
		}
	case *protocol.FileTransferRequest:
		a.cachePendingTransfer(p)
	case *protocol.FileTransferAck:
		a.handleFileTransferAck(env.SessionID, p)
	case *protocol.FileListRequest:
		a.handleFileListRequest(env.SessionID, p)
	case *protocol.ClipboardData:
		if err := a.clipWatcher.Receive(p.Text); err != nil {
			log.Warn("clipboard receive failed", "error", err)
		}
	case *protocol.Ping:
		_ = a.client.Send(&protocol.Envelope{ID: newEnvelopeID(), SessionID: env.SessionID, Payload: &protocol.Pong{Timestamp: p.Timestamp}})
	default:
		log.Debug("unhandled envelope", "kind", env.Payload.Kind())
	}
}

func (a *agent) handleSessionRequest(sessionID string, req *protocol.SessionRequest) {
	result := consent.PromptForSession(context.Background(), req.UserID, "viewer", req.SessionType.String(),
		time.Duration(a.cfg.ConsentTimeoutSeconds)*time.Second)

	if result != consent.Granted && !(result == consent.NoDisplay && a.cfg.ConsentAutoGrant) {
		_ = a.client.Send(&protocol.Envelope{
			ID:        newEnvelopeID(),
			SessionID: sessionID,
			Payload:   &protocol.ConsentResponse{Granted: false, Reason: result.String()},
		})
		return
	}

	_ = a.client.Send(&protocol.Envelope{
		ID:        newEnvelopeID(),
		SessionID: sessionID,
		Payload:   &protocol.ConsentResponse{Granted: true},
	})

	switch req.SessionType {
	case protocol.SessionDesktop:
		a.startDesktopSession(sessionID, req.MonitorIndex)
	case protocol.SessionTerminal:
		a.startTerminalSession(sessionID)
	}
}

func (a *agent) startDesktopSession(sessionID string, monitorIndex int) {
	a.mu.Lock()
	a.activeMonitor = monitorIndex
	a.mu.Unlock()

	capturer, err := desktop.NewScreenCapturer(desktop.CaptureConfig{DisplayIndex: monitorIndex})
	if err != nil {
		log.Error("desktop capturer unavailable", "session", sessionID, "error", err)
		return
	}

	codec := protocol.CodecH264
	if a.cfg.DefaultVideoQuality == "jpeg" {
		codec = protocol.CodecJPEG
	}

	settings := desktop.Settings{
		Quality:     70,
		MaxFPS:      a.cfg.DefaultMaxFPS,
		BitrateKbps: 2000,
	}

	if _, err := a.sessions.Start(context.Background(), sessionID, a.client, capturer, codec, settings); err != nil {
		log.Error("failed to start desktop session", "session", sessionID, "error", err)
	}
}

func (a *agent) startTerminalSession(sessionID string) {
	err := a.ptyManager.Start(sessionID, 80, 24, "", func(data []byte) {
		_ = a.client.Send(&protocol.Envelope{ID: newEnvelopeID(), SessionID: sessionID, Payload: &protocol.TerminalData{Data: data}})
	}, func(err error) {
		_ = a.client.Send(&protocol.Envelope{ID: newEnvelopeID(), SessionID: sessionID, Payload: &protocol.SessionEnd{Reason: "terminal_closed"}})
	})
	if err != nil {
		log.Error("failed to start terminal session", "session", sessionID, "error", err)
	}
}

func (a *agent) handleMonitorSwitch(sessionID string, sw *protocol.MonitorSwitch) {
	if _, ok := a.sessions.Get(sessionID); !ok {
		return
	}
	capturer, err := desktop.NewScreenCapturer(desktop.CaptureConfig{DisplayIndex: sw.MonitorIndex})
	if err != nil {
		log.Warn("monitor switch capturer unavailable", "error", err)
		return
	}

	a.mu.Lock()
	a.activeMonitor = sw.MonitorIndex
	a.mu.Unlock()

	// Start replaces the existing session for this ID, stopping the old
	// capturer/encoder before installing the new one.
	sess, err := a.sessions.Start(context.Background(), sessionID, a.client, capturer, protocol.CodecH264, desktop.DefaultSettings())
	if err != nil {
		log.Warn("monitor switch restart failed", "error", err)
		return
	}
	sess.RequestKeyframe()
}

func (a *agent) handleInputEvent(ev *protocol.InputEvent) {
	w, h, err := a.screenBounds()
	if err != nil {
		log.Warn("input event: screen bounds unavailable", "error", err)
		return
	}

	switch ev.EventKind {
	case protocol.InputMouseMove:
		err = a.injector.MouseMove(input.Denormalize(ev.NormX, w), input.Denormalize(ev.NormY, h))
	case protocol.InputMouseButton:
		err = a.injector.MouseButton(input.Denormalize(ev.NormX, w), input.Denormalize(ev.NormY, h), ev.Button, ev.Pressed)
	case protocol.InputMouseScroll:
		err = a.injector.Scroll(input.Denormalize(ev.NormX, w), input.Denormalize(ev.NormY, h), ev.DX, ev.DY)
	case protocol.InputRelativeMouseMove:
		err = a.injector.RelativeMouseMove(ev.DeltaX, ev.DeltaY)
	case protocol.InputKeyEvent:
		err = a.injector.KeyEvent(ev.KeyCode, ev.Modifiers, ev.Pressed)
	}
	if err != nil {
		log.Warn("input injection failed", "kind", ev.EventKind, "error", err)
	}
}

func (a *agent) screenBounds() (int, int, error) {
	a.mu.Lock()
	idx := a.activeMonitor
	a.mu.Unlock()

	monitors, err := desktop.ListMonitors()
	if err != nil || idx >= len(monitors) {
		return 1920, 1080, nil
	}
	return monitors[idx].Width, monitors[idx].Height, nil
}

func (a *agent) handleCommandRequest(env *protocol.Envelope, req *protocol.CommandRequest) {
	go func() {
		resp, err := a.executor.Run(context.Background(), env.ID, req)
		if err != nil {
			log.Warn("command execution failed", "error", err)
			resp = &protocol.CommandResponse{ExitCode: -1, Stderr: err.Error()}
		}
		_ = a.client.Send(&protocol.Envelope{ID: newEnvelopeID(), SessionID: env.SessionID, Payload: resp})
	}()
}

func (a *agent) handleFileListRequest(sessionID string, req *protocol.FileListRequest) {
	list, err := a.fileManager.ListDir(req.Path)
	if err != nil {
		log.Warn("file list failed", "path", req.Path, "error", err)
		list = &protocol.FileList{}
	}
	_ = a.client.Send(&protocol.Envelope{ID: newEnvelopeID(), SessionID: sessionID, Payload: list})
}

// cachePendingTransfer fills in the request half of a transfer's pairing
// and fires it immediately if the URL half already arrived.
func (a *agent) cachePendingTransfer(req *protocol.FileTransferRequest) {
	a.mu.Lock()
	pt, ok := a.pendingTransfers[req.TransferID]
	if !ok {
		pt = &pendingTransfer{}
		a.pendingTransfers[req.TransferID] = pt
	}
	pt.req = req
	ready := pt.url != ""
	if ready {
		delete(a.pendingTransfers, req.TransferID)
	}
	a.mu.Unlock()

	if ready {
		a.runFileTransfer(pt.req, pt.url)
	}
}

// handleFileTransferAck fills in the URL half of a transfer's pairing
// and fires it immediately if the request half already arrived. Requests
// and acks can arrive in either order — see router.handleFileTransferRequest,
// which sends both as separate envelopes.
func (a *agent) handleFileTransferAck(sessionID string, ack *protocol.FileTransferAck) {
	if !ack.Accepted {
		a.mu.Lock()
		delete(a.pendingTransfers, ack.TransferID)
		a.mu.Unlock()
		return
	}

	a.mu.Lock()
	pt, ok := a.pendingTransfers[ack.TransferID]
	if !ok {
		pt = &pendingTransfer{}
		a.pendingTransfers[ack.TransferID] = pt
	}
	pt.url = ack.PresignedURL
	ready := pt.req != nil
	if ready {
		delete(a.pendingTransfers, ack.TransferID)
	}
	a.mu.Unlock()

	if ready {
		a.runFileTransfer(pt.req, pt.url)
	}
}

func (a *agent) runFileTransfer(req *protocol.FileTransferRequest, presignedURL string) {
	go func() {
		if err := a.fileManager.Run(context.Background(), req, presignedURL); err != nil {
			log.Warn("file transfer failed", "transfer", req.TransferID, "error", err)
		}
	}()
}
