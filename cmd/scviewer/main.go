package main

import (
	"fmt"
	"image"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/screencontrol/core/internal/clipboard"
	"github.com/screencontrol/core/internal/logging"
	"github.com/screencontrol/core/internal/viewerconn"
	"github.com/screencontrol/core/internal/viewerdecode"
	"github.com/screencontrol/core/pkg/protocol"
)

var version = "0.1.0"
var log = logging.L("main")

type viewerOptions struct {
	server    string
	session   string
	token     string
	agent     string
	email     string
	password  string
	quality   int
	maxFPS    int
	logLevel  string
	logFormat string
}

var opts = &viewerOptions{}

var rootCmd = &cobra.Command{
	Use:   "scviewer",
	Short: "Remote desktop control viewer",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to a session and start receiving frames",
	Run: func(cmd *cobra.Command, args []string) {
		runViewer(opts)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("scviewer v%s\n", version)
	},
}

func init() {
	runCmd.Flags().StringVar(&opts.server, "server", "", "server base URL, e.g. https://relay.example.com")
	runCmd.Flags().StringVar(&opts.session, "session", "", "existing session ID to join")
	runCmd.Flags().StringVar(&opts.token, "token", "", "auth token for --session")
	runCmd.Flags().StringVar(&opts.agent, "agent", "", "agent ID to open a new desktop session against")
	runCmd.Flags().StringVar(&opts.email, "email", "", "login email, used with --password when --session/--token aren't given")
	runCmd.Flags().StringVar(&opts.password, "password", "", "login password")
	runCmd.Flags().IntVar(&opts.quality, "quality", 70, "initial JPEG quality (1-100)")
	runCmd.Flags().IntVar(&opts.maxFPS, "max-fps", 30, "requested maximum frame rate")
	runCmd.Flags().StringVar(&opts.logLevel, "log-level", "info", "log level")
	runCmd.Flags().StringVar(&opts.logFormat, "log-format", "text", "log output format")
	runCmd.MarkFlagRequired("server")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// headlessSurface accepts decoded frames without rendering them. A real
// windowing front end is an out-of-scope collaborator here; this keeps
// the decode pipeline exercised and the latest frame inspectable.
type headlessSurface struct {
	mu    sync.Mutex
	last  *image.YCbCr
	count uint64
}

func (s *headlessSurface) WriteFrame(img *image.YCbCr) {
	s.mu.Lock()
	s.last = img
	s.count++
	n := s.count
	s.mu.Unlock()
	if n%120 == 1 {
		b := img.Bounds()
		log.Debug("frame decoded", "count", n, "width", b.Dx(), "height", b.Dy())
	}
}

func (s *headlessSurface) Snapshot() *image.YCbCr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

type headlessCursorSurface struct {
	mu    sync.Mutex
	shape *viewerdecode.CursorShape
	x, y  int
}

func (s *headlessCursorSurface) SetCursor(shape *viewerdecode.CursorShape) {
	s.mu.Lock()
	s.shape = shape
	s.mu.Unlock()
}

func (s *headlessCursorSurface) MoveCursor(x, y int) {
	s.mu.Lock()
	s.x, s.y = x, y
	s.mu.Unlock()
}

// viewer bundles the running components the dispatch handler needs to
// reach without a pile of free variables.
type viewer struct {
	decoder       *viewerdecode.Decoder
	surface       *headlessSurface
	cursorSurface *headlessCursorSurface
	clipWatcher   *clipboard.Watcher
	controller    *Controller
}

func runViewer(opts *viewerOptions) {
	logging.Init(opts.logFormat, opts.logLevel, os.Stdout)
	log = logging.L("main")

	sessionID, token, err := resolveSession(opts)
	if err != nil {
		log.Error("could not resolve session", "error", err)
		os.Exit(1)
	}

	v := &viewer{
		decoder:       viewerdecode.New(),
		surface:       &headlessSurface{},
		cursorSurface: &headlessCursorSurface{},
	}

	conn := viewerconn.New(viewerconn.Config{
		ServerURL: opts.server,
		SessionID: sessionID,
		AuthToken: token,
	}, v.dispatch)
	v.controller = newController(conn, sessionID)

	clipProvider := clipboard.NewSystemProvider()
	v.clipWatcher = clipboard.NewWatcher(clipProvider, v.controller.SendClipboard)

	log.Info("connecting", "server", opts.server, "session", sessionID)

	go conn.Start()
	go v.watchState(conn)

	clipStop := make(chan struct{})
	go v.clipWatcher.Watch(clipStop)

	pingStop := make(chan struct{})
	go v.pingLoop(pingStop)

	if err := v.controller.SetQuality(opts.quality, opts.maxFPS, 2000); err != nil {
		log.Warn("failed to send initial quality settings", "error", err)
	}

	log.Info("viewer is running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down viewer")
	close(clipStop)
	close(pingStop)
	conn.Stop()
	log.Info("viewer stopped")
}

func (v *viewer) watchState(conn *viewerconn.Client) {
	for s := range conn.State() {
		switch st := s.(type) {
		case viewerconn.Connected:
			log.Info("connected")
		case viewerconn.Reconnecting:
			log.Warn("reconnecting", "attempt", st.Attempt, "nextRetry", st.NextRetry)
		case viewerconn.Disconnected:
			log.Warn("disconnected", "reason", st.Reason)
			return
		}
	}
}

func (v *viewer) pingLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := v.controller.Ping(time.Now().UnixMilli()); err != nil {
				log.Warn("ping failed", "error", err)
			}
		case <-stop:
			return
		}
	}
}

// dispatch is the viewerconn.Handler invoked for every envelope the
// server relays to this viewer.
func (v *viewer) dispatch(env *protocol.Envelope) {
	switch p := env.Payload.(type) {
	case *protocol.ScreenInfo:
		v.decoder.SetScreenInfo(p)
		log.Debug("screen info", "monitors", len(p.Monitors), "active", p.ActiveMonitor)
	case *protocol.DesktopFrame:
		if err := v.decoder.HandleFrame(p, v.surface); err != nil {
			log.Warn("frame decode failed", "error", err)
		}
	case *protocol.CursorData:
		if _, err := v.decoder.HandleCursorData(p); err != nil {
			log.Warn("cursor decode failed", "error", err)
		}
	case *protocol.CursorPosition:
		if !v.decoder.HandleCursorPosition(p, v.cursorSurface) {
			log.Debug("cursor position for unknown cursor", "cursorId", p.CursorID)
		}
	case *protocol.ClipboardData:
		if err := v.clipWatcher.Receive(p.Text); err != nil {
			log.Warn("clipboard receive failed", "error", err)
		}
	case *protocol.ConsentResponse:
		if !p.Granted {
			log.Warn("session consent denied", "reason", p.Reason)
		}
	case *protocol.Pong:
		rtt := time.Since(time.UnixMilli(p.Timestamp))
		log.Debug("pong", "rtt", rtt)
	case *protocol.SessionEnd:
		log.Info("session ended", "reason", p.Reason)
	default:
		log.Debug("unhandled envelope", "kind", env.Payload.Kind())
	}
}
