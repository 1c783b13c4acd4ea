// Package filetransfer runs the agent side of a file transfer: listing
// a local directory for the viewer's file browser, and streaming a local
// file to or from the pre-signed object-store URL the server's file
// transfer gateway handed out for this transfer.
package filetransfer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/screencontrol/core/internal/logging"
	"github.com/screencontrol/core/pkg/protocol"
)

var log = logging.L("filetransfer")

// Manager runs transfers and directory listings for the agent.
type Manager struct {
	client *http.Client
}

// NewManager returns a Manager with a transfer-sized HTTP client.
func NewManager() *Manager {
	return &Manager{client: &http.Client{Timeout: 10 * time.Minute}}
}

// ListDir lists a local directory for the viewer's file browser.
func (m *Manager) ListDir(path string) (*protocol.FileList, error) {
	clean, err := sanitizePath(path)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(clean)
	if err != nil {
		return nil, fmt.Errorf("filetransfer: read dir: %w", err)
	}

	list := &protocol.FileList{Path: clean, Entries: make([]protocol.FileEntry, 0, len(entries))}
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		list.Entries = append(list.Entries, protocol.FileEntry{
			Name:      e.Name(),
			IsDir:     e.IsDir(),
			SizeBytes: info.Size(),
			ModTime:   info.ModTime().Unix(),
		})
	}
	return list, nil
}

// Run executes one transfer: if req.Upload, the viewer is sending a file
// to this agent, so the agent downloads from presignedURL and writes it
// to req.LocalPath. Otherwise the agent is the source, so it reads
// req.LocalPath and PUTs it to presignedURL.
func (m *Manager) Run(ctx context.Context, req *protocol.FileTransferRequest, presignedURL string) error {
	if req.Upload {
		return m.receiveToLocal(ctx, req, presignedURL)
	}
	return m.sendFromLocal(ctx, req, presignedURL)
}

func (m *Manager) receiveToLocal(ctx context.Context, req *protocol.FileTransferRequest, presignedURL string) error {
	localPath, err := sanitizePath(req.LocalPath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return fmt.Errorf("filetransfer: mkdir: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, presignedURL, nil)
	if err != nil {
		return fmt.Errorf("filetransfer: build request: %w", err)
	}

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("filetransfer: download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("filetransfer: download failed with status %d", resp.StatusCode)
	}

	file, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("filetransfer: create file: %w", err)
	}
	defer file.Close()

	n, err := io.Copy(file, resp.Body)
	if err != nil {
		return fmt.Errorf("filetransfer: write file: %w", err)
	}

	log.Info("transfer received", "transferId", req.TransferID, "bytes", n, "path", localPath)
	return nil
}

func (m *Manager) sendFromLocal(ctx context.Context, req *protocol.FileTransferRequest, presignedURL string) error {
	localPath, err := sanitizePath(req.LocalPath)
	if err != nil {
		return err
	}

	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("filetransfer: open file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("filetransfer: stat file: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPut, presignedURL, file)
	if err != nil {
		return fmt.Errorf("filetransfer: build request: %w", err)
	}
	httpReq.ContentLength = stat.Size()

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("filetransfer: upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("filetransfer: upload failed with status %d", resp.StatusCode)
	}

	log.Info("transfer sent", "transferId", req.TransferID, "bytes", stat.Size(), "path", localPath)
	return nil
}

func sanitizePath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("filetransfer: empty path")
	}
	clean := filepath.Clean(path)
	if strings.Contains(clean, "..") {
		return "", fmt.Errorf("filetransfer: invalid path: directory traversal not allowed")
	}
	return clean, nil
}
