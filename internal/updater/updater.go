// Package updater implements the agent-side binary swap: download the
// advertised build, verify its checksum, back up the running binary, and
// replace it in place.
package updater

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/screencontrol/core/internal/logging"
)

var log = logging.L("updater")

// Config holds the paths the updater swaps between.
type Config struct {
	BinaryPath string
	BackupPath string
}

// Updater implements heartbeat.Updater: it downloads a presigned build
// artifact, verifies its checksum, and swaps it into place.
type Updater struct {
	config *Config
	client *http.Client
}

// New creates an Updater against the current binary at cfg.BinaryPath.
func New(cfg *Config) *Updater {
	return &Updater{
		config: cfg,
		client: &http.Client{Timeout: 5 * time.Minute},
	}
}

// UpdateTo downloads the build at downloadURL, verifies it against sha256,
// and installs it, restarting the agent. It satisfies heartbeat.Updater.
func (u *Updater) UpdateTo(ctx context.Context, version, downloadURL, sha256sum string) error {
	log.Info("starting update", "targetVersion", version)

	tempPath, err := u.download(ctx, downloadURL)
	if err != nil {
		return fmt.Errorf("failed to download binary: %w", err)
	}

	if err := u.verifyChecksum(tempPath, sha256sum); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("checksum verification failed: %w", err)
	}

	if err := u.backupCurrentBinary(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to backup current binary: %w", err)
	}

	if runtime.GOOS == "windows" {
		if err := RestartWithHelper(tempPath, u.config.BinaryPath); err != nil {
			os.Remove(tempPath)
			if rbErr := u.Rollback(); rbErr != nil {
				log.Error("rollback also failed", "originalError", err, "rollbackError", rbErr)
			}
			return fmt.Errorf("failed to spawn update helper: %w", err)
		}
		// Helper script finishes the swap after this process exits.
		return nil
	}

	defer os.Remove(tempPath)
	if err := u.replaceBinary(tempPath); err != nil {
		if rbErr := u.Rollback(); rbErr != nil {
			log.Error("rollback also failed after replace error", "replaceError", err, "rollbackError", rbErr)
			return fmt.Errorf("failed to replace binary: %w (rollback also failed: %v)", err, rbErr)
		}
		return fmt.Errorf("failed to replace binary (rolled back): %w", err)
	}

	if err := Restart(); err != nil {
		if rbErr := u.Rollback(); rbErr != nil {
			log.Error("rollback also failed after restart error", "restartError", err, "rollbackError", rbErr)
			return fmt.Errorf("failed to restart: %w (rollback also failed: %v)", err, rbErr)
		}
		return fmt.Errorf("failed to restart (rolled back): %w", err)
	}

	return nil
}

// download fetches the build artifact at url to a temp file and returns its path.
func (u *Updater) download(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download binary: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("binary download failed with status %d", resp.StatusCode)
	}

	tempFile, err := os.CreateTemp("", "scagent-update-*")
	if err != nil {
		return "", err
	}
	defer tempFile.Close()

	if _, err := io.Copy(tempFile, resp.Body); err != nil {
		os.Remove(tempFile.Name())
		return "", err
	}

	return tempFile.Name(), nil
}

// verifyChecksum verifies the SHA256 checksum of a file.
func (u *Updater) verifyChecksum(path, expectedChecksum string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return err
	}

	actualChecksum := hex.EncodeToString(hasher.Sum(nil))
	if actualChecksum != expectedChecksum {
		return fmt.Errorf("checksum mismatch: expected %s, got %s", expectedChecksum, actualChecksum)
	}
	return nil
}

// backupCurrentBinary copies the running binary to config.BackupPath.
func (u *Updater) backupCurrentBinary() error {
	os.Remove(u.config.BackupPath)

	src, err := os.Open(u.config.BinaryPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(u.config.BackupPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return err
	}

	info, err := os.Stat(u.config.BinaryPath)
	if err != nil {
		return err
	}
	return os.Chmod(u.config.BackupPath, info.Mode())
}

// replaceBinary installs newPath at config.BinaryPath.
func (u *Updater) replaceBinary(newPath string) error {
	if runtime.GOOS == "windows" {
		oldPath := u.config.BinaryPath + ".old"
		os.Remove(oldPath)
		if err := os.Rename(u.config.BinaryPath, oldPath); err != nil {
			return err
		}
	}

	src, err := os.Open(newPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(u.config.BinaryPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return err
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(u.config.BinaryPath, 0755); err != nil {
			return err
		}
	}
	return nil
}

// Rollback restores the backed-up binary.
func (u *Updater) Rollback() error {
	log.Info("rolling back to previous version")

	if _, err := os.Stat(u.config.BackupPath); os.IsNotExist(err) {
		return fmt.Errorf("no backup found at %s", u.config.BackupPath)
	}

	src, err := os.Open(u.config.BackupPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(u.config.BinaryPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return err
	}

	if runtime.GOOS != "windows" {
		if err := os.Chmod(u.config.BinaryPath, 0755); err != nil {
			return err
		}
	}
	return nil
}
