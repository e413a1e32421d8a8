package ingest

import (
	"context"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/harborview/claims-triage/internal/config"
)

const (
	defaultPollInterval = 5 * time.Minute
	defaultFTPTimeout   = 30 * time.Second
)

// FTPPoller periodically pulls claim documents from a carrier drop
// folder. Downloaded files land in a local staging directory before
// processing; the pipeline's filename idempotence covers files seen on
// earlier polls, so nothing is deleted from the remote side.
type FTPPoller struct {
	cfg        config.FTPConfig
	stagingDir string
	proc       FileProcessor
}

// NewFTPPoller creates a drop-folder poller staging downloads in
// stagingDir.
func NewFTPPoller(cfg config.FTPConfig, stagingDir string, proc FileProcessor) *FTPPoller {
	return &FTPPoller{cfg: cfg, stagingDir: stagingDir, proc: proc}
}

// hostPort normalizes an FTP host to host:port, defaulting to 21.
func hostPort(host string) string {
	if _, _, err := net.SplitHostPort(host); err != nil {
		return net.JoinHostPort(host, "21")
	}
	return host
}

func (p *FTPPoller) pollInterval() time.Duration {
	if p.cfg.PollIntervalSecs > 0 {
		return time.Duration(p.cfg.PollIntervalSecs) * time.Second
	}
	return defaultPollInterval
}

func (p *FTPPoller) timeout() time.Duration {
	if p.cfg.TimeoutSecs > 0 {
		return time.Duration(p.cfg.TimeoutSecs) * time.Second
	}
	return defaultFTPTimeout
}

// Run polls the drop folder until ctx is cancelled.
func (p *FTPPoller) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "ingest.ftp"))
	log.Info("starting ftp poller",
		zap.String("host", hostPort(p.cfg.Host)),
		zap.String("remote_dir", p.cfg.RemoteDir),
		zap.Duration("interval", p.pollInterval()),
	)

	ticker := time.NewTicker(p.pollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("ftp poller stopped")
			return
		case <-ticker.C:
			if err := p.poll(ctx, log); err != nil {
				log.Error("ftp poll failed", zap.Error(err))
			}
		}
	}
}

// poll downloads and processes every regular file in the drop folder.
func (p *FTPPoller) poll(ctx context.Context, log *zap.Logger) error {
	conn, err := ftp.Dial(hostPort(p.cfg.Host),
		ftp.DialWithTimeout(p.timeout()),
		ftp.DialWithContext(ctx),
	)
	if err != nil {
		return eris.Wrap(err, "ingest: ftp dial")
	}
	defer conn.Quit() //nolint:errcheck

	if err := conn.Login(p.cfg.User, p.cfg.Password); err != nil {
		return eris.Wrap(err, "ingest: ftp login")
	}

	entries, err := conn.List(p.cfg.RemoteDir)
	if err != nil {
		return eris.Wrapf(err, "ingest: ftp list %s", p.cfg.RemoteDir)
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			return eris.Wrap(ctx.Err(), "ingest: ftp poll cancelled")
		}
		if entry.Type != ftp.EntryTypeFile || skipName(entry.Name) {
			continue
		}

		local, err := p.download(conn, entry.Name)
		if err != nil {
			log.Error("ftp download failed",
				zap.String("file", entry.Name),
				zap.Error(err),
			)
			continue
		}

		res, err := p.proc.ProcessFile(ctx, local, "ftp")
		if err != nil {
			log.Error("ftp file processing failed",
				zap.String("file", entry.Name),
				zap.Error(err),
			)
			continue
		}
		log.Info("ftp file processed",
			zap.String("file", entry.Name),
			zap.String("status", res.Status),
			zap.String("claim_id", res.ClaimID),
		)
	}
	return nil
}

// download retrieves one remote file into the staging directory and
// returns the local path.
func (p *FTPPoller) download(conn *ftp.ServerConn, name string) (string, error) {
	resp, err := conn.Retr(path.Join(p.cfg.RemoteDir, name))
	if err != nil {
		return "", eris.Wrapf(err, "ingest: ftp retrieve %s", name)
	}
	defer resp.Close() //nolint:errcheck

	local := filepath.Join(p.stagingDir, name)
	f, err := os.Create(local)
	if err != nil {
		return "", eris.Wrapf(err, "ingest: create %s", local)
	}
	defer f.Close() //nolint:errcheck

	if _, err := io.Copy(f, resp); err != nil {
		return "", eris.Wrapf(err, "ingest: write %s", local)
	}
	return local, nil
}
