package drive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/stroyassist/defectbot/internal/common"
	"github.com/stroyassist/defectbot/internal/workspace"
)

// copyChunkSize bounds memory while streaming the response body to disk.
const copyChunkSize = 64 * 1024

// FetchResult describes one completed download. Immutable once returned.
type FetchResult struct {
	Filename string
	Size     int64
	Path     string
	Duration time.Duration
}

// Fetcher streams remote files into a run's working directory.
type Fetcher struct {
	client *http.Client
	logger *slog.Logger
}

func NewFetcher(client *http.Client, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{client: client, logger: logger}
}

// Fetch downloads rawURL into dir. The local filename comes from the
// Content-Disposition header when present, sanitized; otherwise a
// timestamp-based name is used, with "document_<fileID>.pdf" as the last
// resort. Size is measured from the file written to disk, not from headers.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, dir, fileID string) (FetchResult, error) {
	start := time.Now()
	f.logger.Debug("drive.fetch.start", "url", rawURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return FetchResult{}, common.NewAppError(common.StageDownload, "build request", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return FetchResult{}, common.NewTransientError(common.StageDownload, "fetch document", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("fetch document: HTTP %d", resp.StatusCode)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return FetchResult{}, common.NewTransientError(common.StageDownload, msg, nil)
		}
		return FetchResult{}, common.NewAppError(common.StageDownload, msg, nil)
	}

	name := dispositionFilename(resp.Header.Get("Content-Disposition"))
	if name == "" {
		name = "document_" + time.Now().Format("20060102_150405")
	}
	localName := workspace.SafeFilename(name, "document_"+fileID)
	localPath := filepath.Join(dir, localName)

	out, err := os.Create(localPath)
	if err != nil {
		return FetchResult{}, common.NewAppError(common.StageDownload, "create local file", err)
	}

	buf := make([]byte, copyChunkSize)
	_, copyErr := io.CopyBuffer(out, resp.Body, buf)
	closeErr := out.Close()
	if copyErr != nil {
		return FetchResult{}, common.NewTransientError(common.StageDownload, "stream body", copyErr)
	}
	if closeErr != nil {
		return FetchResult{}, common.NewAppError(common.StageDownload, "close local file", closeErr)
	}

	info, err := os.Stat(localPath)
	if err != nil {
		return FetchResult{}, common.NewAppError(common.StageDownload, "stat local file", err)
	}

	res := FetchResult{
		Filename: localName,
		Size:     info.Size(),
		Path:     localPath,
		Duration: time.Since(start),
	}
	f.logger.Info("drive.fetch.ok",
		"filename", res.Filename,
		"size_bytes", res.Size,
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

// dispositionFilename extracts a filename from a Content-Disposition header.
// mime.ParseMediaType already prefers the RFC 5987 filename* form and decodes
// its charset prefix.
func dispositionFilename(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return params["filename"]
}
