// Package attachment downloads files users upload to the chat platform.
package attachment

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/m3rciful/sushef/core/logger"
	"github.com/m3rciful/sushef/core/telegram/netutil"
)

// DefaultMaxBytes matches the Bot API download limit.
const DefaultMaxBytes int64 = 20 << 20

// ErrTooLarge is returned when a download exceeds the configured limit.
var ErrTooLarge = errors.New("attachment: file too large")

// Options configures a Retriever.
type Options struct {
	// APIURL is the Bot API base URL, e.g. https://api.telegram.org.
	APIURL     string
	Token      string
	HTTPClient *http.Client
	MaxBytes   int64
}

// Retriever resolves a file reference to its bytes in two round-trips:
// getFile for the transient path, then the download itself. Nothing is
// cached and nothing is retried.
type Retriever struct {
	apiURL   string
	token    string
	http     *http.Client
	maxBytes int64
}

// New constructs a Retriever.
func New(opts Options) *Retriever {
	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Retriever{
		apiURL:   strings.TrimRight(opts.APIURL, "/"),
		token:    opts.Token,
		http:     client,
		maxBytes: maxBytes,
	}
}

type getFileResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		FileID   string `json:"file_id"`
		FileSize int64  `json:"file_size"`
		FilePath string `json:"file_path"`
	} `json:"result"`
}

// Fetch returns the raw bytes behind fileRef.
func (r *Retriever) Fetch(ctx context.Context, fileRef string) ([]byte, error) {
	fileRef = strings.TrimSpace(fileRef)
	if fileRef == "" {
		return nil, errors.New("attachment: empty file reference")
	}

	start := time.Now()
	path, err := r.resolve(ctx, fileRef)
	if err != nil {
		r.logFailure(ctx, "resolve", fileRef, err)
		return nil, err
	}
	data, err := r.download(ctx, path)
	if err != nil {
		r.logFailure(ctx, "download", fileRef, err)
		return nil, err
	}

	logger.Info(ctx, "attachment", "attachment.fetched",
		slog.String("file_ref", logger.SanitizeLimit(fileRef, 64)),
		slog.String("file_path", path),
		slog.Int("bytes", len(data)),
		slog.Int64("duration_ms", logger.SinceMS(start)),
	)
	return data, nil
}

func (r *Retriever) resolve(ctx context.Context, fileRef string) (string, error) {
	endpoint := fmt.Sprintf("%s/bot%s/getFile?file_id=%s", r.apiURL, r.token, url.QueryEscape(fileRef))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("attachment: build getFile request: %w", err)
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("attachment: getFile: %w", unwrapURL(err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("attachment: read getFile response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("attachment: getFile http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out getFileResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("attachment: decode getFile response: %w", err)
	}
	if !out.OK {
		return "", fmt.Errorf("attachment: getFile rejected: %s", out.Description)
	}
	if out.Result.FileSize > r.maxBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrTooLarge, out.Result.FileSize)
	}
	path := strings.TrimLeft(strings.TrimSpace(out.Result.FilePath), "/")
	if path == "" {
		return "", errors.New("attachment: getFile returned no file_path")
	}
	return path, nil
}

func (r *Retriever) download(ctx context.Context, path string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/file/bot%s/%s", r.apiURL, r.token, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("attachment: build download request: %w", err)
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("attachment: download: %w", unwrapURL(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("attachment: download http %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("attachment: read download: %w", err)
	}
	if int64(len(data)) > r.maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, r.maxBytes)
	}
	return data, nil
}

func (r *Retriever) logFailure(ctx context.Context, step, fileRef string, err error) {
	logger.Warn(ctx, "attachment", "attachment.failed",
		slog.String("step", step),
		slog.String("file_ref", logger.SanitizeLimit(fileRef, 64)),
		slog.String("err", netutil.Redact(err.Error())),
		slog.String("error_kind", netutil.Classify(err)),
	)
}

// unwrapURL drops the *url.Error wrapper, whose message embeds the
// request URL and with it the bot token.
func unwrapURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		return urlErr.Err
	}
	return err
}

// Encode renders bytes as standard base64 for the JSON-only relay transport.
func Encode(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}
