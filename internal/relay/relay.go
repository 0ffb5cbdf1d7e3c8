// Package relay forwards classified user input to the processing backend.
//
// Every call is a single JSON POST to one endpoint. Only the HTTP status is
// interpreted: any 2xx is a success, everything else (including transport
// errors and timeouts) is a failure. Nothing is retried or deduplicated.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/sushef/core/logger"
	"github.com/m3rciful/sushef/core/telegram/netutil"
	"github.com/m3rciful/sushef/internal/attachment"
)

// Kind tags a request so the backend knows how to interpret it.
type Kind string

const (
	KindPhoto          Kind = "photo"
	KindPDF            Kind = "pdf"
	KindText           Kind = "text"
	KindDashboard      Kind = "dashboard"
	KindClearDashboard Kind = "clear_dashboard"
)

// Fixed MIME types attached to binary kinds regardless of the upload's own type.
const (
	MIMEPhoto = "image/jpeg"
	MIMEPDF   = "application/pdf"
)

// RequestIDHeader carries a per-call UUID for correlating backend logs.
const RequestIDHeader = "X-Request-ID"

const maxResponseBytes = 1 << 20

// Timeouts bounds each operation; zero fields fall back to the defaults.
type Timeouts struct {
	Invoice time.Duration
	Search  time.Duration
	Clear   time.Duration
}

// DefaultTimeouts allow for slow invoice recognition on the backend.
var DefaultTimeouts = Timeouts{
	Invoice: 120 * time.Second,
	Search:  60 * time.Second,
	Clear:   30 * time.Second,
}

// File is the encoded attachment embedded in a request.
type File struct {
	Data     string `json:"data"`
	MIMEType string `json:"mimeType"`
}

// Request is the wire body POSTed to the backend.
type Request struct {
	Type   Kind   `json:"type"`
	ChatID int64  `json:"chatId"`
	File   *File  `json:"file,omitempty"`
	Text   string `json:"text,omitempty"`
}

// Result is the outcome of one relay call: either OK with the raw response
// body, or a failure with a message meant for logs.
type Result struct {
	OK    bool
	Data  []byte
	Error string
}

// Success builds a successful Result.
func Success(data []byte) Result { return Result{OK: true, Data: data} }

// Failure builds a failed Result.
func Failure(format string, args ...any) Result {
	return Result{Error: fmt.Sprintf(format, args...)}
}

// Fetcher resolves a file reference to bytes.
type Fetcher interface {
	Fetch(ctx context.Context, fileRef string) ([]byte, error)
}

// Options configures a Client.
type Options struct {
	URL        string
	HTTPClient *http.Client
	Files      Fetcher
	Timeouts   Timeouts
}

// Client talks to the backend endpoint. It is stateless and safe for concurrent use.
type Client struct {
	url      string
	http     *http.Client
	files    Fetcher
	timeouts Timeouts
}

// New constructs a Client. The endpoint URL is mandatory.
func New(opts Options) (*Client, error) {
	endpoint := strings.TrimSpace(opts.URL)
	if endpoint == "" {
		return nil, errors.New("relay: endpoint url is required")
	}
	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	t := opts.Timeouts
	if t.Invoice <= 0 {
		t.Invoice = DefaultTimeouts.Invoice
	}
	if t.Search <= 0 {
		t.Search = DefaultTimeouts.Search
	}
	if t.Clear <= 0 {
		t.Clear = DefaultTimeouts.Clear
	}
	return &Client{url: endpoint, http: client, files: opts.Files, timeouts: t}, nil
}

// SendInvoice relays one invoice. For KindPhoto and KindPDF, source is a file
// reference that is downloaded first; for KindText it is the text itself.
// The returned error is set only when the attachment could not be retrieved,
// in which case the backend is never called.
func (c *Client) SendInvoice(ctx context.Context, kind Kind, chatID int64, source string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Invoice)
	defer cancel()

	req := Request{Type: kind, ChatID: chatID}
	switch kind {
	case KindPhoto, KindPDF:
		if c.files == nil {
			return Result{}, errors.New("relay: no attachment fetcher configured")
		}
		data, err := c.files.Fetch(ctx, source)
		if err != nil {
			return Result{}, fmt.Errorf("relay: fetch %s: %w", kind, err)
		}
		mime := MIMEPhoto
		if kind == KindPDF {
			mime = MIMEPDF
		}
		req.File = &File{Data: attachment.Encode(data), MIMEType: mime}
	case KindText:
		req.Text = source
	default:
		return Result{}, fmt.Errorf("relay: %q is not an invoice kind", kind)
	}
	return c.post(ctx, req), nil
}

// SearchDashboard asks the backend to build the results view for query.
func (c *Client) SearchDashboard(ctx context.Context, query string, chatID int64) Result {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Search)
	defer cancel()
	return c.post(ctx, Request{Type: KindDashboard, ChatID: chatID, Text: query})
}

// ClearDashboard asks the backend to empty the results view.
func (c *Client) ClearDashboard(ctx context.Context, chatID int64) Result {
	ctx, cancel := context.WithTimeout(ctx, c.timeouts.Clear)
	defer cancel()
	return c.post(ctx, Request{Type: KindClearDashboard, ChatID: chatID})
}

func (c *Client) post(ctx context.Context, body Request) Result {
	start := time.Now()
	requestID := uuid.NewString()
	attrs := []slog.Attr{
		slog.String("type", string(body.Type)),
		slog.Int64("chat_id", body.ChatID),
		slog.String("request_id", requestID),
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return c.fail(ctx, attrs, start, err, "encode request: %v", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return c.fail(ctx, attrs, start, err, "build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(RequestIDHeader, requestID)

	resp, err := c.http.Do(req)
	if err != nil {
		return c.fail(ctx, attrs, start, err, "post: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	attrs = append(attrs, slog.Int("status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.failKind(ctx, attrs, start, netutil.ClassifyStatus(resp.StatusCode), Failure("backend status %d", resp.StatusCode))
	}
	if err != nil {
		return c.fail(ctx, attrs, start, err, "read response: %v", err)
	}

	logger.Info(ctx, "relay", "relay.sent",
		append(attrs,
			slog.Int("request_bytes", len(payload)),
			slog.Int("response_bytes", len(data)),
			slog.Int64("duration_ms", logger.SinceMS(start)),
		)...,
	)
	return Success(data)
}

func (c *Client) fail(ctx context.Context, attrs []slog.Attr, start time.Time, err error, format string, args ...any) Result {
	return c.failKind(ctx, attrs, start, netutil.Classify(err), Failure(format, args...))
}

func (c *Client) failKind(ctx context.Context, attrs []slog.Attr, start time.Time, kind string, res Result) Result {
	logger.Warn(ctx, "relay", "relay.failed",
		append(attrs,
			slog.String("err", logger.SanitizeLimit(res.Error, 256)),
			slog.String("error_kind", kind),
			slog.Int64("duration_ms", logger.SinceMS(start)),
		)...,
	)
	return res
}
