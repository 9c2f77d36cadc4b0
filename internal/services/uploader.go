package services

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/yms/internal/models"
	"github.com/desertthunder/yms/internal/shared"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"
)

const (
	uploadFieldName   = "file"
	uploadContentType = "audio/mp3"
)

// UploadError is a classified upload failure.
type UploadError struct {
	Kind models.UploadErrorKind
	Err  error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("%v: %v", e.sentinel(), e.Err)
}

// Unwrap exposes both the kind sentinel and the underlying error to [errors.Is].
func (e *UploadError) Unwrap() []error {
	return []error{e.sentinel(), e.Err}
}

func (e *UploadError) sentinel() error {
	switch e.Kind {
	case models.UploadErrTLS:
		return shared.ErrUploadTLS
	case models.UploadErrTimeout:
		return shared.ErrUploadTimeout
	case models.UploadErrTarget:
		return shared.ErrUploadTarget
	default:
		return shared.ErrUploadTransport
	}
}

// Uploader posts fetched audio files to upload targets.
type Uploader struct {
	client   *retryablehttp.Client
	statuses map[int]bool
	logger   *log.Logger
}

// NewUploader creates an uploader with the timeout, retry and TLS policy from cfg.
func NewUploader(cfg shared.UploadConfig, logger *log.Logger) *Uploader {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	logger = shared.WithLogger(logger, "service", "uploader")

	transport := cleanhttp.DefaultPooledTransport()
	if cfg.InsecureSkipVerify {
		logger.Warn("certificate verification is DISABLED for uploads (upload.insecure_skip_verify)")
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	timeout := cfg.Timeout.Duration
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	statuses := make(map[int]bool, len(cfg.RetryStatuses))
	for _, code := range cfg.RetryStatuses {
		statuses[code] = true
	}

	u := &Uploader{statuses: statuses, logger: logger}

	client := retryablehttp.NewClient()
	client.HTTPClient = &http.Client{Transport: transport, Timeout: timeout}
	client.Logger = leveledLogger{logger}
	client.RetryMax = max(cfg.RetryMax, 0)
	client.RetryWaitMin = cfg.BackoffFactor.Duration
	client.RetryWaitMax = max(cfg.BackoffFactor.Duration*8, time.Second)
	client.CheckRetry = u.checkRetry
	client.Backoff = exponentialBackoff(cfg.BackoffFactor.Duration)
	client.ErrorHandler = statusErrorHandler
	u.client = client
	return u
}

// checkRetry retries only listed statuses. Transport errors, TLS failures and timeouts end the attempt.
func (u *Uploader) checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return false, err
	}
	if u.statuses[resp.StatusCode] {
		u.logger.Debug("retrying upload", "status", resp.StatusCode)
		return true, nil
	}
	return false, nil
}

// exponentialBackoff waits factor * 2^attempt, capped at max.
func exponentialBackoff(factor time.Duration) retryablehttp.Backoff {
	return func(_, maxWait time.Duration, attempt int, _ *http.Response) time.Duration {
		if factor <= 0 {
			return 0
		}
		wait := time.Duration(float64(factor) * math.Pow(2, float64(attempt)))
		if wait > maxWait || wait <= 0 {
			return maxWait
		}
		return wait
	}
}

// statusErrorHandler runs once retries are exhausted or an error stopped them.
func statusErrorHandler(resp *http.Response, err error, attempts int) (*http.Response, error) {
	if resp != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	if resp != nil {
		return nil, fmt.Errorf("giving up after %d attempt(s): status %d", attempts, resp.StatusCode)
	}
	return nil, fmt.Errorf("giving up after %d attempt(s)", attempts)
}

// Upload submits path as the single multipart part "file" to target.
//
// The reply body is returned verbatim; any failure is an [*UploadError].
func (u *Uploader) Upload(ctx context.Context, path string, target models.UploadTarget) (*models.UploadReceipt, error) {
	body, contentType, err := multipartBody(path)
	if err != nil {
		return nil, &UploadError{Kind: models.UploadErrTransport, Err: err}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, target.PostURL, body)
	if err != nil {
		return nil, &UploadError{Kind: models.UploadErrTransport, Err: err}
	}
	req.Header.Set("Content-Type", contentType)

	u.logger.Debug("uploading", "file", filepath.Base(path), "size", len(body))

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, &UploadError{Kind: classifyUploadError(err), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UploadError{Kind: classifyUploadError(err), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UploadError{
			Kind: models.UploadErrTransport,
			Err:  fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(data)),
		}
	}
	if !gjson.ValidBytes(data) {
		return nil, &UploadError{Kind: models.UploadErrTransport, Err: fmt.Errorf("reply is not JSON: %q", data)}
	}

	return &models.UploadReceipt{
		StatusCode: resp.StatusCode,
		Body:       string(bytes.TrimSpace(data)),
	}, nil
}

// multipartBody buffers the file so the retryable request can be replayed.
func multipartBody(path string) ([]byte, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, uploadFieldName, filepath.Base(path)))
	header.Set("Content-Type", uploadContentType)

	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// classifyUploadError maps a client error onto the journal's three failure branches.
func classifyUploadError(err error) models.UploadErrorKind {
	var (
		verifyErr    *tls.CertificateVerificationError
		authorityErr x509.UnknownAuthorityError
		hostnameErr  x509.HostnameError
		invalidErr   x509.CertificateInvalidError
		recordErr    tls.RecordHeaderError
		alertErr     tls.AlertError
	)
	switch {
	case errors.As(err, &verifyErr),
		errors.As(err, &authorityErr),
		errors.As(err, &hostnameErr),
		errors.As(err, &invalidErr),
		errors.As(err, &recordErr),
		errors.As(err, &alertErr):
		return models.UploadErrTLS
	case errors.Is(err, context.DeadlineExceeded):
		return models.UploadErrTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return models.UploadErrTimeout
	}
	return models.UploadErrTransport
}

// leveledLogger adapts [log.Logger] to [retryablehttp.LeveledLogger].
type leveledLogger struct {
	l *log.Logger
}

func (a leveledLogger) Error(msg string, kv ...any) { a.l.Error(msg, kv...) }
func (a leveledLogger) Info(msg string, kv ...any)  { a.l.Debug(msg, kv...) }
func (a leveledLogger) Debug(msg string, kv ...any) { a.l.Debug(msg, kv...) }
func (a leveledLogger) Warn(msg string, kv ...any)  { a.l.Warn(msg, kv...) }
