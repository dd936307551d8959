package processor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"photobridge/internal/domain"
	"photobridge/internal/domain/ports/adapter"
	"photobridge/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.ImageProcessor = (*MultipartAdapter)(nil)

// Options describes the processor's submission form.
type Options struct {
	URL            string
	APIKeyHeader   string // sent only when both header and value are set
	APIKeyValue    string
	FileField      string // default "photo"
	JobIDField     string // default "id_gen"
	CallbackField  string // default "webhook"
	Timeout        time.Duration
	MaxErrorDetail int // bytes of a rejection body kept in DispatchError.Detail
}

// MultipartAdapter posts one photo per job as multipart/form-data. The processor
// answers asynchronously through the callback URL; only the HTTP status of the
// submission is inspected here.
type MultipartAdapter struct {
	opts   Options
	client *http.Client
	log    *zerolog.Logger
}

func NewMultipartAdapter(opts Options, logger *zerolog.Logger) (*MultipartAdapter, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return nil, errors.New("processor url empty")
	}
	if opts.FileField == "" {
		opts.FileField = "photo"
	}
	if opts.JobIDField == "" {
		opts.JobIDField = "id_gen"
	}
	if opts.CallbackField == "" {
		opts.CallbackField = "webhook"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxErrorDetail <= 0 {
		opts.MaxErrorDetail = 300
	}
	return &MultipartAdapter{
		opts:   opts,
		client: &http.Client{Timeout: opts.Timeout},
		log:    logger,
	}, nil
}

func (m *MultipartAdapter) Dispatch(ctx context.Context, req adapter.DispatchRequest) error {
	start := time.Now()
	err := m.dispatch(ctx, req)
	metrics.ObserveDispatch(time.Since(start), err == nil)
	return err
}

func (m *MultipartAdapter) dispatch(ctx context.Context, req adapter.DispatchRequest) error {
	body, contentType, err := m.encode(req)
	if err != nil {
		return &domain.DispatchError{Detail: "encode form", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.opts.URL, body)
	if err != nil {
		return &domain.DispatchError{Detail: "build request", Err: err}
	}
	httpReq.Header.Set("Content-Type", contentType)
	if m.opts.APIKeyHeader != "" && m.opts.APIKeyValue != "" {
		httpReq.Header.Set(m.opts.APIKeyHeader, m.opts.APIKeyValue)
	}

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return &domain.DispatchError{Detail: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, int64(m.opts.MaxErrorDetail)))
		m.log.Warn().Int("status", resp.StatusCode).Msg("processor rejected submission")
		return &domain.DispatchError{Status: resp.StatusCode, Detail: strings.TrimSpace(string(detail))}
	}
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	return nil
}

func (m *MultipartAdapter) encode(req adapter.DispatchRequest) (*bytes.Buffer, string, error) {
	fileName := req.FileName
	if fileName == "" {
		fileName = "photo.jpg"
	}

	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	if err := w.WriteField(m.opts.JobIDField, req.JobID); err != nil {
		return nil, "", err
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, m.opts.FileField, fileName))
	h.Set("Content-Type", "image/jpeg")
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(req.Image); err != nil {
		return nil, "", err
	}

	if err := w.WriteField(m.opts.CallbackField, req.CallbackURL); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}
