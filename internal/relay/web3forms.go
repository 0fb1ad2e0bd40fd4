package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/beautylab-site/pkg/logging"
)

var web3formsTracer = otel.Tracer("beautylab.internal.relay.web3forms")

// DefaultEndpoint is the hosted Web3Forms submit URL.
const DefaultEndpoint = "https://api.web3forms.com/submit"

const maxAckBytes = 1 << 20

// Web3FormsConfig configures the multipart relay client.
type Web3FormsConfig struct {
	Endpoint  string
	AccessKey string
	// Subject and FromName are optional hints for the forwarded e-mail.
	Subject  string
	FromName string
	// Timeout bounds the whole round trip. Zero means no client timeout.
	Timeout time.Duration
}

// Web3Forms posts multipart form data to a Web3Forms compatible endpoint and
// interprets its {success, message} acknowledgement.
type Web3Forms struct {
	endpoint   string
	accessKey  string
	subject    string
	fromName   string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewWeb3Forms creates the default relay client.
func NewWeb3Forms(cfg Web3FormsConfig, logger *logging.Logger) *Web3Forms {
	if logger == nil {
		logger = logging.Default()
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Web3Forms{
		endpoint:   endpoint,
		accessKey:  cfg.AccessKey,
		subject:    cfg.Subject,
		fromName:   cfg.FromName,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.Component("relay.web3forms"),
	}
}

// WithHTTPClient swaps the HTTP client (tests, custom transports).
func (c *Web3Forms) WithHTTPClient(client *http.Client) *Web3Forms {
	if client != nil {
		c.httpClient = client
	}
	return c
}

// Submit sends one lead. No retries are attempted.
func (c *Web3Forms) Submit(ctx context.Context, sub Submission) (*Ack, error) {
	ctx, span := web3formsTracer.Start(ctx, "web3forms.submit", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("beautylab.service", sub.Service))

	body, contentType, err := c.encode(sub)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "encode")
		return nil, &TransportError{Op: "encode", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "build request")
		return nil, &TransportError{Op: "build request", Err: err}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "post")
		c.logger.Warn("relay unreachable", "error", err, "duration_ms", time.Since(start).Milliseconds())
		return nil, &TransportError{Op: "post", Err: err}
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	var ack Ack
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxAckBytes)).Decode(&ack); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode")
		c.logger.Warn("relay answered without a JSON acknowledgement",
			"status", resp.StatusCode,
			"error", err,
		)
		return nil, &TransportError{Op: "decode acknowledgement", Err: err}
	}

	c.logger.Info("relay answered",
		"status", resp.StatusCode,
		"success", ack.Success,
		"service", sub.Service,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if !ack.Success {
		span.SetStatus(codes.Error, "rejected")
		return &ack, &RejectedError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(ack.Message)}
	}
	return &ack, nil
}

func (c *Web3Forms) encode(sub Submission) (io.Reader, string, error) {
	if strings.TrimSpace(c.accessKey) == "" {
		return nil, "", errors.New("access key not configured")
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields := []struct{ name, value string }{
		{"name", sub.Name},
		{"phone", sub.Phone},
		{"email", sub.Email},
		{"service", sub.Service},
		{"message", sub.Message},
		{"access_key", c.accessKey},
	}
	if c.subject != "" {
		fields = append(fields, struct{ name, value string }{"subject", c.subject})
	}
	if c.fromName != "" {
		fields = append(fields, struct{ name, value string }{"from_name", c.fromName})
	}
	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", f.name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}
