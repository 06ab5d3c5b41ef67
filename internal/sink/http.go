package sink

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/synheart/synheart-guard/internal/encoding"
	"github.com/synheart/synheart-guard/internal/models"
)

// HTTP sink routes.
const (
	PathSamples     = "/v1/samples"
	PathWarnings    = "/v1/warnings"
	PathStrategies  = "/v1/strategies"
	PathResolutions = "/v1/resolutions"
)

// StatusError is a non-2xx answer from the ingestion API.
type StatusError struct {
	Op     string
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s rejected: %s", e.Op, e.Status)
}

func statusError(op string, resp *resty.Response) error {
	return &StatusError{Op: op, Code: resp.StatusCode(), Status: resp.Status()}
}

// HTTPSink posts to a remote ingestion API.
type HTTPSink struct {
	client   *resty.Client
	encoder  encoding.Encoder
	deviceID func() string
	logger   *zap.Logger
}

// HTTPOptions configures an HTTPSink.
type HTTPOptions struct {
	BaseURL string
	Timeout time.Duration
	Format  encoding.Format
	Headers map[string]string
	// DeviceID, when set, tags each sample batch.
	DeviceID func() string
}

func NewHTTPSink(opts HTTPOptions, logger *zap.Logger) *HTTPSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	client := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json")
	for k, v := range opts.Headers {
		client.SetHeader(k, v)
	}
	deviceID := opts.DeviceID
	if deviceID == nil {
		deviceID = func() string { return "" }
	}
	return &HTTPSink{
		client:   client,
		encoder:  encoding.NewEncoder(opts.Format),
		deviceID: deviceID,
		logger:   logger,
	}
}

func (h *HTTPSink) InsertSamples(ctx context.Context, samples []models.BiometricSample) error {
	if len(samples) == 0 {
		return nil
	}
	batch := encoding.Batch{
		ID:       uuid.New().String(),
		DeviceID: h.deviceID(),
		Samples:  samples,
	}
	body, err := h.encoder.Encode(batch)
	if err != nil {
		return fmt.Errorf("failed to encode batch: %w", err)
	}

	resp, err := h.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", h.encoder.ContentType()).
		SetBody(body).
		Post(PathSamples)
	if err != nil {
		return fmt.Errorf("failed to post samples: %w", err)
	}
	if resp.IsError() {
		return statusError("sample upload", resp)
	}

	h.logger.Debug("sample batch delivered",
		zap.String("batch_id", batch.ID),
		zap.Int("count", len(samples)),
	)
	return nil
}

func (h *HTTPSink) InsertWarning(ctx context.Context, event models.WarningEvent) error {
	resp, err := h.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(event).
		Post(PathWarnings)
	if err != nil {
		return fmt.Errorf("failed to post warning event: %w", err)
	}
	if resp.IsError() {
		return statusError("warning event", resp)
	}
	return nil
}

func (h *HTTPSink) UpdateWarning(ctx context.Context, event models.WarningEvent) error {
	resp, err := h.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(event).
		Put(PathWarnings + "/" + url.PathEscape(event.ID))
	if err != nil {
		return fmt.Errorf("failed to update warning event: %w", err)
	}
	if resp.IsError() {
		return statusError("warning event update", resp)
	}
	return nil
}

func (h *HTTPSink) QueryStrategies(ctx context.Context) ([]models.Strategy, error) {
	var strategies []models.Strategy
	resp, err := h.client.R().
		SetContext(ctx).
		SetResult(&strategies).
		Get(PathStrategies)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch strategies: %w", err)
	}
	if resp.IsError() {
		return nil, statusError("strategy query", resp)
	}
	return strategies, nil
}

func (h *HTTPSink) InsertResolution(ctx context.Context, res models.Resolution) error {
	resp, err := h.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(res).
		Post(PathResolutions)
	if err != nil {
		return fmt.Errorf("failed to post resolution: %w", err)
	}
	if resp.IsError() {
		return statusError("resolution", resp)
	}
	return nil
}
