package server

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-envconfig"

	"github.com/tensorplex-labs/brainscore/internal/config"
	"github.com/tensorplex-labs/brainscore/internal/store"
)

// Client talks to a scoring server. Request bodies are sent zstd
// compressed and zstd responses are accepted.
type Client struct {
	restyClient *resty.Client
	encoder     *zstd.Encoder
	decoder     *zstd.Decoder
}

func NewClient(cfg *config.ClientEnvConfig) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("server url is empty")
	}

	restyClient := resty.New().
		SetBaseURL(strings.TrimSuffix(cfg.ServerURL, "/")).
		SetTimeout(cfg.Timeout).
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal).
		SetHeader("Accept-Encoding", "zstd")

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	log.Debug().Str("server_url", cfg.ServerURL).Str("timeout", cfg.Timeout.String()).Msg("scoring client initialized")
	return &Client{restyClient: restyClient, encoder: encoder, decoder: decoder}, nil
}

// NewClientFromEnv configures a client from SCORING_SERVER_URL and
// SCORING_CLIENT_TIMEOUT.
func NewClientFromEnv(ctx context.Context) (*Client, error) {
	var envCfg config.ClientEnvConfig
	if err := envconfig.Process(ctx, &envCfg); err != nil {
		return nil, fmt.Errorf("process client environment: %w", err)
	}
	return NewClient(&envCfg)
}

// Close cleans up client resources
func (c *Client) Close() {
	c.encoder.Close()
	c.decoder.Close()
}

func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var out HealthResponse
	err := do(ctx, c, c.restyClient.R().SetContext(ctx), "GET", "/health", &out)
	return out, err
}

func (c *Client) Metrics(ctx context.Context) (MetricsResponse, error) {
	var out MetricsResponse
	err := do(ctx, c, c.restyClient.R().SetContext(ctx), "GET", "/metrics", &out)
	return out, err
}

// Score asks the server to evaluate req.
func (c *Client) Score(ctx context.Context, req ScoreRequest) (store.ScoreRecord, error) {
	jsonData, err := sonic.Marshal(req)
	if err != nil {
		return store.ScoreRecord{}, fmt.Errorf("failed to marshal request: %w", err)
	}
	compressed := c.encoder.EncodeAll(jsonData, nil)

	r := c.restyClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Content-Encoding", "zstd").
		SetBody(compressed)

	log.Trace().
		Int("size", len(jsonData)).
		Int("compressed_size", len(compressed)).
		Str("metric", req.Metric).
		Msg("Sending score request")

	var out store.ScoreRecord
	err = do(ctx, c, r, "POST", "/score", &out)
	return out, err
}

// ScoreMany sends requests concurrently; errs[i] belongs to requests[i].
func (c *Client) ScoreMany(ctx context.Context, requests []ScoreRequest) ([]store.ScoreRecord, []error) {
	records := make([]store.ScoreRecord, len(requests))
	errs := make([]error, len(requests))

	var wg sync.WaitGroup
	wg.Add(len(requests))
	for i, req := range requests {
		go func() {
			defer wg.Done()
			rec, err := c.Score(ctx, req)
			if err != nil {
				errs[i] = fmt.Errorf("error in request %d: %w", i, err)
				return
			}
			records[i] = rec
		}()
	}
	wg.Wait()
	return records, errs
}

func do[T any](ctx context.Context, c *Client, r *resty.Request, method, path string, out *T) error {
	resp, err := r.Execute(method, path)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("failed to make request: %w", err)
	}

	responseBody := resp.Body()
	if resp.Header().Get("Content-Encoding") == "zstd" {
		decompressed, err := c.decoder.DecodeAll(responseBody, nil)
		if err != nil {
			return fmt.Errorf("failed to decompress response: %w", err)
		}
		responseBody = decompressed
	}

	var std StdResponse[T]
	if err := sonic.Unmarshal(responseBody, &std); err != nil {
		if resp.IsError() {
			return fmt.Errorf("HTTP error %d: %s", resp.StatusCode(), string(responseBody))
		}
		return fmt.Errorf("failed to unmarshal StdResponse: %w", err)
	}
	if std.Error != nil {
		log.Error().Int("status", resp.StatusCode()).Str("error", *std.Error).Str("path", path).Msg("server returned error")
		return fmt.Errorf("server error %d: %s", resp.StatusCode(), *std.Error)
	}
	if resp.IsError() {
		return fmt.Errorf("HTTP error %d: %s", resp.StatusCode(), string(responseBody))
	}
	*out = std.Body
	return nil
}
