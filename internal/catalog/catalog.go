// Package catalog resolves assembly identifiers through a remote catalog and
// keeps downloaded assembly files in a local cache.
package catalog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog/log"
	"github.com/sethvargo/go-envconfig"

	"github.com/tensorplex-labs/brainscore/internal/assembly"
	"github.com/tensorplex-labs/brainscore/internal/config"
	"github.com/tensorplex-labs/brainscore/internal/errs"
	"github.com/tensorplex-labs/brainscore/internal/store"
)

// Entry describes one catalog assembly.
type Entry struct {
	Identifier string `json:"identifier"`
	URL        string `json:"url"`
	SHA256     string `json:"sha256"`
	Compressed bool   `json:"compressed"`
}

type Client struct {
	api      *resty.Client
	http     *retryablehttp.Client
	baseURL  string
	cacheDir string
}

func NewClient(cfg *config.CatalogEnvConfig) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}
	if cfg.CatalogURL == "" {
		return nil, errs.Configurationf("catalog url is empty")
	}
	baseURL := strings.TrimRight(cfg.CatalogURL, "/")

	api := resty.New().
		SetBaseURL(baseURL).
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal).
		SetTimeout(cfg.Timeout)

	client := retryablehttp.NewClient()
	client.RetryMax = cfg.RetryMax
	client.HTTPClient.Timeout = cfg.Timeout
	client.RetryWaitMin = cfg.RetryWaitMin
	client.RetryWaitMax = cfg.RetryWaitMax
	client.Logger = nil

	log.Info().
		Str("base_url", baseURL).
		Str("cache_dir", cfg.CacheDir).
		Int("retry_max", client.RetryMax).
		Str("timeout", cfg.Timeout.String()).
		Msg("catalog client initialized")

	return &Client{
		api:      api,
		http:     client,
		baseURL:  baseURL,
		cacheDir: cfg.CacheDir,
	}, nil
}

// NewClientFromEnv configures a client from the ASSEMBLY_CATALOG_* and
// ASSEMBLY_CACHE_DIR variables.
func NewClientFromEnv(ctx context.Context) (*Client, error) {
	var envCfg config.CatalogEnvConfig
	if err := envconfig.Process(ctx, &envCfg); err != nil {
		return nil, fmt.Errorf("process catalog environment: %w", err)
	}
	return NewClient(&envCfg)
}

// Lookup fetches the catalog entry of identifier.
func (c *Client) Lookup(ctx context.Context, identifier string) (Entry, error) {
	if err := validIdentifier(identifier); err != nil {
		return Entry{}, err
	}
	var out Entry
	resp, err := c.api.R().
		SetContext(ctx).
		SetPathParam("identifier", identifier).
		SetResult(&out).
		Get("/assemblies/{identifier}")
	if err != nil {
		log.Error().Err(err).Str("identifier", identifier).Msg("catalog lookup failed")
		return Entry{}, fmt.Errorf("lookup %s: %w", identifier, err)
	}
	if resp.IsError() {
		log.Error().Int("status", resp.StatusCode()).Str("body", resp.String()).Str("identifier", identifier).Msg("catalog lookup non-2xx")
		return Entry{}, fmt.Errorf("lookup %s status %d: %s", identifier, resp.StatusCode(), resp.String())
	}
	if out.URL == "" || out.SHA256 == "" {
		return Entry{}, fmt.Errorf("lookup %s: catalog entry lacks url or sha256", identifier)
	}
	if strings.HasPrefix(out.URL, "/") {
		out.URL = c.baseURL + out.URL
	}
	return out, nil
}

// Fetch makes sure the file of identifier is in the cache and returns its
// path. A cached file is reused when its checksum still matches.
func (c *Client) Fetch(ctx context.Context, identifier string) (string, error) {
	entry, err := c.Lookup(ctx, identifier)
	if err != nil {
		return "", err
	}

	name := identifier + ".json"
	if entry.Compressed {
		name += store.CompressedSuffix
	}
	path := filepath.Join(c.cacheDir, name)

	if sum, err := fileSHA256(path); err == nil && strings.EqualFold(sum, entry.SHA256) {
		log.Debug().Str("identifier", identifier).Str("path", path).Msg("using cached assembly")
		return path, nil
	}

	if err := os.MkdirAll(c.cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}
	if err := c.download(ctx, entry, path); err != nil {
		return "", err
	}
	return path, nil
}

// Load fetches identifier and decodes it.
func (c *Client) Load(ctx context.Context, identifier string) (*assembly.Assembly, error) {
	path, err := c.Fetch(ctx, identifier)
	if err != nil {
		return nil, err
	}
	return store.ReadAssembly(path)
}

// Loader binds identifier for lazy loading, e.g. as a benchmark target.
func (c *Client) Loader(identifier string) func(context.Context) (*assembly.Assembly, error) {
	return func(ctx context.Context) (*assembly.Assembly, error) {
		return c.Load(ctx, identifier)
	}
}

func (c *Client) download(ctx context.Context, entry Entry, path string) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, entry.URL, nil)
	if err != nil {
		return fmt.Errorf("build download request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		log.Error().Err(err).Str("url", entry.URL).Msg("assembly download failed")
		return fmt.Errorf("download %s: %w", entry.Identifier, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("download %s status %d", entry.Identifier, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create download file: %w", err)
	}
	defer os.Remove(tmp.Name())

	hasher := sha256.New()
	n, err := io.Copy(io.MultiWriter(tmp, hasher), resp.Body)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", entry.Identifier, err)
	}

	sum := hex.EncodeToString(hasher.Sum(nil))
	if !strings.EqualFold(sum, entry.SHA256) {
		return fmt.Errorf("download %s: sha256 %s does not match catalog %s", entry.Identifier, sum, entry.SHA256)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("store %s: %w", entry.Identifier, err)
	}

	log.Info().Str("identifier", entry.Identifier).Int64("bytes", n).Str("path", path).Msg("assembly downloaded")
	return nil
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

func validIdentifier(identifier string) error {
	if identifier == "" || strings.ContainsAny(identifier, `/\`) || strings.Contains(identifier, "..") {
		return errs.Configurationf("invalid assembly identifier %q", identifier)
	}
	return nil
}
