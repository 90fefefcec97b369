package dem

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/terrain-cli/internal/resilience"
	"github.com/sells-group/terrain-cli/internal/terrain"
)

// HTTPConfig configures an OpenTopoData-compatible elevation API.
type HTTPConfig struct {
	BaseURL      string
	Dataset      string
	RPS          float64
	MaxLocations int
	Timeout      time.Duration
	Retry        resilience.RetryConfig
}

// HTTPOption configures an HTTPSource.
type HTTPOption func(*HTTPSource)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(s *HTTPSource) {
		s.httpClient = hc
	}
}

// WithLimiter replaces the request rate limiter.
func WithLimiter(l *rate.Limiter) HTTPOption {
	return func(s *HTTPSource) {
		s.limiter = l
	}
}

// HTTPSource queries GET {base}/v1/{dataset}?locations=lat,lon|... in
// batches of at most MaxLocations points.
type HTTPSource struct {
	endpoint     string
	maxLocations int
	retry        resilience.RetryConfig
	httpClient   *http.Client
	limiter      *rate.Limiter
}

type topoResponse struct {
	Status  string `json:"status"`
	Error   string `json:"error"`
	Results []struct {
		Elevation *float64 `json:"elevation"`
	} `json:"results"`
}

// NewHTTP creates an HTTPSource.
func NewHTTP(cfg HTTPConfig, opts ...HTTPOption) (*HTTPSource, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, terrain.NewSourceUnavailableError("http", eris.Errorf("dem: invalid base url %q", cfg.BaseURL))
	}
	if cfg.Dataset == "" {
		return nil, terrain.NewSourceUnavailableError("http", eris.New("dem: dataset is required"))
	}
	if cfg.MaxLocations <= 0 {
		cfg.MaxLocations = 100
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	rps := cfg.RPS
	if rps <= 0 {
		rps = 1
	}
	if cfg.Retry.OnRetry == nil {
		cfg.Retry.OnRetry = resilience.RetryLogger("http", "sample")
	}

	s := &HTTPSource{
		endpoint:     base.String() + "/v1/" + url.PathEscape(cfg.Dataset),
		maxLocations: cfg.MaxLocations,
		retry:        cfg.Retry,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		limiter:      rate.NewLimiter(rate.Limit(rps), max(1, int(rps))),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Name implements Source.
func (s *HTTPSource) Name() string { return "http" }

// NoData implements terrain.Source. Null elevations map to it.
func (s *HTTPSource) NoData() float64 { return NoDataValue }

// Close implements Source.
func (s *HTTPSource) Close() error { return nil }

// SampleAt implements terrain.Source.
func (s *HTTPSource) SampleAt(ctx context.Context, points []terrain.GeoPoint) ([]float64, error) {
	out := make([]float64, 0, len(points))
	for start := 0; start < len(points); start += s.maxLocations {
		end := min(start+s.maxLocations, len(points))
		batch := points[start:end]

		vals, err := resilience.DoVal(ctx, s.retry, func(ctx context.Context) ([]float64, error) {
			return s.fetch(ctx, batch)
		})
		if err != nil {
			return nil, err
		}
		out = append(out, vals...)
	}
	return out, nil
}

func (s *HTTPSource) fetch(ctx context.Context, batch []terrain.GeoPoint) ([]float64, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "dem: http rate limit")
	}

	reqURL := s.endpoint + "?" + url.Values{"locations": {formatLocations(batch)}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "dem: http build request")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "dem: http request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "dem: http read body")
	}

	var parsed topoResponse
	decodeErr := json.Unmarshal(body, &parsed)

	if resp.StatusCode != http.StatusOK {
		// Error bodies are not always JSON; parsed.Error is best effort.
		err := eris.Errorf("dem: http returned status %d: %s", resp.StatusCode, parsed.Error)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}
	if decodeErr != nil {
		return nil, eris.Wrap(decodeErr, "dem: http decode response")
	}
	if parsed.Status != "" && parsed.Status != "OK" {
		return nil, eris.Errorf("dem: http status %s: %s", parsed.Status, parsed.Error)
	}
	if len(parsed.Results) != len(batch) {
		return nil, eris.Errorf("dem: http returned %d results for %d locations", len(parsed.Results), len(batch))
	}

	vals := make([]float64, len(batch))
	for i, r := range parsed.Results {
		if r.Elevation == nil {
			vals[i] = NoDataValue
			continue
		}
		vals[i] = *r.Elevation
	}
	return vals, nil
}

func formatLocations(points []terrain.GeoPoint) string {
	var b strings.Builder
	for i, p := range points {
		if i > 0 {
			b.WriteByte('|')
		}
		b.WriteString(strconv.FormatFloat(p.Lat, 'f', -1, 64))
		b.WriteByte(',')
		b.WriteString(strconv.FormatFloat(p.Lon, 'f', -1, 64))
	}
	return b.String()
}
