// Package wms issues the WMS requests the ADAGUC checks need: capabilities
// and maps from the ADAGUC server, and background maps from a base-layer
// service.
package wms

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"
)

// maxBodySize bounds how much of a response is read.
const maxBodySize = 64 << 20

// Config controls the endpoints and transport of a Client.
type Config struct {
	BaseURL         string
	BackgroundURL   string
	BackgroundLayer string
	CountriesURL    string
	CountriesLayer  string
	Width           int
	Height          int
	Timeout         time.Duration
	MaxRetries      int
	RetryInterval   time.Duration
	Insecure        bool
}

// DefaultConfig returns the endpoints of the dockerised ADAGUC server and
// the KNMI base-layer services.
func DefaultConfig() Config {
	return Config{
		BaseURL:         "http://adaguc-checker:8080/adaguc-services/adagucserver?",
		BackgroundURL:   "http://geoservices.knmi.nl/cgi-bin/bgmaps.cgi?",
		BackgroundLayer: "naturalearth2",
		CountriesURL:    "http://geoservices.knmi.nl/cgi-bin/worldmaps.cgi?",
		CountriesLayer:  "ne_10m_admin_0_countries_simplified",
		Width:           1000,
		Height:          900,
		Timeout:         60 * time.Second,
		MaxRetries:      2,
		RetryInterval:   500 * time.Millisecond,
	}
}

// Client performs WMS GET requests.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient returns a Client with its own http.Client, isolated from
// http.DefaultClient.
func NewClient(cfg Config) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.Insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for self-signed ADAGUC deployments
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout, Transport: transport},
	}
}

// GetCapabilities requests the WMS 1.3.0 capabilities of the layers the
// server derives from source.
func (c *Client) GetCapabilities(ctx context.Context, source string) ([]byte, error) {
	q := query{
		{"source", source},
		{"SERVICE", "WMS"},
		{"VERSION", "1.3.0"},
		{"REQUEST", "GetCapabilities"},
	}
	body, _, err := c.get(ctx, joinURL(c.cfg.BaseURL, q))
	if err != nil {
		return nil, fmt.Errorf("GetCapabilities: %w", err)
	}
	return body, nil
}

// GetMap requests a PNG of layer from the ADAGUC server.
func (c *Client) GetMap(ctx context.Context, source string, layer Layer) ([]byte, error) {
	q := query{
		{"source", source},
		{"LAYERS", layer.Name},
	}
	q = append(q, c.mapParams()...)
	q = append(q, query{
		{"CRS", CRS},
		{"STYLES", "auto/nearest"},
		{"VERSION", "1.3.0"},
		{"BBOX", strings.Join([]string{layer.BBox.MinX, layer.BBox.MinY, layer.BBox.MaxX, layer.BBox.MaxY}, ",")},
	}...)
	return c.getImage(ctx, "GetMap "+layer.Name, joinURL(c.cfg.BaseURL, q))
}

// GetBaseLayers fetches the background map and the country outlines for
// bbox. Both are requested concurrently; an image whose request failed is
// nil and the first failure is returned.
func (c *Client) GetBaseLayers(ctx context.Context, bbox BBox) (background, countries []byte, err error) {
	var g errgroup.Group
	g.Go(func() error {
		var err error
		background, err = c.getBaseLayer(ctx, c.cfg.BackgroundURL, c.cfg.BackgroundLayer, bbox)
		return err
	})
	g.Go(func() error {
		var err error
		countries, err = c.getBaseLayer(ctx, c.cfg.CountriesURL, c.cfg.CountriesLayer, bbox)
		return err
	})
	err = g.Wait()
	return background, countries, err
}

// getBaseLayer requests a WMS 1.1.1 map. WMS 1.1.1 takes EPSG:4326 boxes in
// lon/lat order, so the axes of the 1.3.0 box are swapped.
func (c *Client) getBaseLayer(ctx context.Context, baseURL, layer string, bbox BBox) ([]byte, error) {
	q := query{{"LAYERS", layer}}
	q = append(q, c.mapParams()...)
	q = append(q, query{
		{"SRS", CRS},
		{"VERSION", "1.1.1"},
		{"BBOX", strings.Join([]string{bbox.MinY, bbox.MinX, bbox.MaxY, bbox.MaxX}, ",")},
	}...)
	return c.getImage(ctx, "base layer "+layer, joinURL(baseURL, q))
}

func (c *Client) mapParams() query {
	return query{
		{"SERVICE", "WMS"},
		{"REQUEST", "GetMap"},
		{"WIDTH", strconv.Itoa(c.cfg.Width)},
		{"HEIGHT", strconv.Itoa(c.cfg.Height)},
		{"FORMAT", "image/png"},
		{"TRANSPARENT", "TRUE"},
	}
}

// getImage fetches rawURL and rejects XML bodies, which is how WMS servers
// report exceptions with a 200 status.
func (c *Client) getImage(ctx context.Context, what, rawURL string) ([]byte, error) {
	body, contentType, err := c.get(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	if strings.Contains(contentType, "xml") {
		return nil, fmt.Errorf("%s: service exception: %s", what, snippet(body))
	}
	return body, nil
}

// get performs a GET, retrying network errors and 5xx responses with
// exponential backoff.
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, string, error) {
	slog.Debug("WMS request", "url", rawURL)

	type result struct {
		body        []byte
		contentType string
	}

	attempt := 0
	op := func() (result, error) {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return result{}, backoff.Permanent(fmt.Errorf("creating request: %w", err))
		}

		resp, err := c.http.Do(req)
		if err != nil {
			slog.Debug("WMS request failed", "attempt", attempt, "error", err)
			return result{}, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		if err != nil {
			return result{}, fmt.Errorf("reading response: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			err := &StatusError{Code: resp.StatusCode, Body: snippet(body)}
			if resp.StatusCode >= 500 {
				slog.Debug("WMS server error", "attempt", attempt, "status", resp.StatusCode)
				return result{}, err
			}
			return result{}, backoff.Permanent(err)
		}
		return result{body: body, contentType: resp.Header.Get("Content-Type")}, nil
	}

	b := backoff.NewExponentialBackOff()
	if c.cfg.RetryInterval > 0 {
		b.InitialInterval = c.cfg.RetryInterval
	}
	retries := c.cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)

	res, err := backoff.RetryWithData(op, policy)
	if err != nil {
		return nil, "", err
	}
	return res.body, res.contentType, nil
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("server returned status %d", e.Code)
	}
	return fmt.Sprintf("server returned status %d: %s", e.Code, e.Body)
}

func snippet(body []byte) string {
	const limit = 512
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		s = s[:limit] + "..."
	}
	return s
}

type param struct {
	key   string
	value string
}

// query keeps parameters in insertion order so request URLs read the way
// WMS documentation writes them.
type query []param

// valueEscaper restores characters that are legal in a query and common in
// WMS values (bounding boxes, CRS names, style paths).
var valueEscaper = strings.NewReplacer("%2C", ",", "%2F", "/", "%3A", ":")

func (q query) encode() string {
	parts := make([]string, 0, len(q))
	for _, p := range q {
		parts = append(parts, url.QueryEscape(p.key)+"="+valueEscaper.Replace(url.QueryEscape(p.value)))
	}
	return strings.Join(parts, "&")
}

// joinURL appends the query to base, which may already end in "?" or "&" or
// carry parameters of its own.
func joinURL(base string, q query) string {
	switch {
	case strings.HasSuffix(base, "?"), strings.HasSuffix(base, "&"):
		return base + q.encode()
	case strings.Contains(base, "?"):
		return base + "&" + q.encode()
	default:
		return base + "?" + q.encode()
	}
}
