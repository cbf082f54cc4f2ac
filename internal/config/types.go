package config

import "time"

// Config is the top-level adaguc-checker configuration.
type Config struct {
	InputDir   string        `json:"input_dir"`
	OutputDir  string        `json:"output_dir"`
	LoggingDir string        `json:"logging_dir"`
	ImageDir   string        `json:"image_dir"`
	Checks     string        `json:"checks"`
	WMS        WMSConfig     `json:"wms"`
	CFCheck    CFCheckConfig `json:"cfcheck"`
	History    HistoryConfig `json:"history"`
}

// WMSConfig holds the WMS endpoints and transport settings.
type WMSConfig struct {
	BaseURL         string `json:"base_url"`
	BackgroundURL   string `json:"background_url"`
	BackgroundLayer string `json:"background_layer"`
	CountriesURL    string `json:"countries_url"`
	CountriesLayer  string `json:"countries_layer"`
	Width           int    `json:"width"`
	Height          int    `json:"height"`
	Timeout         string `json:"timeout"`
	MaxRetries      int    `json:"max_retries"`
	Insecure        bool   `json:"insecure"`
}

// ParseTimeout returns the request timeout as a time.Duration.
func (w WMSConfig) ParseTimeout() time.Duration {
	d, err := time.ParseDuration(w.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// CFCheckConfig controls how the external CF checker is run.
type CFCheckConfig struct {
	Path        string   `json:"path"`
	Args        []string `json:"args"`
	Timeout     string   `json:"timeout"`
	AutoVersion *bool    `json:"auto_version"`
}

// ParseTimeout returns the CF checker timeout as a time.Duration.
func (c CFCheckConfig) ParseTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 10 * time.Minute
	}
	return d
}

// IsAutoVersionEnabled reports whether the CF version is taken from the
// file's Conventions attribute. Defaults to true when not explicitly set.
func (c CFCheckConfig) IsAutoVersionEnabled() bool {
	if c.AutoVersion == nil {
		return true
	}
	return *c.AutoVersion
}

// HistoryConfig controls the run history database.
type HistoryConfig struct {
	Enabled *bool  `json:"enabled"`
	Path    string `json:"path"`
}

// IsEnabled reports whether runs are recorded. Defaults to true.
func (h HistoryConfig) IsEnabled() bool {
	if h.Enabled == nil {
		return true
	}
	return *h.Enabled
}

// boolPtr returns a pointer to the given bool value.
func boolPtr(b bool) *bool {
	return &b
}

// DefaultConfig returns a Config matching the dockerised ADAGUC setup.
func DefaultConfig() Config {
	return Config{
		Checks: "all",
		WMS: WMSConfig{
			BaseURL:         "http://adaguc-checker:8080/adaguc-services/adagucserver?",
			BackgroundURL:   "http://geoservices.knmi.nl/cgi-bin/bgmaps.cgi?",
			BackgroundLayer: "naturalearth2",
			CountriesURL:    "http://geoservices.knmi.nl/cgi-bin/worldmaps.cgi?",
			CountriesLayer:  "ne_10m_admin_0_countries_simplified",
			Width:           1000,
			Height:          900,
			Timeout:         "60s",
			MaxRetries:      2,
		},
		CFCheck: CFCheckConfig{
			Path:        "cfchecks",
			Args:        []string{},
			Timeout:     "10m",
			AutoVersion: boolPtr(true),
		},
		History: HistoryConfig{
			Enabled: boolPtr(true),
			Path:    "~/.local/share/adaguc-checker/history.db",
		},
	}
}
