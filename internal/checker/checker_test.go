package checker

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"
	charmlog "github.com/charmbracelet/log"
	"github.com/knmi/adaguc-checker/internal/cfcheck"
	"github.com/knmi/adaguc-checker/internal/report"
	"github.com/knmi/adaguc-checker/internal/wms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const capabilities = `<?xml version="1.0" encoding="UTF-8"?>
<WMS_Capabilities xmlns="http://www.opengis.net/wms" version="1.3.0">
  <Capability>
    <Layer>
      <Title>tas.nc</Title>
      <Layer queryable="1">
        <Name>tas</Name>
        <BoundingBox CRS="EPSG:4326" minx="50" miny="0" maxx="55" maxy="8"/>
      </Layer>
      <Layer queryable="1">
        <Name>orog</Name>
        <BoundingBox CRS="EPSG:28992" minx="0" miny="300000" maxx="280000" maxy="625000"/>
      </Layer>
    </Layer>
  </Capability>
</WMS_Capabilities>`

const getcapReport = `{"messages":[{"category":"GENERAL","documentationLink":"","message":"capabilities generated","severity":"INFO"}],"checkerVersion":"2.0"}`

const getmapReport = `{"messages":[{"category":"DIMENSION","documentationLink":"https://example.org/time","message":"no time dimension","severity":"WARNING"}]}`

func solidPNG(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 10, 9))
	for y := 0; y < 9; y++ {
		for x := 0; x < 10; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// fakeServers serves the ADAGUC server and both base-layer services from one
// httptest server. The ADAGUC handler writes checker_report.txt into
// outputDir before answering, the way the real server does.
type fakeServers struct {
	outputDir      string
	capStatus      int
	backgroundDown bool
	layerPNG       []byte
	basePNG        []byte

	mu       sync.Mutex
	requests []string
}

func (f *fakeServers) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func (f *fakeServers) handler(t *testing.T) http.Handler {
	reportPath := filepath.Join(f.outputDir, report.ReportFileName)
	mux := http.NewServeMux()
	mux.HandleFunc("/adaguc-services/adagucserver", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f.mu.Lock()
		f.requests = append(f.requests, q.Get("REQUEST")+" "+q.Get("LAYERS"))
		f.mu.Unlock()
		switch q.Get("REQUEST") {
		case "GetCapabilities":
			if f.capStatus != 0 {
				http.Error(w, "boom", f.capStatus)
				return
			}
			assert.NoError(t, os.WriteFile(reportPath, []byte(getcapReport), 0644))
			w.Header().Set("Content-Type", "text/xml")
			w.Write([]byte(capabilities))
		case "GetMap":
			assert.NoError(t, os.WriteFile(reportPath, []byte(getmapReport), 0644))
			w.Header().Set("Content-Type", "image/png")
			w.Write(f.layerPNG)
		default:
			http.Error(w, "bad request", http.StatusBadRequest)
		}
	})
	mux.HandleFunc("/cgi-bin/bgmaps.cgi", func(w http.ResponseWriter, r *http.Request) {
		if f.backgroundDown {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(f.basePNG)
	})
	mux.HandleFunc("/cgi-bin/worldmaps.cgi", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(f.basePNG)
	})
	return mux
}

func newFakeServers(t *testing.T) (*fakeServers, *wms.Client) {
	t.Helper()
	f := &fakeServers{
		outputDir: t.TempDir(),
		layerPNG:  solidPNG(t, color.NRGBA{R: 255, A: 128}),
		basePNG:   solidPNG(t, color.NRGBA{B: 255, A: 255}),
	}
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)

	cfg := wms.DefaultConfig()
	cfg.BaseURL = srv.URL + "/adaguc-services/adagucserver?"
	cfg.BackgroundURL = srv.URL + "/cgi-bin/bgmaps.cgi?"
	cfg.CountriesURL = srv.URL + "/cgi-bin/worldmaps.cgi?"
	cfg.Timeout = 5 * time.Second
	cfg.MaxRetries = 0
	return f, wms.NewClient(cfg)
}

func writeNetCDF(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "tas.nc")

	cw, err := cdf.OpenWriter(path)
	require.NoError(t, err)

	global, err := util.NewOrderedMap([]string{"Conventions"}, map[string]any{"Conventions": "CF-1.6"})
	require.NoError(t, err)
	require.NoError(t, cw.AddGlobalAttrs(global))

	attrs, err := util.NewOrderedMap([]string{"units"}, map[string]any{"units": "K"})
	require.NoError(t, err)
	require.NoError(t, cw.AddVar("tas", api.Variable{
		Values:     []float32{280.1, 281.2},
		Dimensions: []string{"lat"},
		Attributes: attrs,
	}))
	require.NoError(t, cw.Close())
	return path
}

func TestRunAllChecks(t *testing.T) {
	f, client := newFakeServers(t)
	inputDir := t.TempDir()
	imageDir := t.TempDir()
	path := writeNetCDF(t, inputDir)

	ctrl := gomock.NewController(t)
	runner := cfcheck.NewMockRunner(ctrl)
	runner.EXPECT().Run(gomock.Any(), path, "CF-1.6").Return("ERROR: (2.6.1): No 'Conventions' attribute present\n", nil)

	var stderr bytes.Buffer
	c, err := New(runner, client, Options{
		Checks:      Checks{Standard: true, Adaguc: true},
		InputDir:    inputDir,
		OutputDir:   f.outputDir,
		ImageDir:    imageDir,
		AutoVersion: true,
		Stderr:      &stderr,
	})
	require.NoError(t, err)

	r, err := c.Run(context.Background(), path)
	require.NoError(t, err)

	require.NotNil(t, r.CFCheck)
	assert.Equal(t, report.Counts{Errors: 1}, r.CFCheck.Counts)

	require.NotNil(t, r.GetCap)
	assert.Equal(t, CapabilitiesName, r.GetCap.ReportName)
	assert.Equal(t, capabilities, r.GetCap.XML)
	assert.Contains(t, r.GetCap.Extra, "checkerVersion")
	require.Len(t, r.GetCap.Messages, 2)
	assert.Equal(t, "capabilities generated", r.GetCap.Messages[0].Message)
	assert.Equal(t, "Layer orog has no EPSG:4326 bounding box", r.GetCap.Messages[1].Message)
	assert.Equal(t, report.Counts{Warnings: 1, Info: 1}, r.GetCap.Counts)

	require.Len(t, r.GetMap, 1)
	layer := r.GetMap[0]
	assert.Equal(t, "tas", layer.ReportName)
	require.Len(t, layer.Messages, 1)
	assert.Equal(t, "DIMENSION", layer.Messages[0].Category)
	assert.Equal(t, report.Counts{Warnings: 1}, layer.Counts)

	data, err := base64.StdEncoding.DecodeString(layer.Image)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 10, 9), img.Bounds())

	saved, err := os.ReadFile(filepath.Join(imageDir, "tas.nc.tas.png"))
	require.NoError(t, err)
	assert.Equal(t, f.layerPNG, saved)

	assert.Equal(t, report.Counts{Errors: 1, Warnings: 2, Info: 1}, r.Counts)
	assert.Equal(t, []string{"GetCapabilities ", "GetMap tas"}, f.seen())
	assert.Empty(t, stderr.String())
}

func TestRunStandardUnreadableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.nc")
	require.NoError(t, os.WriteFile(path, []byte("this is not netcdf"), 0644))

	ctrl := gomock.NewController(t)
	runner := cfcheck.NewMockRunner(ctrl)
	runner.EXPECT().Run(gomock.Any(), path, "").Return("", errors.New("cfchecks exited without output"))

	var stderr bytes.Buffer
	c, err := New(runner, nil, Options{
		Checks:      Checks{Standard: true},
		AutoVersion: true,
		Stderr:      &stderr,
	})
	require.NoError(t, err)

	r, err := c.Run(context.Background(), path)
	require.NoError(t, err)

	assert.Nil(t, r.GetCap)
	assert.Nil(t, r.GetMap)
	require.NotNil(t, r.CFCheck)
	require.Len(t, r.CFCheck.Messages, 2)
	assert.Equal(t, cfcheck.ExceptionMessage, r.CFCheck.Messages[0].Message)
	assert.True(t, strings.HasPrefix(r.CFCheck.Messages[1].Message, "File is not a readable NetCDF file: "))
	assert.Equal(t, report.Counts{Errors: 2}, r.Counts)
	assert.Contains(t, stderr.String(), cfcheck.ExceptionMessage)
}

func TestRunStandardWithoutAutoVersion(t *testing.T) {
	path := writeNetCDF(t, t.TempDir())

	ctrl := gomock.NewController(t)
	runner := cfcheck.NewMockRunner(ctrl)
	runner.EXPECT().Run(gomock.Any(), path, "").Return("INFO: fine\n", nil)

	c, err := New(runner, nil, Options{Checks: Checks{Standard: true}})
	require.NoError(t, err)

	r, err := c.Run(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, report.Counts{Info: 1}, r.Counts)
}

func TestRunAdagucCapabilitiesFailure(t *testing.T) {
	f, client := newFakeServers(t)
	f.capStatus = http.StatusInternalServerError

	var stderr bytes.Buffer
	c, err := New(nil, client, Options{
		Checks:    Checks{Adaguc: true},
		OutputDir: f.outputDir,
		Stderr:    &stderr,
	})
	require.NoError(t, err)

	r, err := c.Run(context.Background(), "/data/in/tas.nc")
	require.NoError(t, err)

	assert.Nil(t, r.CFCheck)
	require.NotNil(t, r.GetCap)
	assert.Empty(t, r.GetCap.XML)
	require.Len(t, r.GetCap.Messages, 1)
	assert.True(t, strings.HasPrefix(r.GetCap.Messages[0].Message, "Not possible to determine layers: "))
	assert.Empty(t, r.GetMap)
	assert.Equal(t, report.Counts{Errors: 1}, r.Counts)
	assert.Contains(t, stderr.String(), "GetCapabilities failed")
}

func TestRunAdagucNoticesAreNotLoggedTwice(t *testing.T) {
	var logged bytes.Buffer
	logger := charmlog.NewWithOptions(&logged, charmlog.Options{Level: charmlog.InfoLevel})
	previous := slog.Default()
	slog.SetDefault(slog.New(logger))
	t.Cleanup(func() { slog.SetDefault(previous) })

	f, client := newFakeServers(t)
	f.capStatus = http.StatusInternalServerError

	var stderr bytes.Buffer
	c, err := New(nil, client, Options{
		Checks:    Checks{Adaguc: true},
		OutputDir: f.outputDir,
		Stderr:    &stderr,
	})
	require.NoError(t, err)

	_, err = c.Run(context.Background(), "/data/in/tas.nc")
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(stderr.String(), "GetCapabilities failed"))
	assert.NotContains(t, logged.String(), "GetCapabilities failed")
}

func TestRunAdagucOutputDirMissing(t *testing.T) {
	f, client := newFakeServers(t)
	outputDir := filepath.Join(t.TempDir(), "missing")

	var stderr bytes.Buffer
	c, err := New(nil, client, Options{
		Checks:      Checks{Adaguc: true},
		OutputDir:   outputDir,
		LockTimeout: time.Second,
		Stderr:      &stderr,
	})
	require.NoError(t, err)

	r, err := c.Run(context.Background(), "/data/in/tas.nc")
	require.NoError(t, err)

	assert.Equal(t, []string{"GetCapabilities ", "GetMap tas"}, f.seen())

	require.NotNil(t, r.GetCap)
	assert.Equal(t, capabilities, r.GetCap.XML)
	require.NotEmpty(t, r.GetCap.Messages)
	assert.Equal(t, report.SeverityWarning, r.GetCap.Messages[0].Severity)
	assert.True(t, strings.HasPrefix(r.GetCap.Messages[0].Message, "Could not lock the ADAGUC server report, reading it unlocked: "))
	for _, m := range r.GetCap.Messages {
		assert.NotContains(t, m.Message, "Not possible to determine layers")
	}

	require.Len(t, r.GetMap, 1)
	layer := r.GetMap[0]
	assert.Equal(t, "tas", layer.ReportName)
	assert.NotEmpty(t, layer.Image)
	require.Len(t, layer.Messages, 1)
	assert.Equal(t, report.SeverityWarning, layer.Messages[0].Severity)
	assert.Equal(t, report.Counts{Warnings: 1}, layer.Counts)
	assert.Zero(t, r.Errors)

	assert.Contains(t, stderr.String(), "acquiring lock")
}

func TestRunAdagucWithoutBaseLayers(t *testing.T) {
	f, client := newFakeServers(t)
	f.backgroundDown = true

	c, err := New(nil, client, Options{
		Checks:    Checks{Adaguc: true},
		OutputDir: f.outputDir,
		Stderr:    &bytes.Buffer{},
	})
	require.NoError(t, err)

	r, err := c.Run(context.Background(), "/data/in/tas.nc")
	require.NoError(t, err)

	require.Len(t, r.GetMap, 1)
	layer := r.GetMap[0]
	require.Len(t, layer.Messages, 2)
	assert.Equal(t, NoBaseLayersMessage, layer.Messages[1].Message)
	assert.Equal(t, report.SeverityWarning, layer.Messages[1].Severity)
	assert.NotEmpty(t, layer.Image, "layer is still drawn over the countries")
}

func TestRunAdagucMissingImageDir(t *testing.T) {
	f, client := newFakeServers(t)
	missing := filepath.Join(t.TempDir(), "missing")

	var stderr bytes.Buffer
	c, err := New(nil, client, Options{
		Checks:    Checks{Adaguc: true},
		OutputDir: f.outputDir,
		ImageDir:  missing,
		Stderr:    &stderr,
	})
	require.NoError(t, err)

	_, err = c.Run(context.Background(), "/data/in/tas.nc")
	require.NoError(t, err)

	assert.Contains(t, stderr.String(), "image directory "+missing+" does not exist")
	_, statErr := os.Stat(missing)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunAdagucMalformedServerReport(t *testing.T) {
	f, client := newFakeServers(t)
	reportPath := filepath.Join(f.outputDir, report.ReportFileName)

	// A capabilities request that fails leaves whatever is on disk.
	f.capStatus = http.StatusBadRequest
	require.NoError(t, os.WriteFile(reportPath, []byte("{truncated"), 0644))

	c, err := New(nil, client, Options{
		Checks:    Checks{Adaguc: true},
		OutputDir: f.outputDir,
		Stderr:    &bytes.Buffer{},
	})
	require.NoError(t, err)

	r, err := c.Run(context.Background(), "/data/in/tas.nc")
	require.NoError(t, err)

	require.Len(t, r.GetCap.Messages, 2)
	assert.Contains(t, r.GetCap.Messages[0].Message, "Could not read the ADAGUC server report")
	assert.Equal(t, report.Counts{Errors: 2}, r.GetCap.Counts)
}

func TestRunCancelledContext(t *testing.T) {
	f, client := newFakeServers(t)
	c, err := New(nil, client, Options{Checks: Checks{Adaguc: true}, OutputDir: f.outputDir, Stderr: &bytes.Buffer{}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = c.Run(ctx, "/data/in/tas.nc")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(nil, nil, Options{Checks: Checks{Standard: true}})
	assert.Error(t, err)

	_, err = New(nil, nil, Options{Checks: Checks{Adaguc: true}})
	assert.Error(t, err)
}
