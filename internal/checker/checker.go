// Package checker runs the CF and ADAGUC checks on one file and assembles
// their results into a single report.
package checker

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/knmi/adaguc-checker/internal/cfcheck"
	"github.com/knmi/adaguc-checker/internal/imaging"
	"github.com/knmi/adaguc-checker/internal/ncfile"
	"github.com/knmi/adaguc-checker/internal/report"
	"github.com/knmi/adaguc-checker/internal/store"
	"github.com/knmi/adaguc-checker/internal/wms"
)

// Messages added by the checker itself.
const (
	NoBaseLayersMessage = "No response from mapserver; mapimage could not be shown. This is not a Layer report error"
	CapabilitiesName    = "GetCapabilities"
)

// Options configure a Checker.
type Options struct {
	Checks Checks

	// InputDir is the directory the ADAGUC server resolves sources against.
	InputDir string
	// OutputDir is where the ADAGUC server writes checker_report.txt.
	OutputDir string
	// ImageDir, when set, receives the raw GetMap image of every layer.
	ImageDir string

	// AutoVersion passes the file's CF version to the CF checker.
	AutoVersion bool

	// LockTimeout bounds the wait for the server report lock.
	LockTimeout time.Duration

	// Stderr receives notices about failed requests. Defaults to os.Stderr.
	Stderr io.Writer
}

// Checker runs the selected checks.
type Checker struct {
	runner cfcheck.Runner
	client *wms.Client
	opts   Options
}

// New returns a Checker. client may be nil when the ADAGUC checks are not
// selected, runner may be nil when the standard checks are not selected.
func New(runner cfcheck.Runner, client *wms.Client, opts Options) (*Checker, error) {
	if opts.Checks.Standard && runner == nil {
		return nil, fmt.Errorf("standard checks need a CF checker")
	}
	if opts.Checks.Adaguc && client == nil {
		return nil, fmt.Errorf("adaguc checks need a WMS client")
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = store.DefaultLockTimeout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	return &Checker{runner: runner, client: client, opts: opts}, nil
}

// Run checks the file at path. Problems with the file or the servers become
// report messages; an error is returned only when ctx is done.
func (c *Checker) Run(ctx context.Context, path string) (*report.Report, error) {
	r := &report.Report{}

	if c.opts.Checks.Standard {
		r.CFCheck = c.runStandard(ctx, path)
	}
	if c.opts.Checks.Adaguc {
		r.GetCap, r.GetMap = c.runAdaguc(ctx, path)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.Recount()
	return r, nil
}

func (c *Checker) runStandard(ctx context.Context, path string) *report.CFReport {
	version := ""
	info, inspectErr := ncfile.Inspect(path)
	if inspectErr == nil && c.opts.AutoVersion {
		version = info.CFVersion()
		slog.Debug("CF version from Conventions", "conventions", info.Conventions(), "version", version)
	}

	cf, err := cfcheck.Check(ctx, c.runner, path, version)
	if err != nil {
		c.notice("%s: %v", cfcheck.ExceptionMessage, err)
	}

	if inspectErr != nil {
		cf.Append(report.NewMessage(report.SeverityError, fmt.Sprintf("File is not a readable NetCDF file: %v", inspectErr)))
	}
	return cf
}

func (c *Checker) runAdaguc(ctx context.Context, path string) (*report.ServerReport, []*report.ServerReport) {
	source := wms.SourceParam(c.opts.InputDir, path)
	slog.Debug("ADAGUC source", "source", source)

	doc, getcap := c.serverRequest(ctx, CapabilitiesName, func(ctx context.Context) ([]byte, error) {
		return c.client.GetCapabilities(ctx, source)
	})
	getcap.ReportName = CapabilitiesName
	getcap.XML = string(doc)

	layers := []*report.ServerReport{}

	found, skipped, err := wms.ParseLayers(doc)
	if err != nil {
		getcap.Append(report.NewMessage(report.SeverityError, fmt.Sprintf("Not possible to determine layers: %v", err)))
		return getcap, layers
	}
	for _, name := range skipped {
		getcap.Append(report.NewMessage(report.SeverityWarning, fmt.Sprintf("Layer %s has no %s bounding box", name, wms.CRS)))
	}

	for _, layer := range found {
		if ctx.Err() != nil {
			break
		}
		layers = append(layers, c.checkLayer(ctx, path, source, layer))
	}
	return getcap, layers
}

func (c *Checker) checkLayer(ctx context.Context, path, source string, layer wms.Layer) *report.ServerReport {
	mapImage, lr := c.serverRequest(ctx, "GetMap "+layer.Name, func(ctx context.Context) ([]byte, error) {
		return c.client.GetMap(ctx, source, layer)
	})
	lr.ReportName = layer.Name

	background, countries, err := c.client.GetBaseLayers(ctx, layer.BBox)
	if err != nil {
		slog.Warn("base layers unavailable", "layer", layer.Name, "error", err)
	}
	if background == nil || countries == nil {
		lr.Append(report.NewMessage(report.SeverityWarning, NoBaseLayersMessage))
	}

	composite, err := imaging.Composite(background, countries, mapImage)
	if err != nil {
		slog.Debug("compositing layer image", "layer", layer.Name, "error", err)
	}
	if composite != nil {
		lr.Image = base64.StdEncoding.EncodeToString(composite)
	}

	if c.opts.ImageDir != "" && mapImage != nil {
		c.saveImage(path, layer.Name, mapImage)
	}
	return lr
}

// serverRequest performs a WMS request against the ADAGUC server and reads
// the report it wrote for that request. The server writes every report to
// the same file, so request and read happen under one lock. When the lock
// cannot be taken the request still runs, unlocked, and the report says so.
func (c *Checker) serverRequest(ctx context.Context, what string, do func(context.Context) ([]byte, error)) ([]byte, *report.ServerReport) {
	reportPath := filepath.Join(c.opts.OutputDir, report.ReportFileName)

	var (
		body    []byte
		sr      *report.ServerReport
		readErr error
		locked  bool
	)
	lockErr := store.WithLock(ctx, reportPath, c.opts.LockTimeout, func() error {
		locked = true
		body, sr, readErr = c.requestAndRead(ctx, what, reportPath, do)
		return nil
	})

	var warning *report.Message
	if !locked {
		if ctx.Err() != nil {
			readErr = lockErr
		} else {
			c.notice("%s: %v", what, lockErr)
			m := report.NewMessage(report.SeverityWarning, fmt.Sprintf("Could not lock the ADAGUC server report, reading it unlocked: %v", lockErr))
			warning = &m
			body, sr, readErr = c.requestAndRead(ctx, what, reportPath, do)
		}
	}

	if readErr != nil {
		c.notice("%s: %v", what, readErr)
		sr = &report.ServerReport{}
		sr.Append(report.NewMessage(report.SeverityError, fmt.Sprintf("Could not read the ADAGUC server report: %v", readErr)))
	}
	if warning != nil {
		sr.Messages = append([]report.Message{*warning}, sr.Messages...)
		sr.Recount()
	}
	return body, sr
}

func (c *Checker) requestAndRead(ctx context.Context, what, reportPath string, do func(context.Context) ([]byte, error)) ([]byte, *report.ServerReport, error) {
	body, err := do(ctx)
	if err != nil {
		c.notice("%s failed: %v", what, err)
	}
	sr, err := report.ReadServerReport(reportPath)
	return body, sr, err
}

func (c *Checker) saveImage(path, layer string, data []byte) {
	if !store.IsDir(c.opts.ImageDir) {
		c.notice("image directory %s does not exist, image of layer %s not saved", c.opts.ImageDir, layer)
		return
	}
	dest := filepath.Join(c.opts.ImageDir, filepath.Base(path)+"."+layer+".png")
	if err := store.WriteFile(dest, data); err != nil {
		c.notice("saving image of layer %s: %v", layer, err)
		return
	}
	slog.Debug("layer image saved", "path", dest)
}

// notice reports a failure on stderr. The log only gets it at debug level,
// since the default log handler writes to stderr as well.
func (c *Checker) notice(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(c.opts.Stderr, msg)
	slog.Debug(msg)
}
