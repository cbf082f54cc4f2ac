package cfcheck

import (
	"context"
	"fmt"

	"github.com/knmi/adaguc-checker/internal/report"
)

// ExceptionMessage is reported when the CF checker could not be run.
const ExceptionMessage = "Exception occurred during CF-checks."

// Check runs the CF checker on path and parses its output. When the checker
// fails the returned section holds a single ERROR and the failure is also
// returned, so callers can surface it without losing the section.
func Check(ctx context.Context, runner Runner, path string, cfVersion string) (*report.CFReport, error) {
	out, err := runner.Run(ctx, path, cfVersion)
	if err != nil {
		r := &report.CFReport{Messages: []report.Message{}}
		r.Append(report.NewMessage(report.SeverityError, ExceptionMessage))
		return r, fmt.Errorf("CF checks on %s: %w", path, err)
	}
	return Parse(out), nil
}
