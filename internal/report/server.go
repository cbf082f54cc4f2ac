package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ReportFileName is the file the ADAGUC server writes its check results to,
// inside its output directory, after every WMS request.
const ReportFileName = "checker_report.txt"

// ServerReport is a report written by the ADAGUC server for one WMS request,
// extended with the fields the checker adds. Keys the checker does not know
// about are kept in Extra and written back unchanged.
type ServerReport struct {
	ReportName string
	Counts
	Messages []Message
	Image    string // base64 PNG, layer reports only
	XML      string // capabilities document, GetCapabilities report only
	Extra    map[string]json.RawMessage
}

var serverReportKeys = map[string]bool{
	"reportname": true,
	"nerrors":    true,
	"nwarnings":  true,
	"ninfo":      true,
	"messages":   true,
	"image":      true,
	"xml":        true,
}

// Append adds a message and counts it.
func (r *ServerReport) Append(m Message) {
	r.Messages = append(r.Messages, m)
	r.Add(m.Severity)
}

// Recount resets the counts to the tally of the messages.
func (r *ServerReport) Recount() {
	r.Counts = Tally(r.Messages)
}

func (r ServerReport) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Extra)+7)
	for k, v := range r.Extra {
		out[k] = v
	}
	messages := r.Messages
	if messages == nil {
		messages = []Message{}
	}
	out["reportname"] = r.ReportName
	out["nerrors"] = r.Errors
	out["nwarnings"] = r.Warnings
	out["ninfo"] = r.Info
	out["messages"] = messages
	if r.Image != "" {
		out["image"] = r.Image
	}
	if r.XML != "" {
		out["xml"] = r.XML
	}
	return json.Marshal(out)
}

func (r *ServerReport) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var decoded ServerReport
	fields := map[string]any{
		"reportname": &decoded.ReportName,
		"nerrors":    &decoded.Errors,
		"nwarnings":  &decoded.Warnings,
		"ninfo":      &decoded.Info,
		"messages":   &decoded.Messages,
		"image":      &decoded.Image,
		"xml":        &decoded.XML,
	}
	for key, value := range raw {
		if !serverReportKeys[key] {
			if decoded.Extra == nil {
				decoded.Extra = make(map[string]json.RawMessage)
			}
			decoded.Extra[key] = value
			continue
		}
		if string(value) == "null" {
			continue
		}
		if err := json.Unmarshal(value, fields[key]); err != nil {
			return fmt.Errorf("decoding %q: %w", key, err)
		}
	}

	*r = decoded
	return nil
}

// ReadServerReport reads a report written by the ADAGUC server. A missing file
// yields an empty report, since the server does not write one when it fails
// before checking anything.
func ReadServerReport(path string) (*ServerReport, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return &ServerReport{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading server report %s: %w", path, err)
	}

	var r ServerReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing server report %s: %w", path, err)
	}
	return &r, nil
}
