package cfcheck

import (
	"strings"

	"github.com/knmi/adaguc-checker/internal/report"
)

const (
	headerMarker    = "====================="
	separatorMarker = "------------------"
	variablePrefix  = "Checking variable: "
	summaryPrefix   = "ERRORS detected:"
)

var severityPrefixes = []struct {
	prefix   string
	severity report.Severity
}{
	{"WARN: ", report.SeverityWarning},
	{"ERROR: ", report.SeverityError},
	{"INFO: ", report.SeverityInfo},
}

type block int

const (
	blockNone block = iota
	blockHeader
	blockCheck
	blockMessage
	blockSummary
)

// Parse converts cfchecks text output into a CF report section.
//
// The header is the run of lines after the "=====" marker up to the first
// empty line. Messages are lines prefixed WARN:, ERROR: or INFO:; once a
// "Checking variable:" line was seen they are prefixed with the variable
// name. Lines that directly follow a message without a prefix continue it.
// Nothing after the "ERRORS detected:" summary is reported.
func Parse(output string) *report.CFReport {
	r := &report.CFReport{Messages: []report.Message{}}
	state := blockNone
	variable := ""

	output = strings.ReplaceAll(output, "\r\n", "\n")
	for _, line := range strings.Split(output, "\n") {
		if state == blockSummary {
			break
		}
		if strings.TrimSpace(line) == "" {
			state = blockNone
			continue
		}

		sev, text, isMessage := splitSeverity(line)
		switch {
		case strings.HasPrefix(line, headerMarker):
			state = blockHeader
		case strings.HasPrefix(line, separatorMarker):
			state = blockCheck
		case strings.HasPrefix(line, variablePrefix):
			state = blockCheck
			variable = strings.TrimSpace(line[len(variablePrefix):])
		case isMessage:
			if variable != "" {
				text = "Variable " + variable + ": " + text
			}
			r.Append(report.NewMessage(sev, text))
			state = blockMessage
		case state == blockHeader:
			r.Header += line + "\n"
		case strings.HasPrefix(line, summaryPrefix):
			state = blockSummary
		case state == blockMessage:
			last := &r.Messages[len(r.Messages)-1]
			last.Message += " " + strings.TrimSpace(line)
		}
	}
	return r
}

func splitSeverity(line string) (report.Severity, string, bool) {
	for _, p := range severityPrefixes {
		if strings.HasPrefix(line, p.prefix) {
			return p.severity, line[len(p.prefix):], true
		}
	}
	return "", "", false
}
