// Package report holds the JSON report model shared by the CF and ADAGUC
// checks, and the bookkeeping that keeps its message counts consistent.
package report

import "encoding/json"

// Severity is the level of a report message.
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
)

// CategoryGeneral is the category used for messages produced by the checker itself.
const CategoryGeneral = "GENERAL"

// Message is a single finding. The field names match the reports written by
// the ADAGUC server so both kinds can be mixed in one document.
type Message struct {
	Category          string   `json:"category"`
	DocumentationLink string   `json:"documentationLink"`
	Message           string   `json:"message"`
	Severity          Severity `json:"severity"`
}

// NewMessage returns a GENERAL message without documentation link.
func NewMessage(sev Severity, text string) Message {
	return Message{
		Category: CategoryGeneral,
		Message:  text,
		Severity: sev,
	}
}

// Counts tracks the number of messages per severity.
type Counts struct {
	Errors   int `json:"nerrors"`
	Warnings int `json:"nwarnings"`
	Info     int `json:"ninfo"`
}

// Add counts one message of the given severity. Unknown severities are ignored.
func (c *Counts) Add(sev Severity) {
	switch sev {
	case SeverityError:
		c.Errors++
	case SeverityWarning:
		c.Warnings++
	case SeverityInfo:
		c.Info++
	}
}

// Merge adds other to c.
func (c *Counts) Merge(other Counts) {
	c.Errors += other.Errors
	c.Warnings += other.Warnings
	c.Info += other.Info
}

// Tally counts the messages by severity.
func Tally(messages []Message) Counts {
	var c Counts
	for _, m := range messages {
		c.Add(m.Severity)
	}
	return c
}

// CFReport is the section produced from the external CF checker's output.
type CFReport struct {
	Counts
	Header   string    `json:"header"`
	Messages []Message `json:"messages"`
}

// Append adds a message and counts it.
func (r *CFReport) Append(m Message) {
	r.Messages = append(r.Messages, m)
	r.Add(m.Severity)
}

// Report is the document printed for one checked file.
type Report struct {
	Counts
	CFCheck *CFReport       `json:"cfcheck_report,omitempty"`
	GetCap  *ServerReport   `json:"getcap,omitempty"`
	GetMap  []*ServerReport `json:"getmap,omitempty"`
}

// Recount recomputes every section's counts from its messages and the totals
// as their sum.
func (r *Report) Recount() {
	r.Counts = Counts{}
	if r.CFCheck != nil {
		r.CFCheck.Counts = Tally(r.CFCheck.Messages)
		r.Merge(r.CFCheck.Counts)
	}
	if r.GetCap != nil {
		r.GetCap.Recount()
		r.Merge(r.GetCap.Counts)
	}
	for _, layer := range r.GetMap {
		layer.Recount()
		r.Merge(layer.Counts)
	}
}

// MarshalJSON emits the getmap list whenever the getcap section is present,
// so a file without layers reports an empty list instead of omitting it.
func (r Report) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"nerrors":   r.Errors,
		"nwarnings": r.Warnings,
		"ninfo":     r.Info,
	}
	if r.CFCheck != nil {
		cf := *r.CFCheck
		if cf.Messages == nil {
			cf.Messages = []Message{}
		}
		out["cfcheck_report"] = cf
	}
	if r.GetCap != nil {
		out["getcap"] = r.GetCap
		layers := r.GetMap
		if layers == nil {
			layers = []*ServerReport{}
		}
		out["getmap"] = layers
	} else if len(r.GetMap) > 0 {
		out["getmap"] = r.GetMap
	}
	return json.Marshal(out)
}
