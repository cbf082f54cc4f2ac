package checker

import (
	"fmt"
	"strings"
)

// Check names accepted by --checks.
const (
	CheckAll      = "all"
	CheckStandard = "standard"
	CheckAdaguc   = "adaguc"
)

// Checks is the set of check groups a run performs.
type Checks struct {
	Standard bool
	Adaguc   bool
}

// ParseChecks parses a comma separated list of check names. An empty list
// selects every check.
func ParseChecks(s string) (Checks, error) {
	var c Checks
	if strings.TrimSpace(s) == "" {
		return Checks{Standard: true, Adaguc: true}, nil
	}
	for _, name := range strings.Split(s, ",") {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case CheckAll:
			c.Standard = true
			c.Adaguc = true
		case CheckStandard:
			c.Standard = true
		case CheckAdaguc:
			c.Adaguc = true
		case "":
		default:
			return Checks{}, fmt.Errorf("unknown check %q (valid: %s, %s, %s)", strings.TrimSpace(name), CheckAll, CheckStandard, CheckAdaguc)
		}
	}
	if !c.Standard && !c.Adaguc {
		return Checks{}, fmt.Errorf("no checks selected in %q", s)
	}
	return c, nil
}

// String returns the canonical name of the set.
func (c Checks) String() string {
	switch {
	case c.Standard && c.Adaguc:
		return CheckAll
	case c.Standard:
		return CheckStandard
	case c.Adaguc:
		return CheckAdaguc
	default:
		return ""
	}
}
