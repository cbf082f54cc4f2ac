package store

import "time"

// GetString returns a string value from frontmatter.
func GetString(fm map[string]any, key string) string {
	if v, ok := fm[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetInt returns an int value from frontmatter.
func GetInt(fm map[string]any, key string) int {
	if v, ok := fm[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		case int64:
			return int(n)
		case uint64:
			return int(n)
		}
	}
	return 0
}

// GetTime returns a time.Time value from frontmatter.
func GetTime(fm map[string]any, key string) time.Time {
	if v, ok := fm[key]; ok {
		switch t := v.(type) {
		case time.Time:
			return t
		case string:
			parsed, err := time.Parse(time.RFC3339, t)
			if err == nil {
				return parsed
			}
		}
	}
	return time.Time{}
}

// FormatTime formats a time for frontmatter storage.
func FormatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}
