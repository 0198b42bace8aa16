package producer

import "regexp"

var codePattern = regexp.MustCompile(`(?i)\bcode:\s*([A-Za-z0-9_-]+)\b`)

// Extract returns the first code announced as "code: XYZ" in text.
func Extract(text string) (string, bool) {
	m := codePattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}
