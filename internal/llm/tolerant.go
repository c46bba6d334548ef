package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/tailscale/hujson"
)

var errEmptyResponse = errors.New("empty response")

// strictParse decodes the trimmed text as exactly one standard JSON object.
// Trailing data after the object is an error.
func strictParse(raw string) (map[string]any, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, errEmptyResponse
	}
	dec := json.NewDecoder(strings.NewReader(s))
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, errors.New("top-level value is not a JSON object")
	}
	if dec.InputOffset() != int64(len(s)) {
		return nil, fmt.Errorf("unexpected data after JSON object at offset %d", dec.InputOffset())
	}
	return m, nil
}

// tolerantParse accepts the looseness models commonly produce around an
// otherwise valid object: markdown fences, surrounding prose, raw control
// characters or stray backslashes inside strings, comments and trailing
// commas. The token structure itself must still be valid.
func tolerantParse(raw string) (map[string]any, error) {
	s := stripMarkdownFences(raw)
	if s == "" {
		return nil, errEmptyResponse
	}
	s = extractObject(s)
	s = fixStringLiterals(s)
	std, err := hujson.Standardize([]byte(s))
	if err != nil {
		return nil, err
	}
	return strictParse(string(std))
}

// fenceRe matches a markdown code fence block (``` or ~~~) with an optional
// language tag and captures the content between the fences. The content
// group uses `.*?` to allow empty bodies.
var fenceRe = regexp.MustCompile("(?s)^(?:`{3,}|~{3,})[^\\n]*\\n(.*?)\\n?(?:`{3,}|~{3,})\\s*$")

// openFenceRe matches only an opening fence line. Used to strip orphaned
// opening fences from truncated responses.
var openFenceRe = regexp.MustCompile("^(?:`{3,}|~{3,})[^\\n]*\\n")

// stripMarkdownFences removes a fence wrapped around the whole response
// ("```json\n...\n```"). When only the opening fence is present the opening
// line alone is removed.
func stripMarkdownFences(s string) string {
	s = strings.TrimSpace(s)
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	if loc := openFenceRe.FindStringIndex(s); loc != nil {
		return strings.TrimSpace(s[loc[1]:])
	}
	return s
}

// extractObject returns the span from the first '{' to the last '}' so that
// prose before or after the object is dropped. s is returned unchanged when
// no such span exists.
func extractObject(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}

// fixStringLiterals rewrites the inside of JSON string literals: raw control
// characters become escapes, and a backslash that does not start a valid
// JSON escape (LLMs emit regex patterns like \d+) is doubled. Text outside
// strings is copied unchanged.
func fixStringLiterals(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	inString := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !inString {
			if c == '"' {
				inString = true
			}
			sb.WriteByte(c)
			continue
		}
		switch {
		case c == '"':
			inString = false
			sb.WriteByte(c)
		case c == '\\':
			if i+1 < len(s) && isJSONEscape(s[i+1]) {
				sb.WriteByte(c)
				sb.WriteByte(s[i+1])
				i++
				continue
			}
			sb.WriteString(`\\`)
		case c == '\n':
			sb.WriteString(`\n`)
		case c == '\r':
			sb.WriteString(`\r`)
		case c == '\t':
			sb.WriteString(`\t`)
		case c < 0x20:
			fmt.Fprintf(&sb, `\u%04x`, c)
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

func isJSONEscape(c byte) bool {
	switch c {
	case '"', '\\', '/', 'b', 'f', 'n', 'r', 't', 'u':
		return true
	}
	return false
}
