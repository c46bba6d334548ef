// Package mdparse provides fence-aware Markdown primitives used to audit and
// render the narrative section of an analysis.
package mdparse

import (
	"bufio"
	"strings"
)

// Section is a run of Markdown under one ATX heading.
type Section struct {
	Level   int    // 0 for text that precedes the first heading
	Heading string // heading text without the leading hashes
	Line    int    // 1-indexed line of the heading
	Body    string // trimmed content up to the next heading of the same or higher level
}

// Sections splits md at ATX headings of the given level (and any higher
// level). Headings inside fenced code blocks are ignored. Non-blank text
// before the first heading is returned as a Section with Level 0.
func Sections(md string, level int) []Section {
	var (
		out       []Section
		cur       = Section{}
		buf       []string
		openFence string
	)
	flush := func() {
		cur.Body = strings.TrimSpace(strings.Join(buf, "\n"))
		if cur.Level > 0 || cur.Body != "" {
			out = append(out, cur)
		}
		buf = nil
	}

	for i, line := range lines(md) {
		fp := fencePrefix(line)
		if openFence != "" {
			if isClosingFence(line, openFence) {
				openFence = ""
			}
			buf = append(buf, line)
			continue
		}
		if fp != "" {
			openFence = fp
			buf = append(buf, line)
			continue
		}
		if n := HeadingLevel(line); n > 0 && n <= level {
			flush()
			cur = Section{Level: n, Heading: HeadingText(line), Line: i + 1}
			continue
		}
		buf = append(buf, line)
	}
	flush()
	return out
}

// Headings returns the text of every heading at exactly the given level,
// skipping fenced code blocks.
func Headings(md string, level int) []string {
	var out []string
	for _, s := range Sections(md, level) {
		if s.Level == level {
			out = append(out, s.Heading)
		}
	}
	return out
}

// Fence returns a backtick fence long enough to wrap content verbatim: one
// longer than the longest backtick run in content, and at least three.
func Fence(content string) string {
	longest, run := 0, 0
	for i := 0; i < len(content); i++ {
		if content[i] == '`' {
			run++
			if run > longest {
				longest = run
			}
			continue
		}
		run = 0
	}
	n := longest + 1
	if n < 3 {
		n = 3
	}
	return strings.Repeat("`", n)
}

func lines(s string) []string {
	var out []string
	scanner := bufio.NewScanner(strings.NewReader(s))
	// Allow up to 1MB for long lines (tables collapsed onto one line).
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		out = append(out, scanner.Text())
	}
	return out
}

// fencePrefix returns the opening fence string (e.g. "```" or "~~~~") if line
// starts a fenced code block, otherwise returns "".
// CommonMark allows up to 3 leading spaces before the fence marker.
func fencePrefix(line string) string {
	leading := 0
	for leading < len(line) && line[leading] == ' ' {
		leading++
	}
	if leading >= 4 {
		return "" // indented code block, not a fence
	}
	stripped := line[leading:]
	for _, marker := range []byte{'`', '~'} {
		if len(stripped) < 3 || stripped[0] != marker {
			continue
		}
		count := 0
		for count < len(stripped) && stripped[count] == marker {
			count++
		}
		if count >= 3 {
			return stripped[:count]
		}
	}
	return ""
}

// isClosingFence returns true if line is a valid closing fence for openFence:
// same marker, at least as long, and only trailing spaces after the markers.
func isClosingFence(line, openFence string) bool {
	if len(openFence) == 0 {
		return false
	}
	fp := fencePrefix(line)
	if fp == "" || fp[0] != openFence[0] || len(fp) < len(openFence) {
		return false
	}
	leading := 0
	for leading < len(line) && line[leading] == ' ' {
		leading++
	}
	rest := strings.TrimLeft(line[leading+len(fp):], " ")
	return rest == ""
}

// HeadingLevel returns the ATX heading level (1-6) of line, or 0 when line is
// not a heading. A space after the hashes is required; lines with 4 or more
// leading spaces are indented code, not headings.
func HeadingLevel(line string) int {
	leading := 0
	for leading < len(line) && line[leading] == ' ' {
		leading++
	}
	if leading >= 4 {
		return 0
	}
	t := strings.TrimSpace(line)
	hashes := strings.IndexFunc(t, func(r rune) bool { return r != '#' })
	if hashes > 0 && hashes <= 6 && len(t) > hashes && t[hashes] == ' ' {
		return hashes
	}
	return 0
}

// HeadingText strips the hashes and an optional closing sequence from an ATX
// heading line.
func HeadingText(line string) string {
	t := strings.TrimSpace(line)
	t = strings.TrimLeft(t, "#")
	t = strings.TrimSpace(t)
	if trimmed := strings.TrimRight(t, "#"); trimmed != t && strings.HasSuffix(trimmed, " ") {
		t = strings.TrimSpace(trimmed)
	}
	return t
}
