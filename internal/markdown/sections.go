// Package markdown edits heading-delimited sections of a markdown document.
//
// A section starts at a heading line ("## Title", "### Title", ...) and runs
// until the next heading of the same or a higher level. Section ids are
// heading titles, compared without regard to case.
package markdown

import (
	"strings"
)

type heading struct {
	line  int
	level int
	title string
}

func parseHeading(line string) (int, string, bool) {
	trimmed := strings.TrimRight(line, " \t\r")
	level := 0
	for level < len(trimmed) && trimmed[level] == '#' {
		level++
	}
	if level < 2 || level > 6 || len(trimmed) <= level || trimmed[level] != ' ' {
		return 0, "", false
	}
	return level, strings.TrimSpace(trimmed[level:]), true
}

// find locates section id and returns the heading and the index of the first
// line after the section
func find(lines []string, id string) (heading, int, bool) {
	id = strings.TrimSpace(id)
	for i, line := range lines {
		level, title, ok := parseHeading(line)
		if !ok || !strings.EqualFold(title, id) {
			continue
		}
		end := len(lines)
		for j := i + 1; j < len(lines); j++ {
			if l, _, ok := parseHeading(lines[j]); ok && l <= level {
				end = j
				break
			}
		}
		return heading{line: i, level: level, title: title}, end, true
	}
	return heading{}, 0, false
}

// Section returns the body of section id, without its heading
func Section(doc, id string) (string, bool) {
	lines := strings.Split(doc, "\n")
	h, end, ok := find(lines, id)
	if !ok {
		return "", false
	}
	return strings.Trim(strings.Join(lines[h.line+1:end], "\n"), "\n"), true
}

// Replace sets the body of section id. A missing section is appended to the
// document as a level 2 heading.
func Replace(doc, id, body string) string {
	body = strings.Trim(body, "\n")
	lines := strings.Split(doc, "\n")
	h, end, ok := find(lines, id)
	if !ok {
		out := strings.TrimRight(doc, "\n")
		if out != "" {
			out += "\n\n"
		}
		out += "## " + strings.TrimSpace(id) + "\n"
		if body != "" {
			out += body + "\n"
		}
		return out
	}

	out := make([]string, 0, len(lines)+1)
	out = append(out, lines[:h.line+1]...)
	if body != "" {
		out = append(out, strings.Split(body, "\n")...)
	}
	if end < len(lines) {
		out = append(out, "")
		out = append(out, lines[end:]...)
	} else {
		out = append(out, "")
	}
	return strings.Join(out, "\n")
}

// Remove deletes section id with its heading. It reports whether the section
// existed.
func Remove(doc, id string) (string, bool) {
	lines := strings.Split(doc, "\n")
	h, end, ok := find(lines, id)
	if !ok {
		return doc, false
	}
	out := append(append([]string{}, lines[:h.line]...), lines[end:]...)
	return strings.Join(out, "\n"), true
}

// Titles lists the titles of all sections at the given level
func Titles(doc string, level int) []string {
	var titles []string
	for _, line := range strings.Split(doc, "\n") {
		if l, title, ok := parseHeading(line); ok && l == level {
			titles = append(titles, title)
		}
	}
	return titles
}
