package openspec

import (
	"bufio"
	"regexp"
	"strings"
)

// TaskGroup is one top-level numbered item in a change's tasks.md, with its
// bulleted steps.
type TaskGroup struct {
	Title string
	Steps []string
}

var (
	groupPattern       = regexp.MustCompile(`^(\d+)[.)]\s*(.*)$`)
	bulletPattern      = regexp.MustCompile(`^\s*[-*]\s+(.*)$`)
	checkboxPattern    = regexp.MustCompile(`^\[[ xX]\]\s*`)
	requirementPattern = regexp.MustCompile(`(?i)^###\s*Requirement:\s*(.*)$`)
	scenarioPattern    = regexp.MustCompile(`(?i)^\s*[-*]\s+((?:GIVEN|WHEN|THEN|AND)\b.*)$`)
)

// ParseTaskGroups extracts task groups from tasks.md content. A line
// beginning with a digit followed by "." or ")" opens a group; bullets
// under it are steps with checkbox markers stripped.
func ParseTaskGroups(content string) []TaskGroup {
	var groups []TaskGroup
	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if m := groupPattern.FindStringSubmatch(line); m != nil {
			groups = append(groups, TaskGroup{Title: strings.TrimSpace(m[2])})
			continue
		}
		if len(groups) == 0 {
			continue
		}
		if m := bulletPattern.FindStringSubmatch(line); m != nil {
			step := checkboxPattern.ReplaceAllString(strings.TrimSpace(m[1]), "")
			step = strings.TrimSpace(step)
			if step != "" {
				last := &groups[len(groups)-1]
				last.Steps = append(last.Steps, step)
			}
		}
	}
	return groups
}

// ParseSpec extracts requirement entries and scenario-derived verification
// steps from spec.md content. Requirements come from "### Requirement:"
// headers; GIVEN/WHEN/THEN/AND bullets each contribute a
// "<scenario> verified" step.
func ParseSpec(content string) (requirements, verificationSteps []string) {
	scanner := bufio.NewScanner(strings.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if m := requirementPattern.FindStringSubmatch(line); m != nil {
			req := strings.TrimSpace(m[1])
			if req != "" {
				requirements = append(requirements, req)
			}
			continue
		}
		if m := scenarioPattern.FindStringSubmatch(line); m != nil {
			scenario := strings.TrimSpace(m[1])
			if scenario != "" {
				verificationSteps = append(verificationSteps, scenario+" verified")
			}
		}
	}
	return requirements, verificationSteps
}
