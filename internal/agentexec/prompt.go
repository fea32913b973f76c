package agentexec

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/crewline/crewline/internal/feature"
)

// Agent roles. They mirror the scheduler's agent-facing actions.
const (
	RoleDev    = "dev"
	RoleReview = "review"
	RoleQA     = "qa"
)

const promptDelimiter = "\n\n---\n\n"

// Roles lists every agent role a pipeline run drives.
func Roles() []string {
	return []string{RoleDev, RoleReview, RoleQA}
}

// ValidateTemplates checks that every role prompt template exists and
// parses. Callers run it before the loop starts: a missing template is a
// configuration error, not an agent failure worth burning retries on.
func ValidateTemplates(root string) error {
	for _, role := range Roles() {
		if _, _, err := loadRolePrompt(root, role); err != nil {
			return err
		}
	}
	return nil
}

// PromptMeta is optional YAML front matter in a role prompt template. It
// overrides the configured model and turn budget for that role only.
type PromptMeta struct {
	Model    string `yaml:"model"`
	MaxTurns int    `yaml:"max_turns"`
}

// loadRolePrompt reads .framework/prompts/<role>.md and splits optional
// front matter from the body. A missing template is a configuration error
// naming the expected path.
func loadRolePrompt(root, role string) (PromptMeta, string, error) {
	path := filepath.Join(root, ".framework", "prompts", role+".md")
	raw, err := os.ReadFile(path)
	if err != nil {
		return PromptMeta{}, "", fmt.Errorf("role prompt template missing: %s", path)
	}
	content := string(raw)
	meta := PromptMeta{}
	if rest, ok := strings.CutPrefix(content, "---\n"); ok {
		if front, body, found := strings.Cut(rest, "\n---\n"); found {
			if err := yaml.Unmarshal([]byte(front), &meta); err != nil {
				return PromptMeta{}, "", fmt.Errorf("parse front matter in %s: %w", path, err)
			}
			content = body
		}
	}
	return meta, content, nil
}

func roleDirectives(role string) string {
	switch role {
	case RoleDev:
		return strings.Join([]string{
			"- Implement the feature with full architecture compliance.",
			"- When the implementation is finished, set the feature status to ready-for-review.",
		}, "\n")
	case RoleReview:
		return strings.Join([]string{
			"- Execute every verification step for every principle.",
			"- Approve or reject with evidence: set the feature status to approved or needs-revision.",
		}, "\n")
	case RoleQA:
		return strings.Join([]string{
			"- Execute every verification step.",
			"- On success set passes=true. Do NOT set status=complete; merging does that.",
			"- On failure set the feature status to needs-revision.",
		}, "\n")
	default:
		return ""
	}
}

// BuildPrompt composes the full prompt an agent receives: the role
// template, a delimiter, and the task block with the feature dump and
// role directives.
func BuildPrompt(root, role string, f feature.Feature) (PromptMeta, string, error) {
	meta, rolePrompt, err := loadRolePrompt(root, role)
	if err != nil {
		return PromptMeta{}, "", err
	}
	dump, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return PromptMeta{}, "", fmt.Errorf("marshal feature %s: %w", f.ID, err)
	}

	var b strings.Builder
	b.WriteString(strings.TrimRight(rolePrompt, "\n"))
	b.WriteString(promptDelimiter)
	b.WriteString("# TASK\n\n")
	fmt.Fprintf(&b, "Feature: %s - %s\n\n", f.ID, f.Description)
	b.WriteString("```json\n")
	b.Write(dump)
	b.WriteString("\n```\n\n")
	b.WriteString("Directives:\n")
	b.WriteString(roleDirectives(role))
	b.WriteString("\n")
	if role == RoleDev && f.Status == feature.StatusNeedsRevision {
		b.WriteString("\nThis feature was rejected in a previous cycle. ")
		b.WriteString("Consult the rejection feedback in the version control notes before changing anything.\n")
	}
	return meta, b.String(), nil
}
