// Package openspec integrates external OpenSpec changes: CLI wrapping with
// a filesystem fallback, artifact parsing, and feature upserts.
package openspec

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

// Client wraps the openspec CLI for one project root. Every operation
// degrades to the filesystem under <root>/openspec/ when the CLI is absent
// or unusable.
type Client struct {
	root string
	bin  string
}

// NewClient creates a client rooted at the project directory.
func NewClient(root string) *Client {
	return &Client{root: root, bin: "openspec"}
}

// Available reports whether the openspec CLI is on PATH.
func (c *Client) Available() bool {
	_, err := exec.LookPath(c.bin)
	return err == nil
}

func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	log.Debug().Str("dir", c.root).Str("cmd", c.bin).Strs("args", args).Msg("running openspec command")
	cmd := exec.CommandContext(ctx, c.bin, args...)
	cmd.Dir = c.root
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// Version returns the CLI version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	if !c.Available() {
		return "", fmt.Errorf("openspec CLI not found on PATH")
	}
	out, err := c.run(ctx, "--version")
	if err != nil {
		return "", fmt.Errorf("openspec version: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// Install installs the openspec CLI, best-effort via npm.
func (c *Client) Install(ctx context.Context) error {
	if c.Available() {
		return nil
	}
	if _, err := exec.LookPath("npm"); err != nil {
		return fmt.Errorf("cannot install openspec: npm not found on PATH")
	}
	cmd := exec.CommandContext(ctx, "npm", "install", "-g", "openspec")
	cmd.Dir = c.root
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("install openspec: %w", err)
	}
	return nil
}

// Refresh re-runs the CLI's project update.
func (c *Client) Refresh(ctx context.Context) error {
	if !c.Available() {
		return fmt.Errorf("openspec CLI not found on PATH")
	}
	if _, err := c.run(ctx, "update"); err != nil {
		return fmt.Errorf("openspec update: %w", err)
	}
	return nil
}

// changesDir is where change artifacts live relative to the project root.
func (c *Client) changesDir() string {
	return filepath.Join(c.root, "openspec", "changes")
}

// ActiveChanges lists the active (non-archived) change names. CLI first,
// directory listing as fallback.
func (c *Client) ActiveChanges(ctx context.Context) ([]string, error) {
	if c.Available() {
		if out, err := c.run(ctx, "list", "--json"); err == nil {
			if names := parseChangeList(out); len(names) > 0 {
				return names, nil
			}
		} else {
			log.Debug().Err(err).Msg("openspec list failed, falling back to filesystem")
		}
	}
	entries, err := os.ReadDir(c.changesDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list changes: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() || entry.Name() == "archive" {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

func parseChangeList(out string) []string {
	// The CLI emits either a plain array of names or objects with a name
	// field, depending on version.
	var names []string
	if err := json.Unmarshal([]byte(out), &names); err == nil {
		return names
	}
	var objects []struct {
		Name string `json:"name"`
		ID   string `json:"id"`
	}
	if err := json.Unmarshal([]byte(out), &objects); err == nil {
		for _, obj := range objects {
			if obj.Name != "" {
				names = append(names, obj.Name)
			} else if obj.ID != "" {
				names = append(names, obj.ID)
			}
		}
	}
	return names
}

// Archive archives a change. The caller treats failures as non-fatal.
func (c *Client) Archive(ctx context.Context, change string) error {
	if !c.Available() {
		return fmt.Errorf("openspec CLI not found on PATH")
	}
	if _, err := c.run(ctx, "archive", change, "--yes"); err != nil {
		return fmt.Errorf("archive change %s: %w", change, err)
	}
	return nil
}

// Artifacts is the markdown content of one change.
type Artifacts struct {
	Proposal string
	Design   string
	Tasks    string
	Specs    []string
}

// Empty reports whether no artifact content was found.
func (a Artifacts) Empty() bool {
	return a.Proposal == "" && a.Design == "" && a.Tasks == "" && len(a.Specs) == 0
}

// ChangeArtifacts loads the artifacts for a change: machine-readable CLI
// output when possible, filesystem fallback otherwise.
func (c *Client) ChangeArtifacts(ctx context.Context, change string) (Artifacts, error) {
	if c.Available() {
		if out, err := c.run(ctx, "show", change, "--json"); err == nil {
			if artifacts := parseShowJSON(out); !artifacts.Empty() {
				return artifacts, nil
			}
		} else {
			log.Debug().Err(err).Str("change", change).Msg("openspec show failed, falling back to filesystem")
		}
	}
	return c.readChangeDir(change)
}

func parseShowJSON(out string) Artifacts {
	var payload struct {
		Proposal string `json:"proposal"`
		Design   string `json:"design"`
		Tasks    string `json:"tasks"`
		Specs    []struct {
			Content string `json:"content"`
		} `json:"specs"`
	}
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		return Artifacts{}
	}
	artifacts := Artifacts{
		Proposal: payload.Proposal,
		Design:   payload.Design,
		Tasks:    payload.Tasks,
	}
	for _, spec := range payload.Specs {
		if spec.Content != "" {
			artifacts.Specs = append(artifacts.Specs, spec.Content)
		}
	}
	return artifacts
}

func (c *Client) readChangeDir(change string) (Artifacts, error) {
	dir := filepath.Join(c.changesDir(), change)
	if _, err := os.Stat(dir); err != nil {
		return Artifacts{}, fmt.Errorf("change %s not found under %s", change, c.changesDir())
	}
	readOptional := func(name string) string {
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return ""
		}
		return string(raw)
	}
	artifacts := Artifacts{
		Proposal: readOptional("proposal.md"),
		Design:   readOptional("design.md"),
		Tasks:    readOptional("tasks.md"),
	}
	specsDir := filepath.Join(dir, "specs")
	_ = filepath.WalkDir(specsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || d.Name() != "spec.md" {
			return nil
		}
		raw, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil
		}
		artifacts.Specs = append(artifacts.Specs, string(raw))
		return nil
	})
	return artifacts, nil
}

// Reference returns the stored artifact path for a change, relative to the
// project root.
func Reference(change string) string {
	return filepath.Join("openspec", "changes", change)
}
