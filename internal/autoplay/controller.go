// Package autoplay implements the control loop that drives features
// through the pipeline by spawning agents and invoking VCS operations.
package autoplay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/crewline/crewline/internal/agentexec"
	"github.com/crewline/crewline/internal/config"
	"github.com/crewline/crewline/internal/feature"
	"github.com/crewline/crewline/internal/openspec"
	"github.com/crewline/crewline/internal/scheduler"
	"github.com/crewline/crewline/internal/vcs"
)

// ErrEscalated signals that the run drained with features needing human
// attention; the CLI maps it to a non-zero exit.
var ErrEscalated = errors.New("features escalated to human attention")

// Controller owns one autoplay run. Retry counters and the escalation set
// live here for the duration of the run only; they are never persisted.
type Controller struct {
	root     string
	features *feature.Store
	cfg      *config.Store
	bridge   *vcs.Bridge
	importer *openspec.Importer
	out      io.Writer

	runID     string
	retries   map[string]int
	escalated map[string]bool
}

// New creates a controller for one run.
func New(root string, features *feature.Store, cfg *config.Store, bridge *vcs.Bridge, importer *openspec.Importer) *Controller {
	return &Controller{
		root:      root,
		features:  features,
		cfg:       cfg,
		bridge:    bridge,
		importer:  importer,
		out:       os.Stdout,
		runID:     uuid.NewString(),
		retries:   map[string]int{},
		escalated: map[string]bool{},
	}
}

// SetOutput redirects operator-facing output, mainly for tests.
func (c *Controller) SetOutput(w io.Writer) {
	c.out = w
}

// Run drives the pipeline until the backlog drains. Team mode prints
// guided instructions instead of spawning agents.
func (c *Controller) Run(ctx context.Context) error {
	mode, err := c.cfg.ExecutionMode(ctx)
	if err != nil {
		return err
	}
	if mode == config.ModeTeam {
		return c.runTeam(ctx)
	}
	return c.runOrchestrator(ctx)
}

func (c *Controller) runOrchestrator(ctx context.Context) error {
	if err := agentexec.ValidateTemplates(c.root); err != nil {
		return err
	}
	if err := c.maybeAutoImport(ctx); err != nil {
		return err
	}

	maxRetries, err := c.cfg.MaxRetries(ctx)
	if err != nil {
		return err
	}
	agents, err := c.newAgentRunner(ctx)
	if err != nil {
		return err
	}

	sessionNumber := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		features, err := c.features.List(ctx, feature.Filter{})
		if err != nil {
			return err
		}
		action, f, ok, err := scheduler.Next(features, c.escalated)
		if err != nil {
			return err
		}
		if !ok {
			c.printSummary(features)
			if len(c.escalated) > 0 {
				return ErrEscalated
			}
			return nil
		}

		switch action {
		case scheduler.ActionPR:
			if err := c.bridge.CreatePR(ctx, f); err != nil {
				log.Warn().Err(err).Str("feature", f.ID).Msg("pr creation failed")
				c.countRetry(f.ID, maxRetries)
			}
			continue
		case scheduler.ActionMerge:
			mergeAllowed, err := c.cfg.MergeAllowed(ctx)
			if err != nil {
				return err
			}
			result, err := c.bridge.MergePR(ctx, f, mergeAllowed)
			if err != nil {
				log.Warn().Err(err).Str("feature", f.ID).Msg("merge failed")
				c.countRetry(f.ID, maxRetries)
				continue
			}
			if result.Skipped {
				// Keep the loop from spinning on an unmergeable PR.
				c.escalated[f.ID] = true
				continue
			}
			c.maybeArchive(ctx, f.ID)
			continue
		}

		role := string(action)
		if action == scheduler.ActionDev && f.Status == feature.StatusNeedsRevision {
			if c.countRetry(f.ID, maxRetries) {
				continue
			}
		}

		statusBefore := f.Status
		sessionNumber++
		exitCode, err := agents.Run(ctx, role, f)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		outcome := "ok"
		if err != nil {
			outcome = "error"
			log.Warn().Err(err).Str("feature", f.ID).Str("role", role).Msg("agent session failed")
		} else if exitCode != 0 {
			outcome = fmt.Sprintf("exit=%d", exitCode)
		}
		c.recordSession(ctx, sessionNumber, role, f.ID, outcome)

		reloaded, err := c.features.Get(ctx, f.ID)
		if err != nil {
			return err
		}
		if reloaded.Status == statusBefore && reloaded.Passes == f.Passes {
			// A clean exit that changed nothing still counts: stalls must
			// not burn the loop forever.
			log.Info().Str("feature", f.ID).Str("role", role).Msg("agent session stalled, no state change")
			c.countRetry(f.ID, maxRetries)
		}
	}
}

// countRetry bumps the feature's retry counter and escalates past the cap.
// Returns whether the feature is now escalated.
func (c *Controller) countRetry(id string, maxRetries int) bool {
	c.retries[id]++
	if c.retries[id] > maxRetries {
		c.escalated[id] = true
		log.Warn().Str("feature", id).Int("retries", c.retries[id]).Msg("feature escalated to human attention")
		return true
	}
	return false
}

func (c *Controller) maybeAutoImport(ctx context.Context) error {
	autoImport, err := c.cfg.OpenSpecAutoImport(ctx)
	if err != nil {
		return err
	}
	if !autoImport || !c.importer.Client().Available() {
		return nil
	}
	results, err := c.importer.ImportAll(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("auto-import failed, continuing with stored features")
		return nil
	}
	for _, result := range results {
		log.Info().Str("change", result.Change).
			Int("created", len(result.Created)).
			Int("updated", len(result.Updated)).
			Msg("imported change")
	}
	return nil
}

func (c *Controller) maybeArchive(ctx context.Context, featureID string) {
	autoArchive, err := c.cfg.OpenSpecAutoArchive(ctx)
	if err != nil || !autoArchive {
		return
	}
	if _, err := c.importer.MaybeArchive(ctx, featureID); err != nil {
		log.Warn().Err(err).Str("feature", featureID).Msg("auto-archive failed")
	}
}

func (c *Controller) newAgentRunner(ctx context.Context) (*agentexec.Runner, error) {
	model, err := c.cfg.Model(ctx)
	if err != nil {
		return nil, err
	}
	maxTurns, err := c.cfg.MaxAgentTurns(ctx)
	if err != nil {
		return nil, err
	}
	agentCmd, err := c.cfg.AgentCommand(ctx)
	if err != nil {
		return nil, err
	}
	return agentexec.New(agentexec.Options{
		Root:     c.root,
		AgentCmd: agentCmd,
		Model:    model,
		MaxTurns: maxTurns,
		Stdout:   c.out,
	}), nil
}

func (c *Controller) recordSession(ctx context.Context, number int, role, featureID, outcome string) {
	err := c.features.AppendSession(ctx, feature.Session{
		RunID:         c.runID,
		SessionNumber: number,
		AgentRole:     role,
		FeatureID:     featureID,
		Outcome:       outcome,
	})
	if err != nil {
		log.Warn().Err(err).Msg("failed to record pipeline session")
	}
}

func (c *Controller) printSummary(features []feature.Feature) {
	counts := map[feature.Status]int{}
	for _, f := range features {
		counts[f.Status]++
	}
	fmt.Fprintf(c.out, "\nautoplay finished: %d features\n", len(features))
	for _, status := range feature.Statuses() {
		if counts[status] > 0 {
			fmt.Fprintf(c.out, "  %-17s %d\n", status, counts[status])
		}
	}
	switch scheduler.Drain(features, c.escalated) {
	case scheduler.DrainComplete:
		fmt.Fprintln(c.out, "all features complete")
	case scheduler.DrainBlocked:
		blocked := feature.Blocked(features)
		ids := make([]string, 0, len(blocked))
		for id := range blocked {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Fprintf(c.out, "blocked: %s waiting on %v\n", id, blocked[id])
		}
	case scheduler.DrainEscalated:
	}
	if len(c.escalated) > 0 {
		ids := make([]string, 0, len(c.escalated))
		for id := range c.escalated {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		fmt.Fprintf(c.out, "escalated to human attention: %v\n", ids)
	}
}
