package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/guildport/guildport/internal/migrate"
	"github.com/guildport/guildport/internal/platform"
)

const (
	// DefaultConcurrency is the in-flight op ceiling. The platforms start
	// shedding with 429s not far above this.
	DefaultConcurrency = 4
	maxConcurrency     = 16
)

type opState int

const (
	statePending opState = iota
	stateSucceeded
	stateFailed
)

// ExecOptions configures one execution run.
type ExecOptions struct {
	Concurrency int
	Reporter    migrate.ProgressReporter
	Logger      *slog.Logger
}

func (o ExecOptions) withDefaults() ExecOptions {
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.Concurrency > maxConcurrency {
		o.Concurrency = maxConcurrency
	}
	if o.Reporter == nil {
		o.Reporter = migrate.NopReporter{}
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o
}

// Execute runs a plan against the destination guild. Ops are dispatched
// stage by stage with bounded concurrency; an op whose dependency failed
// is recorded as dependency_failed without touching the platform. The
// profile update, when requested, runs once up front and its outcome is
// independent of the guild ops. A credential failure aborts the whole
// run; everything else is recorded per op and the run continues.
func Execute(ctx context.Context, dst platform.Client, guildID migrate.RemoteID, plan *Plan, matches migrate.MatchMapping, profile *migrate.ProfileData, opts ExecOptions) *migrate.RunReport {
	opts = opts.withDefaults()
	e := &executor{
		dst:     dst,
		guildID: guildID,
		plan:    plan,
		remap:   make(map[migrate.Ref]migrate.RemoteID, len(matches)),
		states:  make([]opState, len(plan.Ops)),
		report:  migrate.NewRunReport(),
	}
	e.logger = opts.Logger.With("run", e.report.RunID.String())

	// Matched entities resolve like already-succeeded ops.
	for ref, remote := range matches {
		e.remap[ref] = remote
	}

	start := time.Now()
	defer func() { e.report.Elapsed = time.Since(start) }()

	if profile != nil {
		e.runProfile(ctx, profile)
		if e.aborted {
			return e.report
		}
	}

	stageNames := map[int]string{
		stageStructure: "Structure",
		stageChannels:  "Channels",
		stageOverrides: "Permissions",
		stageAssets:    "Assets",
	}
	for stage := 0; stage < stageCount; stage++ {
		ids := plan.OpsInStage(stage)
		phase := migrate.Phase{Name: stageNames[stage], Index: stage + 1, Total: stageCount}
		opts.Reporter.StartPhase(phase, len(ids))
		phaseStart := time.Now()

		e.runStage(ctx, ids, opts, phase)

		opts.Reporter.CompletePhase(phase, len(ids), time.Since(phaseStart))
		if e.aborted {
			break
		}
	}

	if !e.aborted && ctx.Err() != nil {
		e.report.Warnings = append(e.report.Warnings, "run cancelled before completion")
	}
	if skipped := e.notAttempted(); skipped > 0 {
		e.report.Warnings = append(e.report.Warnings,
			fmt.Sprintf("%d operations were not attempted", skipped))
	}
	return e.report
}

type executor struct {
	dst     platform.Client
	guildID migrate.RemoteID
	plan    *Plan
	logger  *slog.Logger

	mu      sync.Mutex
	remap   map[migrate.Ref]migrate.RemoteID
	states  []opState
	report  *migrate.RunReport
	aborted bool
}

// runStage dispatches one stage's ops through a bounded worker pool.
// Dependency and cancellation checks happen at dispatch time, under the
// lock, so a failed dependency cascades without a platform call.
func (e *executor) runStage(ctx context.Context, ids []int, opts ExecOptions, phase migrate.Phase) {
	sem := make(chan struct{}, opts.Concurrency)
	var wg sync.WaitGroup
	var done int
	var doneMu sync.Mutex

	for _, id := range ids {
		op := &e.plan.Ops[id]

		e.mu.Lock()
		stop := e.aborted || ctx.Err() != nil
		var failedDep *Op
		if !stop {
			for _, dep := range op.DependsOn {
				if e.states[dep] == stateFailed {
					failedDep = &e.plan.Ops[dep]
					break
				}
			}
		}
		if failedDep != nil {
			e.states[op.ID] = stateFailed
			e.report.Failed = append(e.report.Failed, migrate.OpFailure{
				Kind:   op.Kind,
				Name:   op.Name,
				Code:   migrate.CodeDependency,
				Reason: fmt.Sprintf("depends on failed %s %q", failedDep.Kind, failedDep.Name),
			})
		}
		e.mu.Unlock()

		if stop || failedDep != nil {
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(op *Op) {
			defer wg.Done()
			defer func() { <-sem }()
			e.runOp(ctx, op)

			doneMu.Lock()
			done++
			opts.Reporter.Progress(phase, done, len(ids))
			doneMu.Unlock()
		}(op)
	}
	wg.Wait()
}

// runOp executes one op and records the outcome.
func (e *executor) runOp(ctx context.Context, op *Op) {
	remote, err := e.invoke(ctx, op)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.states[op.ID] = stateFailed
		e.report.Failed = append(e.report.Failed, migrate.OpFailure{
			Kind:   op.Kind,
			Name:   op.Name,
			Code:   migrate.CodeOf(err),
			Reason: err.Error(),
		})
		if migrate.IsAuthFailure(err) && !e.aborted {
			e.aborted = true
			e.report.Aborted = true
			e.report.AbortReason = err.Error()
		}
		e.logger.Warn("operation failed", "kind", string(op.Kind), "name", op.Name, "error", err)
		return
	}

	e.states[op.ID] = stateSucceeded
	if op.Kind != migrate.KindOverride {
		e.remap[op.Ref] = remote
	}
	e.report.Succeeded = append(e.report.Succeeded, migrate.OpResult{
		Kind:   op.Kind,
		Name:   op.Name,
		Remote: remote,
	})
	e.logger.Debug("operation succeeded", "kind", string(op.Kind), "name", op.Name, "remote", string(remote))
}

// resolve maps a source ref to its destination remote id, through
// either a match or an op that already succeeded.
func (e *executor) resolve(ref migrate.Ref) (migrate.RemoteID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	remote, ok := e.remap[ref]
	if !ok {
		return "", fmt.Errorf("no destination id recorded for %s %d", ref.Kind, ref.Local)
	}
	return remote, nil
}

func (e *executor) invoke(ctx context.Context, op *Op) (migrate.RemoteID, error) {
	switch op.Kind {
	case migrate.KindRole:
		r := op.Role
		return e.dst.CreateRole(ctx, e.guildID, platform.CreateRole{
			Name:        r.Name,
			Color:       r.Color,
			Position:    r.Position,
			Permissions: r.Permissions,
			Hoisted:     r.Hoisted,
			Mentionable: r.Mentionable,
		})

	case migrate.KindCategory:
		c := op.Category
		return e.dst.CreateCategory(ctx, e.guildID, platform.CreateCategory{
			Name:     c.Name,
			Position: c.Position,
		})

	case migrate.KindChannel:
		ch := op.Channel
		req := platform.CreateChannel{
			Name:      ch.Name,
			Type:      ch.Type,
			Position:  ch.Position,
			Topic:     ch.Topic,
			NSFW:      ch.NSFW,
			Bitrate:   ch.Bitrate,
			UserLimit: ch.UserLimit,
		}
		if ch.Parent != nil {
			parent, err := e.resolve(migrate.Ref{Kind: migrate.KindCategory, Local: *ch.Parent})
			if err != nil {
				return "", err
			}
			req.ParentID = parent
		}
		return e.dst.CreateChannel(ctx, e.guildID, req)

	case migrate.KindOverride:
		ow := op.Override
		channel, err := e.resolve(ow.Channel)
		if err != nil {
			return "", err
		}
		role, err := e.resolve(ow.Role)
		if err != nil {
			return "", err
		}
		return "", e.dst.ApplyOverride(ctx, platform.ApplyOverride{
			ChannelID: channel,
			RoleID:    role,
			Allow:     ow.Allow,
			Deny:      ow.Deny,
		})

	case migrate.KindEmoji:
		em := op.Emoji
		return e.dst.CreateEmoji(ctx, e.guildID, platform.CreateEmoji{
			Name:     em.Name,
			Image:    em.Image,
			Animated: em.Animated,
		})

	case migrate.KindSticker:
		s := op.Sticker
		return e.dst.CreateSticker(ctx, e.guildID, platform.CreateSticker{
			Name:        s.Name,
			Description: s.Description,
			Image:       s.Image,
			Animated:    s.Animated,
		})
	}
	return "", errors.New("unknown operation kind " + string(op.Kind))
}

// runProfile applies the profile update. Its failure never fails guild
// ops, but a credential failure still aborts the run.
func (e *executor) runProfile(ctx context.Context, profile *migrate.ProfileData) {
	err := e.dst.UpdateProfile(ctx, profile)
	if err == nil {
		e.report.Succeeded = append(e.report.Succeeded, migrate.OpResult{
			Kind: migrate.KindProfile,
			Name: profile.Username,
		})
		return
	}
	e.report.Failed = append(e.report.Failed, migrate.OpFailure{
		Kind:   migrate.KindProfile,
		Name:   profile.Username,
		Code:   migrate.CodeOf(err),
		Reason: err.Error(),
	})
	if migrate.IsAuthFailure(err) {
		e.aborted = true
		e.report.Aborted = true
		e.report.AbortReason = err.Error()
	}
}

// notAttempted counts ops that never ran because the run stopped early.
func (e *executor) notAttempted() int {
	n := 0
	attempted := len(e.report.Succeeded) + len(e.report.Failed)
	// The profile op is not part of the plan.
	planOps := len(e.plan.Ops)
	for _, r := range e.report.Succeeded {
		if r.Kind == migrate.KindProfile {
			attempted--
		}
	}
	for _, f := range e.report.Failed {
		if f.Kind == migrate.KindProfile {
			attempted--
		}
	}
	if attempted < planOps {
		n = planOps - attempted
	}
	return n
}
