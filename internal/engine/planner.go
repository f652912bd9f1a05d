package engine

import (
	"fmt"

	"github.com/guildport/guildport/internal/migrate"
)

// Execution stages. Dependencies only ever point at earlier stages, so
// ops within one stage are independent of each other.
const (
	stageStructure = iota // roles and categories
	stageChannels
	stageOverrides
	stageAssets // emojis and stickers
	stageCount
)

// Op is one pending creation. DependsOn holds indices into Plan.Ops of
// ops that must succeed first; matched entities never get ops, they are
// resolved through the match mapping instead.
type Op struct {
	ID   int
	Kind migrate.EntityKind
	Ref  migrate.Ref // source entity this op creates (override ops use the channel ref)
	Name string

	Stage     int
	DependsOn []int

	Category *migrate.Category
	Channel  *migrate.Channel
	Role     *migrate.Role
	Emoji    *migrate.Emoji
	Sticker  *migrate.Sticker
	Override *OverridePayload
}

// OverridePayload carries one permission override application. Channel
// and Role are resolved to remote ids at execution time.
type OverridePayload struct {
	Channel migrate.Ref
	Role    migrate.Ref
	Allow   uint64
	Deny    uint64
}

// Plan is a dependency-ordered set of creation ops for one run.
type Plan struct {
	Ops []Op
}

// OpsInStage returns the indices of ops in the given stage, in id order.
func (p *Plan) OpsInStage(stage int) []int {
	var out []int
	for i := range p.Ops {
		if p.Ops[i].Stage == stage {
			out = append(out, i)
		}
	}
	return out
}

// BuildPlan turns a source snapshot and a match mapping into creation
// ops. Entities present in the mapping are skipped entirely, including
// their permission overrides. A dependency cycle or a reference to a
// missing entity means the snapshot is corrupt and fails the plan.
func BuildPlan(src *migrate.GuildSnapshot, matches migrate.MatchMapping) (*Plan, error) {
	p := &Plan{}
	opByRef := map[migrate.Ref]int{}

	addOp := func(op Op) int {
		op.ID = len(p.Ops)
		p.Ops = append(p.Ops, op)
		opByRef[op.Ref] = op.ID
		return op.ID
	}
	matched := func(ref migrate.Ref) bool {
		_, ok := matches[ref]
		return ok
	}

	for i := range src.Roles {
		r := &src.Roles[i]
		ref := migrate.Ref{Kind: migrate.KindRole, Local: r.Local}
		if matched(ref) {
			continue
		}
		addOp(Op{Kind: migrate.KindRole, Ref: ref, Name: r.Name, Stage: stageStructure, Role: r})
	}

	for i := range src.Categories {
		c := &src.Categories[i]
		ref := migrate.Ref{Kind: migrate.KindCategory, Local: c.Local}
		if matched(ref) {
			continue
		}
		addOp(Op{Kind: migrate.KindCategory, Ref: ref, Name: c.Name, Stage: stageStructure, Category: c})
	}

	for i := range src.Channels {
		ch := &src.Channels[i]
		ref := migrate.Ref{Kind: migrate.KindChannel, Local: ch.Local}
		if matched(ref) {
			continue
		}
		op := Op{Kind: migrate.KindChannel, Ref: ref, Name: ch.Name, Stage: stageChannels, Channel: ch}
		if ch.Parent != nil {
			parentRef := migrate.Ref{Kind: migrate.KindCategory, Local: *ch.Parent}
			if !matched(parentRef) {
				parentOp, ok := opByRef[parentRef]
				if !ok {
					return nil, fmt.Errorf("channel %q references category %d which is not in the snapshot", ch.Name, *ch.Parent)
				}
				op.DependsOn = append(op.DependsOn, parentOp)
			}
		}
		chanOp := addOp(op)

		// Overrides only apply to channels this run creates; matched
		// channels keep their destination permissions untouched.
		for _, ow := range ch.Overrides {
			roleRef := migrate.Ref{Kind: migrate.KindRole, Local: ow.Role}
			deps := []int{chanOp}
			if !matched(roleRef) {
				roleOp, ok := opByRef[roleRef]
				if !ok {
					return nil, fmt.Errorf("channel %q override references role %d which is not in the snapshot", ch.Name, ow.Role)
				}
				deps = append(deps, roleOp)
			}
			roleName := "?"
			if r := src.RoleByLocal(ow.Role); r != nil {
				roleName = r.Name
			}
			p.Ops = append(p.Ops, Op{
				ID:        len(p.Ops),
				Kind:      migrate.KindOverride,
				Ref:       ref,
				Name:      fmt.Sprintf("%s / %s", ch.Name, roleName),
				Stage:     stageOverrides,
				DependsOn: deps,
				Override:  &OverridePayload{Channel: ref, Role: roleRef, Allow: ow.Allow, Deny: ow.Deny},
			})
		}
	}

	for i := range src.Emojis {
		e := &src.Emojis[i]
		ref := migrate.Ref{Kind: migrate.KindEmoji, Local: e.Local}
		if matched(ref) {
			continue
		}
		addOp(Op{Kind: migrate.KindEmoji, Ref: ref, Name: e.Name, Stage: stageAssets, Emoji: e})
	}

	for i := range src.Stickers {
		s := &src.Stickers[i]
		ref := migrate.Ref{Kind: migrate.KindSticker, Local: s.Local}
		if matched(ref) {
			continue
		}
		addOp(Op{Kind: migrate.KindSticker, Ref: ref, Name: s.Name, Stage: stageAssets, Sticker: s})
	}

	if err := checkAcyclic(p.Ops); err != nil {
		return nil, err
	}
	return p, nil
}

// checkAcyclic runs Kahn's algorithm over the dependency edges. Staging
// makes a cycle impossible by construction, so finding one means the
// planner itself is broken; it still aborts the run rather than letting
// the executor deadlock.
func checkAcyclic(ops []Op) error {
	indegree := make([]int, len(ops))
	dependents := make([][]int, len(ops))
	for i := range ops {
		for _, dep := range ops[i].DependsOn {
			indegree[i]++
			dependents[dep] = append(dependents[dep], i)
		}
	}

	queue := make([]int, 0, len(ops))
	for i, d := range indegree {
		if d == 0 {
			queue = append(queue, i)
		}
	}

	visited := 0
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		visited++
		for _, d := range dependents[n] {
			indegree[d]--
			if indegree[d] == 0 {
				queue = append(queue, d)
			}
		}
	}

	if visited != len(ops) {
		return migrate.NewFailure(migrate.CodeCycle,
			"creation plan contains a dependency cycle (%d of %d ops unreachable)", len(ops)-visited, len(ops))
	}
	return nil
}

// Tally summarizes a plan for the pre-flight report.
func Tally(src *migrate.GuildSnapshot, matches migrate.MatchMapping, plan *Plan) []migrate.PlanRow {
	toCreate := map[migrate.EntityKind]int{}
	for i := range plan.Ops {
		toCreate[plan.Ops[i].Kind]++
	}

	rows := []migrate.PlanRow{
		{Kind: migrate.KindRole, Total: len(src.Roles)},
		{Kind: migrate.KindCategory, Total: len(src.Categories)},
		{Kind: migrate.KindChannel, Total: len(src.Channels)},
		{Kind: migrate.KindOverride, Total: overrideTotal(src)},
		{Kind: migrate.KindEmoji, Total: len(src.Emojis)},
		{Kind: migrate.KindSticker, Total: len(src.Stickers)},
	}
	for i := range rows {
		rows[i].ToCreate = toCreate[rows[i].Kind]
		if rows[i].Kind != migrate.KindOverride {
			rows[i].Matched = rows[i].Total - rows[i].ToCreate
		}
	}
	return rows
}

func overrideTotal(src *migrate.GuildSnapshot) int {
	n := 0
	for i := range src.Channels {
		n += len(src.Channels[i].Overrides)
	}
	return n
}
