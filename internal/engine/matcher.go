package engine

import (
	"fmt"
	"strings"

	"github.com/guildport/guildport/internal/migrate"
)

// TieBreak selects among multiple destination candidates that match the
// same source entity.
type TieBreak string

const (
	// TieBreakLowestPosition prefers the candidate with the smallest
	// position, i.e. the one shown highest in the destination guild.
	TieBreakLowestPosition TieBreak = "lowest-position"

	// TieBreakFirstListed prefers the candidate the platform lists first.
	TieBreakFirstListed TieBreak = "first-listed"
)

// ParseTieBreak validates a tie-break policy name.
func ParseTieBreak(s string) (TieBreak, error) {
	switch TieBreak(s) {
	case TieBreakLowestPosition, TieBreakFirstListed:
		return TieBreak(s), nil
	case "":
		return TieBreakLowestPosition, nil
	}
	return "", fmt.Errorf("unknown tie-break policy %q (want %q or %q)", s, TieBreakLowestPosition, TieBreakFirstListed)
}

// MatchOptions configures the matcher.
type MatchOptions struct {
	TieBreak TieBreak
}

// Match pairs source entities with equivalent destination entities so
// the planner can skip them. Matching is by case-folded trimmed name,
// refined with structural hints: channels prefer a candidate under the
// same-named category, roles prefer a candidate with the same permission
// mask. Remaining ties go to the configured policy and are reported as
// warnings. The same inputs always produce the same mapping.
func Match(src, dst *migrate.GuildSnapshot, opts MatchOptions) (migrate.MatchMapping, []string) {
	if opts.TieBreak == "" {
		opts.TieBreak = TieBreakLowestPosition
	}
	m := matcher{tieBreak: opts.TieBreak, mapping: migrate.MatchMapping{}}

	m.matchCategories(src, dst)
	m.matchChannels(src, dst)
	m.matchRoles(src, dst)
	m.matchEmojis(src, dst)
	m.matchStickers(src, dst)

	return m.mapping, m.warnings
}

type matcher struct {
	tieBreak TieBreak
	mapping  migrate.MatchMapping
	warnings []string
}

func (m *matcher) warn(format string, args ...any) {
	m.warnings = append(m.warnings, fmt.Sprintf(format, args...))
}

// candidate is a destination entity under consideration for one source
// entity. order is the destination listing index.
type candidate struct {
	remote   migrate.RemoteID
	order    int
	position int
}

// pick applies the tie-break policy to a non-empty candidate list.
func (m *matcher) pick(cands []candidate) candidate {
	best := cands[0]
	for _, c := range cands[1:] {
		switch m.tieBreak {
		case TieBreakLowestPosition:
			if c.position < best.position || (c.position == best.position && c.order < best.order) {
				best = c
			}
		default: // first listed
			if c.order < best.order {
				best = c
			}
		}
	}
	return best
}

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (m *matcher) matchCategories(src, dst *migrate.GuildSnapshot) {
	byName := map[string][]candidate{}
	for i, c := range dst.Categories {
		key := normalizeName(c.Name)
		byName[key] = append(byName[key], candidate{remote: c.Remote, order: i, position: c.Position})
	}
	for _, c := range src.Categories {
		cands := byName[normalizeName(c.Name)]
		if len(cands) == 0 {
			continue
		}
		if len(cands) > 1 {
			m.warn("category %q matches %d destination categories; using %s policy", c.Name, len(cands), m.tieBreak)
		}
		m.mapping[migrate.Ref{Kind: migrate.KindCategory, Local: c.Local}] = m.pick(cands).remote
	}
}

// channelKey disambiguates same-named channels of different types.
func channelKey(name string, t migrate.ChannelType) string {
	return string(t) + "\x00" + normalizeName(name)
}

func (m *matcher) matchChannels(src, dst *migrate.GuildSnapshot) {
	type chanCandidate struct {
		candidate
		parentName string // normalized parent category name, "" when top level
	}
	byKey := map[string][]chanCandidate{}
	for i, ch := range dst.Channels {
		cc := chanCandidate{candidate: candidate{remote: ch.Remote, order: i, position: ch.Position}}
		if ch.Parent != nil {
			if parent := dst.CategoryByLocal(*ch.Parent); parent != nil {
				cc.parentName = normalizeName(parent.Name)
			}
		}
		key := channelKey(ch.Name, ch.Type)
		byKey[key] = append(byKey[key], cc)
	}

	for _, ch := range src.Channels {
		cands := byKey[channelKey(ch.Name, ch.Type)]
		if len(cands) == 0 {
			continue
		}

		// Prefer candidates under the same-named category.
		if len(cands) > 1 {
			srcParent := ""
			if ch.Parent != nil {
				if parent := src.CategoryByLocal(*ch.Parent); parent != nil {
					srcParent = normalizeName(parent.Name)
				}
			}
			var narrowed []chanCandidate
			for _, c := range cands {
				if c.parentName == srcParent {
					narrowed = append(narrowed, c)
				}
			}
			if len(narrowed) > 0 {
				cands = narrowed
			}
		}

		if len(cands) > 1 {
			m.warn("channel %q matches %d destination channels; using %s policy", ch.Name, len(cands), m.tieBreak)
		}
		flat := make([]candidate, len(cands))
		for i, c := range cands {
			flat[i] = c.candidate
		}
		m.mapping[migrate.Ref{Kind: migrate.KindChannel, Local: ch.Local}] = m.pick(flat).remote
	}
}

func (m *matcher) matchRoles(src, dst *migrate.GuildSnapshot) {
	type roleCandidate struct {
		candidate
		permissions uint64
	}
	byName := map[string][]roleCandidate{}
	for i, r := range dst.Roles {
		key := normalizeName(r.Name)
		byName[key] = append(byName[key], roleCandidate{
			candidate:   candidate{remote: r.Remote, order: i, position: r.Position},
			permissions: r.Permissions,
		})
	}

	for _, r := range src.Roles {
		cands := byName[normalizeName(r.Name)]
		if len(cands) == 0 {
			continue
		}

		// Prefer candidates with the identical permission mask.
		if len(cands) > 1 {
			var narrowed []roleCandidate
			for _, c := range cands {
				if c.permissions == r.Permissions {
					narrowed = append(narrowed, c)
				}
			}
			if len(narrowed) > 0 {
				cands = narrowed
			}
		}

		if len(cands) > 1 {
			m.warn("role %q matches %d destination roles; using %s policy", r.Name, len(cands), m.tieBreak)
		}
		flat := make([]candidate, len(cands))
		for i, c := range cands {
			flat[i] = c.candidate
		}
		m.mapping[migrate.Ref{Kind: migrate.KindRole, Local: r.Local}] = m.pick(flat).remote
	}
}

func (m *matcher) matchEmojis(src, dst *migrate.GuildSnapshot) {
	byName := map[string][]candidate{}
	for i, e := range dst.Emojis {
		key := normalizeName(e.Name)
		byName[key] = append(byName[key], candidate{remote: e.Remote, order: i, position: i})
	}
	for _, e := range src.Emojis {
		cands := byName[normalizeName(e.Name)]
		if len(cands) == 0 {
			continue
		}
		m.mapping[migrate.Ref{Kind: migrate.KindEmoji, Local: e.Local}] = m.pick(cands).remote
	}
}

func (m *matcher) matchStickers(src, dst *migrate.GuildSnapshot) {
	byName := map[string][]candidate{}
	for i, s := range dst.Stickers {
		key := normalizeName(s.Name)
		byName[key] = append(byName[key], candidate{remote: s.Remote, order: i, position: i})
	}
	for _, s := range src.Stickers {
		cands := byName[normalizeName(s.Name)]
		if len(cands) == 0 {
			continue
		}
		m.mapping[migrate.Ref{Kind: migrate.KindSticker, Local: s.Local}] = m.pick(cands).remote
	}
}
