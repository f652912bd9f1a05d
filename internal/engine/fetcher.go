// Package engine implements the migration pipeline: snapshotting a
// guild, matching source entities against the destination, planning
// dependency-ordered creations, and executing the plan concurrently.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/guildport/guildport/internal/migrate"
	"github.com/guildport/guildport/internal/platform"
)

// Channel type codes as listed by the platforms.
const (
	typeText         = 0
	typeVoice        = 2
	typeCategory     = 4
	typeAnnouncement = 5
	typeThreadFirst  = 10
	typeThreadLast   = 12
	typeStage        = 13
	typeForum        = 15
)

// forumTopicNote is appended to the topic of forum channels, which are
// carried over as plain text channels.
const forumTopicNote = "Converted from forum."

// FetchOptions selects which parts of a guild a snapshot includes.
type FetchOptions struct {
	Roles       bool
	Channels    bool
	Permissions bool
	Emojis      bool
	Stickers    bool

	// DownloadBlobs pulls emoji, sticker, and icon image bytes. Off for
	// destination snapshots, which are only used for matching.
	DownloadBlobs bool

	Logger *slog.Logger
}

// AllFetchOptions enables every entity kind including blob downloads.
func AllFetchOptions() FetchOptions {
	return FetchOptions{
		Roles: true, Channels: true, Permissions: true,
		Emojis: true, Stickers: true, DownloadBlobs: true,
	}
}

// Fetch captures a guild snapshot. Local ids are assigned per kind in
// the platform's listing order (roles in ascending position order), so
// the same guild state always yields the same snapshot. Entities the tool cannot carry over are skipped
// with a warning; a sub-listing the credential cannot read is omitted
// with a warning rather than failing the fetch.
func Fetch(ctx context.Context, client platform.Client, guildID migrate.RemoteID, opts FetchOptions) (*migrate.GuildSnapshot, []string, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	info, err := client.GuildInfo(ctx, guildID)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching guild %s: %w", guildID, err)
	}

	snap := &migrate.GuildSnapshot{GuildID: info.ID, Name: info.Name}
	var warnings []string
	warn := func(format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		warnings = append(warnings, msg)
		logger.Warn(msg, "guild", string(guildID), "platform", client.Name())
	}

	if opts.DownloadBlobs && info.IconURL != "" {
		icon, err := client.DownloadImage(ctx, info.IconURL)
		if err != nil {
			if migrate.IsAuthFailure(err) {
				return nil, nil, err
			}
			warn("guild icon download failed: %v", err)
		} else {
			snap.Icon = icon
		}
	}

	// Overrides reference roles by local id, so permissions only make
	// sense when roles are fetched too.
	withOverrides := opts.Permissions && opts.Roles

	roleLocals := map[migrate.RemoteID]migrate.LocalID{}
	if opts.Roles {
		raw, err := client.ListRoles(ctx, guildID)
		if err != nil {
			if !skippable(err) {
				return nil, nil, fmt.Errorf("listing roles: %w", err)
			}
			warn("cannot read roles: %v; roles omitted", err)
		}
		kept := make([]platform.RawRole, 0, len(raw))
		for _, r := range raw {
			// The default everyone role exists on every guild already,
			// and managed roles belong to integrations that cannot be
			// carried over.
			if r.ID == guildID {
				continue
			}
			if r.Managed {
				warn("role %q is managed by an integration; skipped", r.Name)
				continue
			}
			kept = append(kept, r)
		}
		// Ascending position, so role creation preserves the source
		// guild's role ordering on the destination.
		sort.SliceStable(kept, func(i, j int) bool {
			return kept[i].Position < kept[j].Position
		})
		for _, r := range kept {
			local := migrate.LocalID(len(snap.Roles))
			roleLocals[r.ID] = local
			snap.Roles = append(snap.Roles, migrate.Role{
				Local:       local,
				Remote:      r.ID,
				Name:        r.Name,
				Color:       r.Color,
				Position:    r.Position,
				Permissions: r.Permissions,
				Mentionable: r.Mentionable,
				Hoisted:     r.Hoisted,
			})
		}
	}

	if opts.Channels {
		raw, err := client.ListChannels(ctx, guildID)
		if err != nil {
			if !skippable(err) {
				return nil, nil, fmt.Errorf("listing channels: %w", err)
			}
			warn("cannot read channels: %v; channels omitted", err)
		}

		categoryLocals := map[migrate.RemoteID]migrate.LocalID{}
		for _, ch := range raw {
			if ch.Type != typeCategory {
				continue
			}
			local := migrate.LocalID(len(snap.Categories))
			categoryLocals[ch.ID] = local
			snap.Categories = append(snap.Categories, migrate.Category{
				Local:    local,
				Remote:   ch.ID,
				Name:     ch.Name,
				Position: ch.Position,
			})
		}

		for _, ch := range raw {
			var chType migrate.ChannelType
			topic := ch.Topic
			switch {
			case ch.Type == typeCategory:
				continue
			case ch.Type == typeText || ch.Type == typeAnnouncement:
				chType = migrate.ChannelText
			case ch.Type == typeVoice:
				chType = migrate.ChannelVoice
			case ch.Type >= typeThreadFirst && ch.Type <= typeThreadLast:
				warn("channel %q is a thread; skipped", ch.Name)
				continue
			case ch.Type == typeForum:
				chType = migrate.ChannelText
				if topic != "" {
					topic += " "
				}
				topic += forumTopicNote
				warn("forum channel %q carried over as a text channel", ch.Name)
			default:
				chType = migrate.ChannelOther
				warn("channel %q has unsupported type %d; structure kept without type-specific settings", ch.Name, ch.Type)
			}

			channel := migrate.Channel{
				Local:     migrate.LocalID(len(snap.Channels)),
				Remote:    ch.ID,
				Name:      ch.Name,
				Type:      chType,
				Position:  ch.Position,
				Topic:     topic,
				NSFW:      ch.NSFW,
				Bitrate:   ch.Bitrate,
				UserLimit: ch.UserLimit,
			}
			if ch.ParentID != "" {
				if parent, ok := categoryLocals[ch.ParentID]; ok {
					p := parent
					channel.Parent = &p
				} else {
					warn("channel %q references unknown category %s; placed at top level", ch.Name, ch.ParentID)
				}
			}

			if withOverrides {
				for _, ow := range ch.Overrides {
					if ow.TargetType != 0 {
						continue // member overrides are not carried over
					}
					role, ok := roleLocals[ow.TargetID]
					if !ok {
						continue // everyone, managed, or unknown role
					}
					channel.Overrides = append(channel.Overrides, migrate.PermissionOverride{
						Role:  role,
						Allow: ow.Allow,
						Deny:  ow.Deny,
					})
				}
			}
			snap.Channels = append(snap.Channels, channel)
		}
	}

	if opts.Emojis {
		raw, err := client.ListEmojis(ctx, guildID)
		if err != nil {
			if !skippable(err) {
				return nil, nil, fmt.Errorf("listing emojis: %w", err)
			}
			warn("cannot read emojis: %v; emojis omitted", err)
		}
		for _, e := range raw {
			emoji := migrate.Emoji{
				Local:    migrate.LocalID(len(snap.Emojis)),
				Remote:   e.ID,
				Name:     e.Name,
				Animated: e.Animated,
			}
			if opts.DownloadBlobs {
				data, err := client.DownloadImage(ctx, e.ImageURL)
				if err != nil {
					if migrate.IsAuthFailure(err) {
						return nil, nil, err
					}
					warn("emoji %q image download failed: %v; skipped", e.Name, err)
					continue
				}
				emoji.Image = data
			}
			snap.Emojis = append(snap.Emojis, emoji)
		}
	}

	if opts.Stickers {
		raw, err := client.ListStickers(ctx, guildID)
		if err != nil {
			if !skippable(err) {
				return nil, nil, fmt.Errorf("listing stickers: %w", err)
			}
			warn("cannot read stickers: %v; stickers omitted", err)
		}
		for _, s := range raw {
			sticker := migrate.Sticker{
				Local:       migrate.LocalID(len(snap.Stickers)),
				Remote:      s.ID,
				Name:        s.Name,
				Description: s.Description,
				Animated:    s.Animated,
			}
			if opts.DownloadBlobs {
				data, err := client.DownloadImage(ctx, s.ImageURL)
				if err != nil {
					if migrate.IsAuthFailure(err) {
						return nil, nil, err
					}
					warn("sticker %q image download failed: %v; skipped", s.Name, err)
					continue
				}
				sticker.Image = data
			}
			snap.Stickers = append(snap.Stickers, sticker)
		}
	}

	return snap, warnings, nil
}

// skippable reports whether a sub-listing failure should degrade to a
// warning instead of failing the whole fetch.
func skippable(err error) bool {
	if err == nil {
		return true
	}
	var f *migrate.Failure
	if errors.As(err, &f) {
		return f.Code == migrate.CodePermission || f.Code == migrate.CodeNotFound
	}
	return false
}
