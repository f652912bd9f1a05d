// Package platform implements the chat-platform clients the migration
// pipeline runs against: Discord as the source and Fluxer as the
// destination. Both speak to the platform's private REST API with a
// user token, through a shared core that handles rate-limit signaling,
// transient-failure retries, and the failure taxonomy mapping.
package platform

import (
	"context"

	"github.com/guildport/guildport/internal/migrate"
)

// Client is the capability a platform grants to the migration pipeline.
// Every method honors the passed context. Create calls are not
// idempotent: a duplicate call creates a duplicate entity, so callers
// must never re-issue a create that already succeeded.
type Client interface {
	// Name identifies the platform in logs and error messages.
	Name() string

	// FetchProfile returns the credential owner's profile, including
	// avatar and banner image bytes when available.
	FetchProfile(ctx context.Context) (*migrate.ProfileData, error)

	// ListOwnedGuilds returns the guilds the credential owner owns.
	ListOwnedGuilds(ctx context.Context) ([]GuildRef, error)

	// GuildInfo returns metadata for one guild.
	GuildInfo(ctx context.Context, guildID migrate.RemoteID) (*GuildRef, error)

	// Listing calls return entities in the platform's listing order.
	ListChannels(ctx context.Context, guildID migrate.RemoteID) ([]RawChannel, error)
	ListRoles(ctx context.Context, guildID migrate.RemoteID) ([]RawRole, error)
	ListEmojis(ctx context.Context, guildID migrate.RemoteID) ([]RawEmoji, error)
	ListStickers(ctx context.Context, guildID migrate.RemoteID) ([]RawSticker, error)

	// DownloadImage fetches an image blob from the platform's CDN.
	DownloadImage(ctx context.Context, url string) ([]byte, error)

	// Create calls mutate platform state and return the new remote id.
	CreateGuild(ctx context.Context, req CreateGuild) (migrate.RemoteID, error)
	CreateCategory(ctx context.Context, guildID migrate.RemoteID, req CreateCategory) (migrate.RemoteID, error)
	CreateChannel(ctx context.Context, guildID migrate.RemoteID, req CreateChannel) (migrate.RemoteID, error)
	CreateRole(ctx context.Context, guildID migrate.RemoteID, req CreateRole) (migrate.RemoteID, error)
	CreateEmoji(ctx context.Context, guildID migrate.RemoteID, req CreateEmoji) (migrate.RemoteID, error)
	CreateSticker(ctx context.Context, guildID migrate.RemoteID, req CreateSticker) (migrate.RemoteID, error)

	// ApplyOverride sets a role permission override on a channel.
	ApplyOverride(ctx context.Context, req ApplyOverride) error

	// UpdateProfile writes profile fields (and avatar/banner images) to
	// the credential owner's account.
	UpdateProfile(ctx context.Context, profile *migrate.ProfileData) error

	// SetGuildIcon uploads a guild icon.
	SetGuildIcon(ctx context.Context, guildID migrate.RemoteID, icon []byte) error
}

// GuildRef is a guild listing entry.
type GuildRef struct {
	ID          migrate.RemoteID
	Name        string
	Owner       bool
	MemberCount int
	IconURL     string // empty when the guild has no icon
}

// RawChannel is a channel as listed by the platform, before
// normalization. Type uses the platform's numeric channel types.
type RawChannel struct {
	ID        migrate.RemoteID
	Name      string
	Type      int
	Position  int
	ParentID  migrate.RemoteID
	Topic     string
	NSFW      bool
	Bitrate   int
	UserLimit int
	Overrides []RawOverride
}

// RawOverride is a permission overwrite entry. TargetType 0 targets a
// role, 1 targets a member.
type RawOverride struct {
	TargetID   migrate.RemoteID
	TargetType int
	Allow      uint64
	Deny       uint64
}

// RawRole is a role as listed by the platform.
type RawRole struct {
	ID          migrate.RemoteID
	Name        string
	Color       int
	Position    int
	Permissions uint64
	Hoisted     bool
	Mentionable bool
	Managed     bool
}

// RawEmoji is an emoji listing entry. ImageURL points at the CDN asset.
type RawEmoji struct {
	ID       migrate.RemoteID
	Name     string
	Animated bool
	ImageURL string
}

// RawSticker is a sticker listing entry.
type RawSticker struct {
	ID          migrate.RemoteID
	Name        string
	Description string
	Animated    bool
	ImageURL    string
}

// CreateGuild creates a new guild owned by the credential owner.
type CreateGuild struct {
	Name string
}

// CreateCategory creates a channel category.
type CreateCategory struct {
	Name     string
	Position int
}

// CreateChannel creates a text or voice channel.
type CreateChannel struct {
	Name      string
	Type      migrate.ChannelType
	Position  int
	ParentID  migrate.RemoteID // empty for top-level channels
	Topic     string
	NSFW      bool
	Bitrate   int
	UserLimit int
}

// CreateRole creates a role. Position is the desired slot in the guild
// role list; creations may land in any order, so ordering rides on the
// payload rather than on arrival.
type CreateRole struct {
	Name        string
	Color       int
	Position    int
	Permissions uint64
	Hoisted     bool
	Mentionable bool
}

// CreateEmoji uploads a custom emoji.
type CreateEmoji struct {
	Name     string
	Image    []byte
	Animated bool
}

// CreateSticker uploads a custom sticker.
type CreateSticker struct {
	Name        string
	Description string
	Image       []byte
	Animated    bool
}

// ApplyOverride sets a role permission override on a channel.
type ApplyOverride struct {
	ChannelID migrate.RemoteID
	RoleID    migrate.RemoteID
	Allow     uint64
	Deny      uint64
}
