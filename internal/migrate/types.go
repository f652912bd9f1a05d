// Package migrate provides the shared vocabulary for the migration
// pipeline: the platform-agnostic guild snapshot model, the failure
// taxonomy, progress reporting, and the final run report.
package migrate

// EntityKind identifies a kind of guild structure handled by the pipeline.
type EntityKind string

const (
	KindCategory EntityKind = "category"
	KindChannel  EntityKind = "channel"
	KindRole     EntityKind = "role"
	KindEmoji    EntityKind = "emoji"
	KindSticker  EntityKind = "sticker"
	KindOverride EntityKind = "override" // permission override application
	KindProfile  EntityKind = "profile"
)

// LocalID indexes an entity within a single snapshot. It is assigned in
// the platform's listing order and has no meaning outside that snapshot;
// in particular it is not stable across runs.
type LocalID int

// RemoteID is a platform-assigned identifier (snowflake or similar).
type RemoteID string

// Ref identifies an entity by kind and snapshot-local id.
type Ref struct {
	Kind  EntityKind
	Local LocalID
}

// MatchMapping maps source entities to destination remote ids. An entity
// absent from the mapping has no destination equivalent and must be
// created.
type MatchMapping map[Ref]RemoteID

// ChannelType is the normalized channel type.
type ChannelType string

const (
	ChannelText  ChannelType = "text"
	ChannelVoice ChannelType = "voice"
	ChannelOther ChannelType = "other"
)

// ProfileData is a read-only snapshot of the source user profile.
type ProfileData struct {
	Username    string
	DisplayName string
	Pronouns    string
	Bio         string
	AccentColor *int // 0xRRGGBB, nil when the source has none
	Avatar      []byte
	Banner      []byte

	AvatarAnimated bool
	BannerAnimated bool
}

// GuildSnapshot is an immutable, platform-agnostic capture of a guild's
// structure. Local ids are unique per kind within one snapshot.
type GuildSnapshot struct {
	GuildID    RemoteID
	Name       string
	Icon       []byte
	Categories []Category
	Channels   []Channel
	Roles      []Role
	Emojis     []Emoji
	Stickers   []Sticker
}

// Category is a channel grouping.
type Category struct {
	Local    LocalID
	Remote   RemoteID // the platform id this entity was fetched under
	Name     string
	Position int
}

// PermissionOverride grants or denies a permission mask to a role on a
// channel. Role references a Role in the same snapshot.
type PermissionOverride struct {
	Role  LocalID
	Allow uint64
	Deny  uint64
}

// Channel is a text or voice channel. Parent, when non-nil, references a
// Category in the same snapshot.
type Channel struct {
	Local     LocalID
	Remote    RemoteID
	Name      string
	Type      ChannelType
	Position  int
	Parent    *LocalID
	Topic     string
	NSFW      bool
	Bitrate   int
	UserLimit int
	Overrides []PermissionOverride
}

// Role carries the permission mask and display attributes.
type Role struct {
	Local       LocalID
	Remote      RemoteID
	Name        string
	Color       int
	Position    int
	Permissions uint64
	Mentionable bool
	Hoisted     bool
}

// Emoji is a custom emoji with its image bytes.
type Emoji struct {
	Local    LocalID
	Remote   RemoteID
	Name     string
	Image    []byte
	Animated bool
}

// Sticker is a custom sticker with its image bytes.
type Sticker struct {
	Local       LocalID
	Remote      RemoteID
	Name        string
	Description string
	Image       []byte
	Animated    bool
}

// CategoryByLocal returns the category with the given local id, or nil.
func (s *GuildSnapshot) CategoryByLocal(id LocalID) *Category {
	for i := range s.Categories {
		if s.Categories[i].Local == id {
			return &s.Categories[i]
		}
	}
	return nil
}

// RoleByLocal returns the role with the given local id, or nil.
func (s *GuildSnapshot) RoleByLocal(id LocalID) *Role {
	for i := range s.Roles {
		if s.Roles[i].Local == id {
			return &s.Roles[i]
		}
	}
	return nil
}
