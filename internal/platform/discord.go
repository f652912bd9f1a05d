package platform

import (
	"context"
	"fmt"
	"strings"

	"github.com/guildport/guildport/internal/migrate"
)

const (
	discordBaseURL = "https://discord.com/api/v10"
	discordCDNURL  = "https://cdn.discordapp.com"
)

// Discord is the source platform client. It only reads; every mutating
// method refuses, so a miswired pipeline can never write back to the
// source account.
type Discord struct {
	rest *restClient
	cdn  string
}

// NewDiscord builds a source client for the given user token.
func NewDiscord(token string, cfg Config) *Discord {
	cfg = cfg.withDefaults(discordBaseURL, discordCDNURL)
	return &Discord{
		rest: newRESTClient("discord", token, cfg),
		cdn:  cfg.CDNBaseURL,
	}
}

func (d *Discord) Name() string { return "discord" }

// FetchProfile reads the account profile. The extended profile endpoint
// (bio, pronouns, theme colors) is best effort: some accounts cannot
// read it, and the base profile is enough to proceed.
func (d *Discord) FetchProfile(ctx context.Context) (*migrate.ProfileData, error) {
	var user apiUser
	if err := d.rest.getJSON(ctx, "/users/@me", &user); err != nil {
		return nil, err
	}

	p := &migrate.ProfileData{
		Username:    user.Username,
		DisplayName: user.GlobalName,
		Bio:         user.Bio,
		Pronouns:    user.Pronouns,
		AccentColor: user.AccentColor,
	}

	var ext apiProfile
	if err := d.rest.getJSON(ctx, "/users/"+user.ID+"/profile", &ext); err == nil {
		if ext.UserProfile.Bio != "" {
			p.Bio = ext.UserProfile.Bio
		}
		if ext.UserProfile.Pronouns != "" {
			p.Pronouns = ext.UserProfile.Pronouns
		}
		// Theme colors take precedence: the primary theme color is what
		// the profile card actually shows.
		if len(ext.UserProfile.ThemeColors) > 0 {
			c := ext.UserProfile.ThemeColors[0]
			p.AccentColor = &c
		} else if ext.UserProfile.AccentColor != nil {
			p.AccentColor = ext.UserProfile.AccentColor
		}
	} else if migrate.IsAuthFailure(err) {
		return nil, err
	} else {
		d.rest.logger.Warn("extended profile unavailable", "error", err)
	}

	if user.Avatar != "" {
		data, animated, err := d.downloadAsset(ctx, "/avatars/"+user.ID, user.Avatar)
		if err != nil {
			d.rest.logger.Warn("avatar download failed", "error", err)
		} else {
			p.Avatar, p.AvatarAnimated = data, animated
		}
	}
	if user.Banner != "" {
		data, animated, err := d.downloadAsset(ctx, "/banners/"+user.ID, user.Banner)
		if err != nil {
			d.rest.logger.Warn("banner download failed", "error", err)
		} else {
			p.Banner, p.BannerAnimated = data, animated
		}
	}
	return p, nil
}

// ListOwnedGuilds returns only guilds the token owner owns; migrating a
// guild requires owner-level read access on the source.
func (d *Discord) ListOwnedGuilds(ctx context.Context) ([]GuildRef, error) {
	var guilds []apiGuild
	if err := d.rest.getJSON(ctx, "/users/@me/guilds?with_counts=true", &guilds); err != nil {
		return nil, err
	}
	var out []GuildRef
	for _, g := range guilds {
		if !g.Owner {
			continue
		}
		out = append(out, GuildRef{
			ID:          migrate.RemoteID(g.ID),
			Name:        g.Name,
			Owner:       true,
			MemberCount: g.MemberCount,
			IconURL:     d.iconURL(g.ID, g.Icon),
		})
	}
	return out, nil
}

func (d *Discord) GuildInfo(ctx context.Context, guildID migrate.RemoteID) (*GuildRef, error) {
	var g apiGuild
	if err := d.rest.getJSON(ctx, "/guilds/"+string(guildID), &g); err != nil {
		return nil, err
	}
	return &GuildRef{
		ID:      migrate.RemoteID(g.ID),
		Name:    g.Name,
		IconURL: d.iconURL(g.ID, g.Icon),
	}, nil
}

func (d *Discord) ListChannels(ctx context.Context, guildID migrate.RemoteID) ([]RawChannel, error) {
	var channels []apiChannel
	if err := d.rest.getJSON(ctx, "/guilds/"+string(guildID)+"/channels", &channels); err != nil {
		return nil, err
	}
	out := make([]RawChannel, 0, len(channels))
	for _, ch := range channels {
		raw := RawChannel{
			ID:        migrate.RemoteID(ch.ID),
			Name:      ch.Name,
			Type:      ch.Type,
			Position:  ch.Position,
			ParentID:  migrate.RemoteID(ch.ParentID),
			Topic:     ch.Topic,
			NSFW:      ch.NSFW,
			Bitrate:   ch.Bitrate,
			UserLimit: ch.UserLimit,
		}
		for _, ow := range ch.Overwrites {
			raw.Overrides = append(raw.Overrides, RawOverride{
				TargetID:   migrate.RemoteID(ow.ID),
				TargetType: ow.Type,
				Allow:      parsePermissions(ow.Allow),
				Deny:       parsePermissions(ow.Deny),
			})
		}
		out = append(out, raw)
	}
	return out, nil
}

func (d *Discord) ListRoles(ctx context.Context, guildID migrate.RemoteID) ([]RawRole, error) {
	var roles []apiRole
	if err := d.rest.getJSON(ctx, "/guilds/"+string(guildID)+"/roles", &roles); err != nil {
		return nil, err
	}
	out := make([]RawRole, 0, len(roles))
	for _, r := range roles {
		out = append(out, RawRole{
			ID:          migrate.RemoteID(r.ID),
			Name:        r.Name,
			Color:       r.Color,
			Position:    r.Position,
			Permissions: parsePermissions(r.Permissions),
			Hoisted:     r.Hoist,
			Mentionable: r.Mentionable,
			Managed:     r.Managed,
		})
	}
	return out, nil
}

func (d *Discord) ListEmojis(ctx context.Context, guildID migrate.RemoteID) ([]RawEmoji, error) {
	var emojis []apiEmoji
	if err := d.rest.getJSON(ctx, "/guilds/"+string(guildID)+"/emojis", &emojis); err != nil {
		return nil, err
	}
	out := make([]RawEmoji, 0, len(emojis))
	for _, e := range emojis {
		ext := "png"
		if e.Animated {
			ext = "gif"
		}
		out = append(out, RawEmoji{
			ID:       migrate.RemoteID(e.ID),
			Name:     e.Name,
			Animated: e.Animated,
			ImageURL: fmt.Sprintf("%s/emojis/%s.%s?size=128", d.cdn, e.ID, ext),
		})
	}
	return out, nil
}

func (d *Discord) ListStickers(ctx context.Context, guildID migrate.RemoteID) ([]RawSticker, error) {
	var stickers []apiSticker
	if err := d.rest.getJSON(ctx, "/guilds/"+string(guildID)+"/stickers", &stickers); err != nil {
		return nil, err
	}
	out := make([]RawSticker, 0, len(stickers))
	for _, s := range stickers {
		ext := "png"
		if s.FormatType == 4 {
			ext = "gif"
		}
		out = append(out, RawSticker{
			ID:          migrate.RemoteID(s.ID),
			Name:        s.Name,
			Description: s.Description,
			Animated:    s.FormatType != 1,
			ImageURL:    fmt.Sprintf("%s/stickers/%s.%s", d.cdn, s.ID, ext),
		})
	}
	return out, nil
}

func (d *Discord) DownloadImage(ctx context.Context, url string) ([]byte, error) {
	return d.rest.download(ctx, url)
}

// iconURL builds a CDN guild icon URL. An "a_" hash prefix marks an
// animated icon served as gif.
func (d *Discord) iconURL(guildID, hash string) string {
	if hash == "" {
		return ""
	}
	ext := "png"
	if strings.HasPrefix(hash, "a_") {
		ext = "gif"
	}
	return fmt.Sprintf("%s/icons/%s/%s.%s?size=4096", d.cdn, guildID, hash, ext)
}

func (d *Discord) downloadAsset(ctx context.Context, pathPrefix, hash string) ([]byte, bool, error) {
	ext := "png"
	animated := strings.HasPrefix(hash, "a_")
	if animated {
		ext = "gif"
	}
	url := fmt.Sprintf("%s%s/%s.%s?size=4096", d.cdn, pathPrefix, hash, ext)
	data, err := d.rest.download(ctx, url)
	return data, animated, err
}

func (d *Discord) readOnly(op string) error {
	return migrate.NewFailure(migrate.CodePermission, "discord is the migration source; refusing to %s", op)
}

func (d *Discord) CreateGuild(ctx context.Context, req CreateGuild) (migrate.RemoteID, error) {
	return "", d.readOnly("create a guild")
}

func (d *Discord) CreateCategory(ctx context.Context, guildID migrate.RemoteID, req CreateCategory) (migrate.RemoteID, error) {
	return "", d.readOnly("create a category")
}

func (d *Discord) CreateChannel(ctx context.Context, guildID migrate.RemoteID, req CreateChannel) (migrate.RemoteID, error) {
	return "", d.readOnly("create a channel")
}

func (d *Discord) CreateRole(ctx context.Context, guildID migrate.RemoteID, req CreateRole) (migrate.RemoteID, error) {
	return "", d.readOnly("create a role")
}

func (d *Discord) CreateEmoji(ctx context.Context, guildID migrate.RemoteID, req CreateEmoji) (migrate.RemoteID, error) {
	return "", d.readOnly("create an emoji")
}

func (d *Discord) CreateSticker(ctx context.Context, guildID migrate.RemoteID, req CreateSticker) (migrate.RemoteID, error) {
	return "", d.readOnly("create a sticker")
}

func (d *Discord) ApplyOverride(ctx context.Context, req ApplyOverride) error {
	return d.readOnly("apply a permission override")
}

func (d *Discord) UpdateProfile(ctx context.Context, profile *migrate.ProfileData) error {
	return d.readOnly("update the profile")
}

func (d *Discord) SetGuildIcon(ctx context.Context, guildID migrate.RemoteID, icon []byte) error {
	return d.readOnly("set a guild icon")
}
