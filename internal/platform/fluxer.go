package platform

import (
	"context"
	"encoding/base64"
	"net/http"

	"github.com/guildport/guildport/internal/migrate"
)

const (
	fluxerBaseURL = "https://api.fluxer.app/v1"
	fluxerCDNURL  = "https://cdn.fluxer.app"
)

// Fluxer is the destination platform client.
type Fluxer struct {
	rest *restClient
	cdn  string
}

// NewFluxer builds a destination client for the given user token.
func NewFluxer(token string, cfg Config) *Fluxer {
	cfg = cfg.withDefaults(fluxerBaseURL, fluxerCDNURL)
	return &Fluxer{
		rest: newRESTClient("fluxer", token, cfg),
		cdn:  cfg.CDNBaseURL,
	}
}

func (f *Fluxer) Name() string { return "fluxer" }

// FetchProfile reads the destination account profile. Image blobs are
// not downloaded; the destination profile is only used to verify the
// credential and greet the user.
func (f *Fluxer) FetchProfile(ctx context.Context) (*migrate.ProfileData, error) {
	var user apiUser
	if err := f.rest.getJSON(ctx, "/users/@me", &user); err != nil {
		return nil, err
	}
	return &migrate.ProfileData{
		Username:    user.Username,
		DisplayName: user.GlobalName,
		Bio:         user.Bio,
		Pronouns:    user.Pronouns,
		AccentColor: user.AccentColor,
	}, nil
}

func (f *Fluxer) ListOwnedGuilds(ctx context.Context) ([]GuildRef, error) {
	var guilds []apiGuild
	if err := f.rest.getJSON(ctx, "/users/@me/guilds", &guilds); err != nil {
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
		})
	}
	return out, nil
}

func (f *Fluxer) GuildInfo(ctx context.Context, guildID migrate.RemoteID) (*GuildRef, error) {
	var g apiGuild
	if err := f.rest.getJSON(ctx, "/guilds/"+string(guildID), &g); err != nil {
		return nil, err
	}
	return &GuildRef{ID: migrate.RemoteID(g.ID), Name: g.Name}, nil
}

func (f *Fluxer) ListChannels(ctx context.Context, guildID migrate.RemoteID) ([]RawChannel, error) {
	var channels []apiChannel
	if err := f.rest.getJSON(ctx, "/guilds/"+string(guildID)+"/channels", &channels); err != nil {
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

func (f *Fluxer) ListRoles(ctx context.Context, guildID migrate.RemoteID) ([]RawRole, error) {
	var roles []apiRole
	if err := f.rest.getJSON(ctx, "/guilds/"+string(guildID)+"/roles", &roles); err != nil {
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

func (f *Fluxer) ListEmojis(ctx context.Context, guildID migrate.RemoteID) ([]RawEmoji, error) {
	var emojis []apiEmoji
	if err := f.rest.getJSON(ctx, "/guilds/"+string(guildID)+"/emojis", &emojis); err != nil {
		return nil, err
	}
	out := make([]RawEmoji, 0, len(emojis))
	for _, e := range emojis {
		out = append(out, RawEmoji{
			ID:       migrate.RemoteID(e.ID),
			Name:     e.Name,
			Animated: e.Animated,
		})
	}
	return out, nil
}

func (f *Fluxer) ListStickers(ctx context.Context, guildID migrate.RemoteID) ([]RawSticker, error) {
	var stickers []apiSticker
	if err := f.rest.getJSON(ctx, "/guilds/"+string(guildID)+"/stickers", &stickers); err != nil {
		return nil, err
	}
	out := make([]RawSticker, 0, len(stickers))
	for _, s := range stickers {
		out = append(out, RawSticker{
			ID:          migrate.RemoteID(s.ID),
			Name:        s.Name,
			Description: s.Description,
			Animated:    s.FormatType != 1,
		})
	}
	return out, nil
}

func (f *Fluxer) DownloadImage(ctx context.Context, url string) ([]byte, error) {
	return f.rest.download(ctx, url)
}

func (f *Fluxer) CreateGuild(ctx context.Context, req CreateGuild) (migrate.RemoteID, error) {
	var created apiGuild
	body := map[string]any{"name": req.Name}
	if err := f.rest.sendJSON(ctx, http.MethodPost, "/guilds", body, &created); err != nil {
		return "", err
	}
	return migrate.RemoteID(created.ID), nil
}

// Channel type codes on the wire: 0 text, 2 voice, 4 category.
const (
	wireTypeText     = 0
	wireTypeVoice    = 2
	wireTypeCategory = 4
)

func (f *Fluxer) CreateCategory(ctx context.Context, guildID migrate.RemoteID, req CreateCategory) (migrate.RemoteID, error) {
	body := map[string]any{
		"name":     req.Name,
		"type":     wireTypeCategory,
		"position": req.Position,
	}
	var created apiChannel
	if err := f.rest.sendJSON(ctx, http.MethodPost, "/guilds/"+string(guildID)+"/channels", body, &created); err != nil {
		return "", err
	}
	return migrate.RemoteID(created.ID), nil
}

func (f *Fluxer) CreateChannel(ctx context.Context, guildID migrate.RemoteID, req CreateChannel) (migrate.RemoteID, error) {
	wireType := wireTypeText
	if req.Type == migrate.ChannelVoice {
		wireType = wireTypeVoice
	}
	body := map[string]any{
		"name":     req.Name,
		"type":     wireType,
		"position": req.Position,
		"nsfw":     req.NSFW,
	}
	if req.ParentID != "" {
		body["parent_id"] = string(req.ParentID)
	}
	if req.Topic != "" {
		body["topic"] = req.Topic
	}
	if req.Type == migrate.ChannelVoice {
		if req.Bitrate > 0 {
			body["bitrate"] = req.Bitrate
		}
		if req.UserLimit > 0 {
			body["user_limit"] = req.UserLimit
		}
	}
	var created apiChannel
	if err := f.rest.sendJSON(ctx, http.MethodPost, "/guilds/"+string(guildID)+"/channels", body, &created); err != nil {
		return "", err
	}
	return migrate.RemoteID(created.ID), nil
}

func (f *Fluxer) CreateRole(ctx context.Context, guildID migrate.RemoteID, req CreateRole) (migrate.RemoteID, error) {
	body := map[string]any{
		"name":        req.Name,
		"color":       req.Color,
		"position":    req.Position,
		"permissions": formatPermissions(req.Permissions),
		"hoist":       req.Hoisted,
		"mentionable": req.Mentionable,
	}
	var created apiRole
	if err := f.rest.sendJSON(ctx, http.MethodPost, "/guilds/"+string(guildID)+"/roles", body, &created); err != nil {
		return "", err
	}
	return migrate.RemoteID(created.ID), nil
}

func (f *Fluxer) CreateEmoji(ctx context.Context, guildID migrate.RemoteID, req CreateEmoji) (migrate.RemoteID, error) {
	image, err := preparePayload(migrate.KindEmoji, req.Name, req.Image, MaxEmojiBytes)
	if err != nil {
		return "", err
	}
	body := map[string]any{
		"name":  req.Name,
		"image": imageDataURI(image),
	}
	var created apiEmoji
	if err := f.rest.sendJSON(ctx, http.MethodPost, "/guilds/"+string(guildID)+"/emojis", body, &created); err != nil {
		return "", err
	}
	return migrate.RemoteID(created.ID), nil
}

func (f *Fluxer) CreateSticker(ctx context.Context, guildID migrate.RemoteID, req CreateSticker) (migrate.RemoteID, error) {
	image, err := preparePayload(migrate.KindSticker, req.Name, req.Image, MaxStickerBytes)
	if err != nil {
		return "", err
	}
	fileName := req.Name + ".png"
	if req.Animated {
		fileName = req.Name + ".gif"
	}
	fields := map[string]string{
		"name":        req.Name,
		"description": req.Description,
		"tags":        req.Name,
	}
	var created apiSticker
	if err := f.rest.postMultipart(ctx, "/guilds/"+string(guildID)+"/stickers", fields, "file", fileName, image, &created); err != nil {
		return "", err
	}
	return migrate.RemoteID(created.ID), nil
}

func (f *Fluxer) ApplyOverride(ctx context.Context, req ApplyOverride) error {
	body := map[string]any{
		"type":  0, // role target
		"allow": formatPermissions(req.Allow),
		"deny":  formatPermissions(req.Deny),
	}
	path := "/channels/" + string(req.ChannelID) + "/permissions/" + string(req.RoleID)
	return f.rest.sendJSON(ctx, http.MethodPut, path, body, nil)
}

func (f *Fluxer) UpdateProfile(ctx context.Context, profile *migrate.ProfileData) error {
	body := map[string]any{}
	if profile.DisplayName != "" {
		body["global_name"] = profile.DisplayName
	}
	if profile.Pronouns != "" {
		body["pronouns"] = profile.Pronouns
	}
	if profile.Bio != "" {
		body["bio"] = profile.Bio
	}
	if profile.AccentColor != nil {
		body["accent_color"] = *profile.AccentColor
	}
	if len(profile.Avatar) > 0 {
		avatar, err := preparePayload(migrate.KindProfile, "avatar", profile.Avatar, MaxAvatarBytes)
		if err != nil {
			return err
		}
		body["avatar"] = imageDataURI(avatar)
	}
	if len(profile.Banner) > 0 {
		banner, err := preparePayload(migrate.KindProfile, "banner", profile.Banner, MaxBannerBytes)
		if err != nil {
			return err
		}
		body["banner"] = imageDataURI(banner)
	}
	if len(body) == 0 {
		return nil
	}
	return f.rest.sendJSON(ctx, http.MethodPatch, "/users/@me", body, nil)
}

func (f *Fluxer) SetGuildIcon(ctx context.Context, guildID migrate.RemoteID, icon []byte) error {
	prepared, err := preparePayload(migrate.KindProfile, "guild icon", icon, MaxIconBytes)
	if err != nil {
		return err
	}
	body := map[string]any{"icon": imageDataURI(prepared)}
	return f.rest.sendJSON(ctx, http.MethodPatch, "/guilds/"+string(guildID), body, nil)
}

// imageDataURI encodes an image payload as the data URI form the JSON
// endpoints expect. Content type is sniffed from the bytes.
func imageDataURI(data []byte) string {
	return "data:" + http.DetectContentType(data) + ";base64," + base64.StdEncoding.EncodeToString(data)
}
