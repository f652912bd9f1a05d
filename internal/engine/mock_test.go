package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/guildport/guildport/internal/migrate"
	"github.com/guildport/guildport/internal/platform"
)

// fakeClient is a scriptable platform.Client. Unset hooks succeed with
// generated ids; every call is recorded for assertions.
type fakeClient struct {
	mu    sync.Mutex
	next  int
	calls []string

	guild        *platform.GuildRef
	channels     []platform.RawChannel
	roles        []platform.RawRole
	emojis       []platform.RawEmoji
	stickers     []platform.RawSticker
	images       map[string][]byte
	downloadErrs map[string]error

	listRolesErr  error
	listEmojisErr error

	createRoleErr    func(name string) error
	createChannelErr func(name string) error
	createEmojiErr   func(name string) error
	updateProfileErr error

	roleReqs     []platform.CreateRole
	channelReqs  []platform.CreateChannel
	overrideReqs []platform.ApplyOverride
}

func (f *fakeClient) record(format string, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeClient) callCount(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func (f *fakeClient) newID(kind string) migrate.RemoteID {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	return migrate.RemoteID(fmt.Sprintf("%s-%d", kind, f.next))
}

func (f *fakeClient) Name() string { return "fake" }

func (f *fakeClient) FetchProfile(ctx context.Context) (*migrate.ProfileData, error) {
	f.record("FetchProfile")
	return &migrate.ProfileData{Username: "fake"}, nil
}

func (f *fakeClient) ListOwnedGuilds(ctx context.Context) ([]platform.GuildRef, error) {
	f.record("ListOwnedGuilds")
	if f.guild == nil {
		return nil, nil
	}
	return []platform.GuildRef{*f.guild}, nil
}

func (f *fakeClient) GuildInfo(ctx context.Context, guildID migrate.RemoteID) (*platform.GuildRef, error) {
	f.record("GuildInfo %s", guildID)
	if f.guild != nil {
		return f.guild, nil
	}
	return &platform.GuildRef{ID: guildID, Name: "Test Guild"}, nil
}

func (f *fakeClient) ListChannels(ctx context.Context, guildID migrate.RemoteID) ([]platform.RawChannel, error) {
	f.record("ListChannels")
	return f.channels, nil
}

func (f *fakeClient) ListRoles(ctx context.Context, guildID migrate.RemoteID) ([]platform.RawRole, error) {
	f.record("ListRoles")
	if f.listRolesErr != nil {
		return nil, f.listRolesErr
	}
	return f.roles, nil
}

func (f *fakeClient) ListEmojis(ctx context.Context, guildID migrate.RemoteID) ([]platform.RawEmoji, error) {
	f.record("ListEmojis")
	if f.listEmojisErr != nil {
		return nil, f.listEmojisErr
	}
	return f.emojis, nil
}

func (f *fakeClient) ListStickers(ctx context.Context, guildID migrate.RemoteID) ([]platform.RawSticker, error) {
	f.record("ListStickers")
	return f.stickers, nil
}

func (f *fakeClient) DownloadImage(ctx context.Context, url string) ([]byte, error) {
	f.record("DownloadImage %s", url)
	if err := f.downloadErrs[url]; err != nil {
		return nil, err
	}
	if data, ok := f.images[url]; ok {
		return data, nil
	}
	return []byte("img"), nil
}

func (f *fakeClient) CreateGuild(ctx context.Context, req platform.CreateGuild) (migrate.RemoteID, error) {
	f.record("CreateGuild %s", req.Name)
	return f.newID("guild"), nil
}

func (f *fakeClient) CreateCategory(ctx context.Context, guildID migrate.RemoteID, req platform.CreateCategory) (migrate.RemoteID, error) {
	f.record("CreateCategory %s", req.Name)
	return f.newID("cat"), nil
}

func (f *fakeClient) CreateChannel(ctx context.Context, guildID migrate.RemoteID, req platform.CreateChannel) (migrate.RemoteID, error) {
	f.record("CreateChannel %s", req.Name)
	if f.createChannelErr != nil {
		if err := f.createChannelErr(req.Name); err != nil {
			return "", err
		}
	}
	f.mu.Lock()
	f.channelReqs = append(f.channelReqs, req)
	f.mu.Unlock()
	return f.newID("chan"), nil
}

func (f *fakeClient) CreateRole(ctx context.Context, guildID migrate.RemoteID, req platform.CreateRole) (migrate.RemoteID, error) {
	f.record("CreateRole %s", req.Name)
	if f.createRoleErr != nil {
		if err := f.createRoleErr(req.Name); err != nil {
			return "", err
		}
	}
	f.mu.Lock()
	f.roleReqs = append(f.roleReqs, req)
	f.mu.Unlock()
	return f.newID("role"), nil
}

func (f *fakeClient) CreateEmoji(ctx context.Context, guildID migrate.RemoteID, req platform.CreateEmoji) (migrate.RemoteID, error) {
	f.record("CreateEmoji %s", req.Name)
	if f.createEmojiErr != nil {
		if err := f.createEmojiErr(req.Name); err != nil {
			return "", err
		}
	}
	return f.newID("emoji"), nil
}

func (f *fakeClient) CreateSticker(ctx context.Context, guildID migrate.RemoteID, req platform.CreateSticker) (migrate.RemoteID, error) {
	f.record("CreateSticker %s", req.Name)
	return f.newID("sticker"), nil
}

func (f *fakeClient) ApplyOverride(ctx context.Context, req platform.ApplyOverride) error {
	f.record("ApplyOverride %s/%s", req.ChannelID, req.RoleID)
	f.mu.Lock()
	f.overrideReqs = append(f.overrideReqs, req)
	f.mu.Unlock()
	return nil
}

func (f *fakeClient) UpdateProfile(ctx context.Context, profile *migrate.ProfileData) error {
	f.record("UpdateProfile")
	return f.updateProfileErr
}

func (f *fakeClient) SetGuildIcon(ctx context.Context, guildID migrate.RemoteID, icon []byte) error {
	f.record("SetGuildIcon")
	return nil
}
