package platform

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildport/guildport/internal/migrate"
)

func TestDiscordFetchProfileMergesExtended(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/@me", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"id": "100200300400500", "username": "sam", "global_name": "Sam",
			"avatar": "abcdef", "accent_color": 0x112233,
		})
	})
	mux.HandleFunc("/users/100200300400500/profile", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"user_profile": map[string]any{
				"bio": "hello", "pronouns": "they/them",
				"theme_colors": []int{0xAABBCC, 0x001122},
			},
		})
	})
	mux.HandleFunc("/avatars/100200300400500/abcdef.png", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("avatarbytes"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	d := NewDiscord("tok", Config{BaseURL: srv.URL, CDNBaseURL: srv.URL})
	p, err := d.FetchProfile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "sam", p.Username)
	assert.Equal(t, "Sam", p.DisplayName)
	assert.Equal(t, "hello", p.Bio)
	assert.Equal(t, "they/them", p.Pronouns)
	require.NotNil(t, p.AccentColor)
	assert.Equal(t, 0xAABBCC, *p.AccentColor, "primary theme color wins over accent_color")
	assert.Equal(t, []byte("avatarbytes"), p.Avatar)
	assert.False(t, p.AvatarAnimated)
}

func TestDiscordFetchProfileWithoutExtended(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/@me", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"id": "100200300400500", "username": "sam"})
	})
	mux.HandleFunc("/users/100200300400500/profile", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	d := NewDiscord("tok", Config{BaseURL: srv.URL, CDNBaseURL: srv.URL})
	p, err := d.FetchProfile(context.Background())
	require.NoError(t, err, "extended profile is best effort")
	assert.Equal(t, "sam", p.Username)
}

func TestDiscordListOwnedGuildsFiltersOwner(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("with_counts"))
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": "111111111111", "name": "mine", "owner": true, "approximate_member_count": 12, "icon": "a_animhash"},
			{"id": "222222222222", "name": "joined", "owner": false},
		})
	}))
	defer srv.Close()

	d := NewDiscord("tok", Config{BaseURL: srv.URL, CDNBaseURL: "https://cdn.example"})
	guilds, err := d.ListOwnedGuilds(context.Background())
	require.NoError(t, err)
	require.Len(t, guilds, 1)
	assert.Equal(t, "mine", guilds[0].Name)
	assert.Equal(t, 12, guilds[0].MemberCount)
	assert.Equal(t, "https://cdn.example/icons/111111111111/a_animhash.gif?size=4096", guilds[0].IconURL, "animated icon hash serves gif")
}

func TestDiscordListChannelsParsesOverwrites(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{
			{
				"id": "333333333333", "type": 0, "name": "general", "position": 1,
				"parent_id": "444444444444",
				"permission_overwrites": []map[string]any{
					{"id": "555555555555", "type": 0, "allow": "1024", "deny": "2048"},
				},
			},
		})
	}))
	defer srv.Close()

	d := NewDiscord("tok", Config{BaseURL: srv.URL})
	channels, err := d.ListChannels(context.Background(), "999999999999")
	require.NoError(t, err)
	require.Len(t, channels, 1)
	ch := channels[0]
	assert.Equal(t, migrate.RemoteID("444444444444"), ch.ParentID)
	require.Len(t, ch.Overrides, 1)
	assert.Equal(t, uint64(1024), ch.Overrides[0].Allow)
	assert.Equal(t, uint64(2048), ch.Overrides[0].Deny)
}

func TestDiscordRefusesWrites(t *testing.T) {
	d := NewDiscord("tok", Config{})
	_, err := d.CreateGuild(context.Background(), CreateGuild{Name: "nope"})
	require.Error(t, err)
	assert.Equal(t, migrate.CodePermission, migrate.CodeOf(err))

	err = d.UpdateProfile(context.Background(), &migrate.ProfileData{})
	require.Error(t, err)
	assert.Equal(t, migrate.CodePermission, migrate.CodeOf(err))
}

func TestFluxerCreateGuild(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/guilds", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "fresh guild", body["name"])
		json.NewEncoder(w).Encode(map[string]any{"id": "777777777777", "name": "fresh guild"})
	}))
	defer srv.Close()

	f := NewFluxer("tok", Config{BaseURL: srv.URL})
	id, err := f.CreateGuild(context.Background(), CreateGuild{Name: "fresh guild"})
	require.NoError(t, err)
	assert.Equal(t, migrate.RemoteID("777777777777"), id)
}

func TestFluxerCreateChannelBody(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]any{"id": "888888888888"})
	}))
	defer srv.Close()

	f := NewFluxer("tok", Config{BaseURL: srv.URL})
	_, err := f.CreateChannel(context.Background(), "111111111111", CreateChannel{
		Name: "voice-chat", Type: migrate.ChannelVoice, Position: 3,
		ParentID: "222222222222", Bitrate: 64000, UserLimit: 10,
	})
	require.NoError(t, err)

	assert.Equal(t, float64(wireTypeVoice), got["type"])
	assert.Equal(t, "222222222222", got["parent_id"])
	assert.Equal(t, float64(64000), got["bitrate"])
	assert.Equal(t, float64(10), got["user_limit"])
	_, hasTopic := got["topic"]
	assert.False(t, hasTopic, "empty topic is omitted")
}

func TestFluxerCreateRoleBody(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]any{"id": "777777777777"})
	}))
	defer srv.Close()

	f := NewFluxer("tok", Config{BaseURL: srv.URL})
	_, err := f.CreateRole(context.Background(), "111111111111", CreateRole{
		Name: "Mods", Color: 0xFF0000, Position: 2, Permissions: 8, Hoisted: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "Mods", got["name"])
	assert.Equal(t, float64(2), got["position"], "role ordering travels in the payload")
	assert.Equal(t, "8", got["permissions"], "permission masks travel as decimal strings")
	assert.Equal(t, true, got["hoist"])
}

func TestFluxerCreateEmojiSendsDataURI(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]any{"id": "999999999999"})
	}))
	defer srv.Close()

	f := NewFluxer("tok", Config{BaseURL: srv.URL})
	_, err := f.CreateEmoji(context.Background(), "111111111111", CreateEmoji{
		Name:  "party",
		Image: []byte("\x89PNG\r\n\x1a\nrest"),
	})
	require.NoError(t, err)
	image, _ := got["image"].(string)
	assert.True(t, strings.HasPrefix(image, "data:image/png;base64,"), "got %q", image)
}

func TestFluxerApplyOverridePath(t *testing.T) {
	var gotPath, gotMethod string
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.Path, r.Method
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	f := NewFluxer("tok", Config{BaseURL: srv.URL})
	err := f.ApplyOverride(context.Background(), ApplyOverride{
		ChannelID: "123123123123", RoleID: "456456456456", Allow: 1024, Deny: 0,
	})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/channels/123123123123/permissions/456456456456", gotPath)
	assert.Equal(t, "1024", got["allow"])
	assert.Equal(t, "0", got["deny"])
}

func TestFluxerUpdateProfileSkipsEmptyFields(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	f := NewFluxer("tok", Config{BaseURL: srv.URL})
	err := f.UpdateProfile(context.Background(), &migrate.ProfileData{
		DisplayName: "Sam",
		Bio:         "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "Sam", got["global_name"])
	assert.Equal(t, "hello", got["bio"])
	_, hasPronouns := got["pronouns"]
	assert.False(t, hasPronouns)
	_, hasAvatar := got["avatar"]
	assert.False(t, hasAvatar)
}

func TestPreparePayloadRejectsOversizedGif(t *testing.T) {
	// A gif payload over the ceiling cannot be downscaled.
	data := append([]byte("GIF89a"), make([]byte, MaxEmojiBytes+1)...)
	_, err := preparePayload(migrate.KindEmoji, "party", data, MaxEmojiBytes)
	require.Error(t, err)
	assert.Equal(t, migrate.CodePayload, migrate.CodeOf(err))
}

func TestPreparePayloadPassesSmallPayloads(t *testing.T) {
	data := []byte("tiny")
	out, err := preparePayload(migrate.KindEmoji, "ok", data, MaxEmojiBytes)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}
