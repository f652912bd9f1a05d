package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guildport/guildport/internal/migrate"
)

const dstGuildID = migrate.RemoteID("dst-guild")

func TestExecuteCreatesEverything(t *testing.T) {
	snap := sampleSnapshot()
	plan, err := BuildPlan(snap, migrate.MatchMapping{})
	require.NoError(t, err)

	client := &fakeClient{}
	report := Execute(context.Background(), client, dstGuildID, plan, migrate.MatchMapping{}, nil, ExecOptions{})

	assert.True(t, report.OK())
	assert.Len(t, report.Succeeded, 6)
	assert.Empty(t, report.Failed)

	// The channel must have been created under the category's new id.
	require.Len(t, client.channelReqs, 1)
	assert.NotEmpty(t, client.channelReqs[0].ParentID)

	// The override must reference both fresh ids.
	require.Len(t, client.overrideReqs, 1)
	assert.NotEmpty(t, client.overrideReqs[0].ChannelID)
	assert.NotEmpty(t, client.overrideReqs[0].RoleID)
	assert.Equal(t, uint64(1024), client.overrideReqs[0].Allow)
}

func TestExecuteForwardsRolePositions(t *testing.T) {
	// Role creations may land in any order, so the source ordering must
	// travel in the create payloads.
	src := &migrate.GuildSnapshot{
		GuildID: testGuildID,
		Name:    "Source",
		Roles: []migrate.Role{
			{Local: 0, Name: "Members", Position: 1},
			{Local: 1, Name: "Mods", Position: 2, Permissions: 8},
			{Local: 2, Name: "Admin", Position: 3, Permissions: 8},
		},
	}
	plan, err := BuildPlan(src, migrate.MatchMapping{})
	require.NoError(t, err)

	client := &fakeClient{}
	report := Execute(context.Background(), client, dstGuildID, plan, migrate.MatchMapping{}, nil, ExecOptions{})
	require.True(t, report.OK())

	require.Len(t, client.roleReqs, 3)
	positions := map[string]int{}
	for _, req := range client.roleReqs {
		positions[req.Name] = req.Position
	}
	assert.Equal(t, map[string]int{"Members": 1, "Mods": 2, "Admin": 3}, positions)
}

func TestExecuteUsesMatchedRemoteIDs(t *testing.T) {
	// The category exists on the destination ("General" vs "general"
	// differs only by case), so only the channel is created, under the
	// destination's existing category id.
	snap := sampleSnapshot()
	matches := migrate.MatchMapping{
		{Kind: migrate.KindCategory, Local: 0}: "existing-cat",
		{Kind: migrate.KindRole, Local: 0}:     "existing-role",
		{Kind: migrate.KindEmoji, Local: 0}:    "existing-emoji",
		{Kind: migrate.KindSticker, Local: 0}:  "existing-sticker",
	}
	plan, err := BuildPlan(snap, matches)
	require.NoError(t, err)

	client := &fakeClient{}
	report := Execute(context.Background(), client, dstGuildID, plan, matches, nil, ExecOptions{})
	require.True(t, report.OK())

	assert.Equal(t, 0, client.callCount("CreateCategory"))
	require.Len(t, client.channelReqs, 1)
	assert.Equal(t, migrate.RemoteID("existing-cat"), client.channelReqs[0].ParentID)

	require.Len(t, client.overrideReqs, 1)
	assert.Equal(t, migrate.RemoteID("existing-role"), client.overrideReqs[0].RoleID)
}

func TestExecuteCascadesDependencyFailures(t *testing.T) {
	snap := sampleSnapshot()
	plan, err := BuildPlan(snap, migrate.MatchMapping{})
	require.NoError(t, err)

	client := &fakeClient{
		createRoleErr: func(name string) error {
			return migrate.NewFailure(migrate.CodeRateLimit, "still throttled")
		},
	}
	report := Execute(context.Background(), client, dstGuildID, plan, migrate.MatchMapping{}, nil, ExecOptions{})

	assert.False(t, report.OK())
	assert.False(t, report.Aborted, "per-op failures do not abort the run")

	byName := map[string]migrate.OpFailure{}
	for _, f := range report.Failed {
		byName[f.Name] = f
	}
	require.Len(t, report.Failed, 2)
	assert.Equal(t, migrate.CodeRateLimit, byName["Mods"].Code)
	assert.Equal(t, migrate.CodeDependency, byName["general / Mods"].Code)

	// The cascaded override never reaches the platform.
	assert.Equal(t, 0, client.callCount("ApplyOverride"))
	// Independent ops still ran.
	assert.Equal(t, 1, client.callCount("CreateChannel"))
	assert.Equal(t, 1, client.callCount("CreateEmoji"))
}

func TestExecuteChannelFailureCascadesToOverride(t *testing.T) {
	snap := sampleSnapshot()
	plan, err := BuildPlan(snap, migrate.MatchMapping{})
	require.NoError(t, err)

	client := &fakeClient{
		createChannelErr: func(name string) error {
			return migrate.NewFailure(migrate.CodeTransport, "flaky")
		},
	}
	report := Execute(context.Background(), client, dstGuildID, plan, migrate.MatchMapping{}, nil, ExecOptions{})

	assert.Equal(t, 0, client.callCount("ApplyOverride"))
	require.Len(t, report.Failed, 2)
}

func TestExecuteAbortsOnAuthFailure(t *testing.T) {
	snap := sampleSnapshot()
	plan, err := BuildPlan(snap, migrate.MatchMapping{})
	require.NoError(t, err)

	client := &fakeClient{
		createRoleErr: func(name string) error {
			return migrate.NewFailure(migrate.CodeAuth, "token revoked")
		},
	}
	report := Execute(context.Background(), client, dstGuildID, plan, migrate.MatchMapping{}, nil, ExecOptions{Concurrency: 1})

	assert.True(t, report.Aborted)
	assert.Contains(t, report.AbortReason, "token revoked")
	assert.Equal(t, 0, client.callCount("CreateEmoji"), "later stages never dispatch after an abort")
	require.NotEmpty(t, report.Warnings)
}

func TestExecuteProfileIsIndependent(t *testing.T) {
	snap := sampleSnapshot()
	plan, err := BuildPlan(snap, migrate.MatchMapping{})
	require.NoError(t, err)

	client := &fakeClient{
		updateProfileErr: migrate.NewFailure(migrate.CodePayload, "banner too large"),
	}
	profile := &migrate.ProfileData{Username: "sam"}
	report := Execute(context.Background(), client, dstGuildID, plan, migrate.MatchMapping{}, profile, ExecOptions{})

	assert.False(t, report.Aborted, "a profile payload failure does not stop guild ops")
	assert.Len(t, report.Succeeded, 6)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, migrate.KindProfile, report.Failed[0].Kind)
	assert.Equal(t, migrate.CodePayload, report.Failed[0].Code)
}

func TestExecuteProfileAuthFailureAborts(t *testing.T) {
	snap := sampleSnapshot()
	plan, err := BuildPlan(snap, migrate.MatchMapping{})
	require.NoError(t, err)

	client := &fakeClient{
		updateProfileErr: migrate.NewFailure(migrate.CodeAuth, "bad token"),
	}
	report := Execute(context.Background(), client, dstGuildID, plan, migrate.MatchMapping{}, &migrate.ProfileData{}, ExecOptions{})

	assert.True(t, report.Aborted)
	assert.Equal(t, 0, client.callCount("CreateRole"), "guild ops never start")
}

func TestExecuteRespectsCancellation(t *testing.T) {
	snap := sampleSnapshot()
	plan, err := BuildPlan(snap, migrate.MatchMapping{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := &fakeClient{}
	report := Execute(ctx, client, dstGuildID, plan, migrate.MatchMapping{}, nil, ExecOptions{})

	assert.Empty(t, report.Succeeded)
	require.NotEmpty(t, report.Warnings)
	assert.Contains(t, report.Warnings[0], "cancelled")
}
