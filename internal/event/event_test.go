package event

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineageEndsInAnyAndStartsWithSelf(t *testing.T) {
	t.Parallel()

	for k := range isA {
		l := k.Lineage()
		require.NotEmpty(t, l, k.String())
		assert.Equal(t, k, l[0], k.String())
		assert.Equal(t, KindAny, l[len(l)-1], k.String())
		// Every broader kind's own lineage must be a suffix of ours.
		for i, broader := range l {
			assert.Equal(t, l[i:], broader.Lineage(), "%s via %s", k, broader)
		}
	}
}

func TestKindIs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		k, other Kind
		want     bool
	}{
		{KindButtonClick, KindComponent, true},
		{KindButtonClick, KindInteraction, true},
		{KindButtonClick, KindAny, true},
		{KindSlashCommand, KindComponent, false},
		{KindReactionAdd, KindReaction, true},
		{KindMessage, KindInteraction, false},
		{KindShutdown, KindSession, true},
	}
	for _, tc := range tests {
		t.Run(tc.k.String()+"/"+tc.other.String(), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, tc.k.Is(tc.other))
		})
	}
}

func TestPermissionHas(t *testing.T) {
	t.Parallel()

	manage := PermissionManageMessages | PermissionKickMembers
	assert.True(t, PermissionNone.Has(PermissionNone))
	assert.True(t, manage.Has(PermissionManageMessages))
	assert.False(t, manage.Has(PermissionBanMembers))
	assert.False(t, manage.Has(PermissionManageMessages|PermissionBanMembers))
	assert.True(t, PermissionAdministrator.Has(PermissionBanMembers))
	assert.Equal(t, "kick_members|manage_messages", manage.String())
}

type fakeSource struct {
	perms   Permission
	replies []string
}

func (f *fakeSource) Reply(_ context.Context, text string) error {
	f.replies = append(f.replies, text)
	return nil
}
func (f *fakeSource) Permissions() Permission { return f.perms }

func TestMessageInvocation(t *testing.T) {
	t.Parallel()

	src := &fakeSource{perms: PermissionManageMessages}
	m := &Message{Content: "  !Purge   10  now ", Source: src}
	assert.Equal(t, "!Purge", m.Trigger())
	assert.Equal(t, []string{"10", "now"}, m.Args())
	assert.True(t, m.HasPermission(PermissionManageMessages))
	assert.False(t, m.HasPermission(PermissionBanMembers))

	require.NoError(t, m.Reply(context.Background(), "done"))
	assert.Equal(t, []string{"done"}, src.replies)

	var inv Invocation = m
	_, ok := inv.Option("count")
	assert.False(t, ok)
}

func TestSlashCommandOptions(t *testing.T) {
	t.Parallel()

	s := &SlashCommand{Name: "remind", Options: []OptionValue{{"when", "10m"}, {"text", "tea"}}}
	v, ok := s.Option("TEXT")
	require.True(t, ok)
	assert.Equal(t, "tea", v)
	assert.Equal(t, []string{"10m", "tea"}, s.Args())
}

func TestNilSource(t *testing.T) {
	t.Parallel()

	m := &Message{Content: "!x"}
	assert.ErrorIs(t, m.Reply(context.Background(), "hi"), ErrNoSource)
	assert.True(t, m.HasPermission(PermissionNone))
	assert.False(t, m.HasPermission(PermissionKickMembers))

	a := &Autocomplete{}
	assert.ErrorIs(t, a.Suggest(context.Background(), nil), ErrNoSource)
}

func TestReactionKind(t *testing.T) {
	t.Parallel()

	assert.Equal(t, KindReactionAdd, (&Reaction{Added: true}).Kind())
	assert.Equal(t, KindReactionRemove, (&Reaction{}).Kind())
}
