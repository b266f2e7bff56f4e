package telegram

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/telebot.v3"

	"susu_keeper/internal/app"
	"susu_keeper/internal/domain/deadline"
	"susu_keeper/internal/domain/group"
	"susu_keeper/internal/infra/config"
)

const adminID int64 = 4242

var otherGroup = common.HexToAddress("0x2222222222222222222222222222222222222222")

func newMemberHandlers(t *testing.T) *MemberHandlers {
	t.Helper()
	readers := fakeReaders{
		testGroup:  {active: true, round: 3, left: 7200},
		otherGroup: {active: false},
	}
	checker := app.NewPayoutChecker(readers, time.Second, quietLogger())
	groups := config.StaticGroupSource{
		{Address: testGroup, Name: "Family Circle"},
		{Address: otherGroup},
	}
	admin := app.NewAdminService(nil, adminID)
	return NewMemberHandlers(context.Background(), checker, groups, admin, memberID, quietLogger())
}

func TestOnStartGreetsByRole(t *testing.T) {
	h := newMemberHandlers(t)

	member := &fakeContext{sender: &telebot.User{ID: memberID, FirstName: "Ama"}}
	require.NoError(t, h.OnStart(member))
	assert.Contains(t, member.lastSent(), "Hello, Ama! I remind you")

	admin := &fakeContext{sender: &telebot.User{ID: adminID, FirstName: "Kofi"}}
	require.NoError(t, h.OnStart(admin))
	assert.Contains(t, admin.lastSent(), "admin commands")

	stranger := &fakeContext{sender: &telebot.User{ID: 7}}
	require.NoError(t, h.OnStart(stranger))
	assert.Contains(t, stranger.lastSent(), "registered savings group member")
}

func TestOnHelp(t *testing.T) {
	h := newMemberHandlers(t)

	admin := &fakeContext{sender: &telebot.User{ID: adminID}}
	require.NoError(t, h.OnHelp(admin))
	assert.Contains(t, admin.lastSent(), "/cancel_duty")

	stranger := &fakeContext{sender: &telebot.User{ID: 7}}
	require.NoError(t, h.OnHelp(stranger))
	assert.Equal(t, "There are no commands available for you.", stranger.lastSent())
}

func TestOnStatusListsEveryGroup(t *testing.T) {
	h := newMemberHandlers(t)

	c := &fakeContext{sender: &telebot.User{ID: memberID}}
	require.NoError(t, h.OnStatus(c))
	out := c.lastSent()
	assert.Contains(t, out, "Family Circle: Waiting for round 3. Time until deadline: 7200s")
	assert.Contains(t, out, otherGroup.Hex()+": "+otherGroup.Hex()+" is no longer active")

	stranger := &fakeContext{sender: &telebot.User{ID: 7}}
	require.NoError(t, h.OnStatus(stranger))
	assert.Contains(t, stranger.lastSent(), "not allowed")
}

func TestOnStatusWithoutGroups(t *testing.T) {
	h := newMemberHandlers(t)
	h.groups = config.StaticGroupSource(nil)

	c := &fakeContext{sender: &telebot.User{ID: memberID}}
	require.NoError(t, h.OnStatus(c))
	assert.Equal(t, "No savings groups are configured.", c.lastSent())
}

func TestAdminHandlersRejectNonAdmins(t *testing.T) {
	h := NewAdminHandlers(context.Background(), app.NewAdminService(nil, adminID), quietLogger())

	for _, handle := range []func(telebot.Context) error{h.OnDuties, h.OnCancelDuty, h.OnBalance} {
		c := &fakeContext{sender: &telebot.User{ID: memberID}, args: []string{"task-1"}}
		require.NoError(t, handle(c))
		assert.Contains(t, c.lastSent(), "not allowed")
	}
}

func TestOnCancelDutyValidatesArgs(t *testing.T) {
	h := NewAdminHandlers(context.Background(), app.NewAdminService(nil, adminID), quietLogger())

	c := &fakeContext{sender: &telebot.User{ID: adminID}}
	require.NoError(t, h.OnCancelDuty(c))
	assert.Equal(t, "Invalid format. Use: /cancel_duty <DutyID>", c.lastSent())
}

func TestConsentButtons(t *testing.T) {
	client := &fakeClient{}
	p := NewPresenter(client, memberID, time.Millisecond, quietLogger())
	h := &responseHandlers{presenter: p, memberID: memberID, logger: quietLogger()}

	stranger := &fakeContext{sender: &telebot.User{ID: 7}}
	require.NoError(t, h.OnAllow(stranger))
	assert.Equal(t, deadline.PermissionDefault, p.Permission())

	c := &fakeContext{sender: &telebot.User{ID: memberID}}
	require.NoError(t, h.OnDeny(c))
	assert.Equal(t, deadline.PermissionDenied, p.Permission())
	assert.Equal(t, []string{"Reminders are off for this session."}, c.edited)

	require.NoError(t, h.OnAllow(c))
	assert.Equal(t, deadline.PermissionDenied, p.Permission())
}

func TestOnDismiss(t *testing.T) {
	h := &responseHandlers{logger: quietLogger(), memberID: memberID}

	c := &fakeContext{
		sender:   &telebot.User{ID: memberID},
		callback: &telebot.Callback{Data: "0x1111111111111111111111111111111111111111:3"},
		message:  &telebot.Message{Text: "❌ Deadline passed"},
	}
	require.NoError(t, h.OnDismiss(c))
	assert.Equal(t, []string{"❌ Deadline passed"}, c.edited)
	require.Len(t, c.responses, 1)
	assert.Equal(t, "Dismissed.", c.responses[0].Text)

	bad := &fakeContext{sender: &telebot.User{ID: memberID}, callback: &telebot.Callback{Data: "junk"}}
	require.NoError(t, h.OnDismiss(bad))
	assert.Empty(t, bad.edited)
}

var _ group.Source = config.StaticGroupSource{}
