package telegram

import (
	"context"
	"errors"
	"testing"

	"github.com/mymmrac/telego"
	"github.com/mymmrac/telego/telegoapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	sent    []*telego.SendMessageParams
	members map[string]telego.ChatMember
	lookups []telego.ChatID
	err     error
}

func (f *fakeAPI) SendMessage(_ context.Context, params *telego.SendMessageParams) (*telego.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, params)
	return &telego.Message{}, nil
}

func (f *fakeAPI) GetChatMember(_ context.Context, params *telego.GetChatMemberParams) (telego.ChatMember, error) {
	f.lookups = append(f.lookups, params.ChatID)
	if f.err != nil {
		return nil, f.err
	}
	m, ok := f.members[params.ChatID.String()]
	if !ok {
		return &telego.ChatMemberLeft{Status: "left"}, nil
	}
	return m, nil
}

func TestSendMessageUsesHTML(t *testing.T) {
	api := &fakeAPI{}
	c := NewClientWithAPI(api)
	require.NoError(t, c.SendMessage(context.Background(), 42, "<b>hi</b>"))
	require.Len(t, api.sent, 1)
	assert.Equal(t, telego.ModeHTML, api.sent[0].ParseMode)
	assert.Equal(t, int64(42), api.sent[0].ChatID.ID)
}

func TestIsMember(t *testing.T) {
	api := &fakeAPI{members: map[string]telego.ChatMember{
		"@news":  &telego.ChatMemberMember{Status: "member"},
		"-10042": &telego.ChatMemberAdministrator{Status: "administrator"},
		"@muted": &telego.ChatMemberRestricted{Status: "restricted", IsMember: true},
		"@gone":  &telego.ChatMemberBanned{Status: "kicked"},
	}}
	c := NewClientWithAPI(api)
	ctx := context.Background()

	cases := map[string]bool{"@news": true, "-10042": true, "@muted": true, "@gone": false, "@other": false}
	for channel, want := range cases {
		ok, err := c.IsMember(ctx, channel, 7)
		require.NoError(t, err, channel)
		assert.Equal(t, want, ok, channel)
	}

	_, err := c.IsMember(ctx, "news", 7)
	assert.Error(t, err)
}

func TestRateLimitIsClassified(t *testing.T) {
	api := &fakeAPI{err: &telegoapi.Error{ErrorCode: 429, Description: "Too Many Requests: retry after 3"}}
	c := NewClientWithAPI(api)

	_, err := c.IsMember(context.Background(), "@news", 7)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.ErrorIs(t, c.SendMessage(context.Background(), 1, "x"), ErrRateLimited)

	api.err = errors.New("network down")
	_, err = c.IsMember(context.Background(), "@news", 7)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrRateLimited)
}
