// Package telegram talks to the Bot API for message delivery and channel
// membership lookups.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	"github.com/mymmrac/telego/telegoapi"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/rs/zerolog/log"
)

// ErrRateLimited is returned when Telegram answers 429.
var ErrRateLimited = errors.New("telegram: too many requests")

// API is the subset of *telego.Bot the client needs.
type API interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
	GetChatMember(ctx context.Context, params *telego.GetChatMemberParams) (telego.ChatMember, error)
}

type Client struct {
	api API
}

// NewClient builds a client around a bot authorised by token.
func NewClient(token string) (*Client, error) {
	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Client{api: bot}, nil
}

// NewClientWithAPI wraps an existing bot implementation.
func NewClientWithAPI(api API) *Client {
	return &Client{api: api}
}

// SendMessage delivers an HTML formatted text to chatID.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	params := tu.Message(tu.ID(chatID), text).WithParseMode(telego.ModeHTML)
	if _, err := c.api.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("send message to %d: %w", chatID, classify(err))
	}
	return nil
}

// IsMember reports whether userID currently belongs to channel. channel is
// either "@username" or a numeric chat id.
func (c *Client) IsMember(ctx context.Context, channel string, userID int64) (bool, error) {
	chatID, err := chatIDOf(channel)
	if err != nil {
		return false, err
	}
	member, err := c.api.GetChatMember(ctx, &telego.GetChatMemberParams{ChatID: chatID, UserID: userID})
	if err != nil {
		return false, fmt.Errorf("get chat member %s: %w", channel, classify(err))
	}

	switch m := member.(type) {
	case *telego.ChatMemberRestricted:
		return m.IsMember, nil
	}
	switch member.MemberStatus() {
	case "creator", "administrator", "member":
		return true, nil
	default:
		log.Debug().Str("channel", channel).Int64("user_id", userID).Str("status", member.MemberStatus()).Msg("not a member")
		return false, nil
	}
}

func chatIDOf(channel string) (telego.ChatID, error) {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return telego.ChatID{}, errors.New("empty channel")
	}
	if strings.HasPrefix(channel, "@") {
		return tu.Username(channel), nil
	}
	id, err := strconv.ParseInt(channel, 10, 64)
	if err != nil {
		return telego.ChatID{}, fmt.Errorf("invalid chat id %q: %w", channel, err)
	}
	return tu.ID(id), nil
}

func classify(err error) error {
	var apiErr *telegoapi.Error
	if errors.As(err, &apiErr) && apiErr.ErrorCode == 429 {
		return fmt.Errorf("%w: %s", ErrRateLimited, apiErr.Description)
	}
	return err
}
