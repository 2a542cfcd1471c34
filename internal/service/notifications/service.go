// Package notifications renders localized giveaway messages and delivers
// them through the bot.
package notifications

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"

	dg "github.com/open-builders/giveaway-raffle/internal/domain/giveaway"
	du "github.com/open-builders/giveaway-raffle/internal/domain/user"
)

//go:embed locales/*.toml
var localeFS embed.FS

// Sender delivers a text message to a chat.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// UserLookup resolves recipients for language and display names.
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*du.User, error)
}

type Service struct {
	sender        Sender
	users         UserLookup
	bundle        *i18n.Bundle
	defaultLocale string
}

// NewService loads the embedded message bundles. defaultLocale is used when
// the recipient's language is unknown or unsupported.
func NewService(sender Sender, defaultLocale string) (*Service, error) {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("read locales: %w", err)
	}
	for _, e := range entries {
		if _, err := bundle.LoadMessageFileFS(localeFS, "locales/"+e.Name()); err != nil {
			return nil, fmt.Errorf("load locale %s: %w", e.Name(), err)
		}
	}
	if defaultLocale == "" {
		defaultLocale = language.English.String()
	}
	return &Service{sender: sender, bundle: bundle, defaultLocale: defaultLocale}, nil
}

func (s *Service) WithUsers(u UserLookup) *Service {
	s.users = u
	return s
}

// NotifyWinner sends the winner their place.
func (s *Service) NotifyWinner(ctx context.Context, g *dg.Giveaway, w dg.Winner) error {
	loc := s.localizer(ctx, w.UserID)
	text, err := loc.Localize(&i18n.LocalizeConfig{
		MessageID:    "WinnerMessage",
		TemplateData: map[string]any{"Place": w.Place, "Name": html.EscapeString(g.Name)},
	})
	if err != nil {
		return fmt.Errorf("render winner message: %w", err)
	}
	return s.send(ctx, w.UserID, text)
}

// NotifyDrawCompleted sends the owner the list of winners.
func (s *Service) NotifyDrawCompleted(ctx context.Context, g *dg.Giveaway, winners []dg.Winner) error {
	loc := s.localizer(ctx, g.AdminID)
	name := html.EscapeString(g.Name)

	if len(winners) == 0 {
		text, err := loc.Localize(&i18n.LocalizeConfig{
			MessageID:    "DrawCompletedEmpty",
			TemplateData: map[string]any{"Name": name},
		})
		if err != nil {
			return fmt.Errorf("render draw message: %w", err)
		}
		return s.send(ctx, g.AdminID, text)
	}

	lines := make([]string, 0, len(winners))
	for _, w := range winners {
		line, err := loc.Localize(&i18n.LocalizeConfig{
			MessageID:    "WinnerLine",
			TemplateData: map[string]any{"Place": w.Place, "Label": s.label(ctx, w.UserID)},
		})
		if err != nil {
			return fmt.Errorf("render winner line: %w", err)
		}
		lines = append(lines, line)
	}
	text, err := loc.Localize(&i18n.LocalizeConfig{
		MessageID:    "DrawCompleted",
		PluralCount:  len(winners),
		TemplateData: map[string]any{"Name": name, "Count": len(winners), "Winners": strings.Join(lines, "\n")},
	})
	if err != nil {
		return fmt.Errorf("render draw message: %w", err)
	}
	return s.send(ctx, g.AdminID, text)
}

// NotifyPublished tells the owner the giveaway is live.
func (s *Service) NotifyPublished(ctx context.Context, g *dg.Giveaway) error {
	text, err := s.localizer(ctx, g.AdminID).Localize(&i18n.LocalizeConfig{
		MessageID:    "GiveawayPublished",
		TemplateData: map[string]any{"Name": html.EscapeString(g.Name)},
	})
	if err != nil {
		return fmt.Errorf("render publish message: %w", err)
	}
	return s.send(ctx, g.AdminID, text)
}

func (s *Service) send(ctx context.Context, chatID int64, text string) error {
	if s.sender == nil {
		return errors.New("notifications: no sender configured")
	}
	if chatID == 0 {
		return errors.New("notifications: empty recipient")
	}
	return s.sender.SendMessage(ctx, chatID, text)
}

func (s *Service) lookup(ctx context.Context, userID int64) *du.User {
	if s.users == nil {
		return nil
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		log.Debug().Err(err).Int64("user_id", userID).Msg("recipient lookup failed")
		return nil
	}
	return u
}

func (s *Service) localizer(ctx context.Context, userID int64) *i18n.Localizer {
	langs := []string{}
	if u := s.lookup(ctx, userID); u != nil && u.LanguageCode != "" {
		langs = append(langs, u.LanguageCode)
	}
	langs = append(langs, s.defaultLocale)
	return i18n.NewLocalizer(s.bundle, langs...)
}

// label renders a user as @username or a tg:// mention.
func (s *Service) label(ctx context.Context, userID int64) string {
	display := "User"
	if u := s.lookup(ctx, userID); u != nil {
		if u.Username != "" {
			return "@" + html.EscapeString(u.Username)
		}
		if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
			display = name
		}
	}
	return fmt.Sprintf(`<a href="tg://user?id=%d">%s</a>`, userID, html.EscapeString(display))
}
