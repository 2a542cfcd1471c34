package sqlite

import (
	"time"

	dg "github.com/open-builders/giveaway-raffle/internal/domain/giveaway"
	du "github.com/open-builders/giveaway-raffle/internal/domain/user"
)

type giveawayRecord struct {
	ID                    string   `gorm:"primaryKey;size:36"`
	AdminID               int64    `gorm:"index;not null"`
	Name                  string   `gorm:"not null"`
	Description           string
	Status                string   `gorm:"index;not null;default:created"`
	PrizesCount           int      `gorm:"not null;default:1"`
	MaxParticipants       int      `gorm:"not null;default:0"`
	RequiredChannels      []string `gorm:"serializer:json"`
	ReferralEnabled       bool
	ReferralMultiplier    float64 `gorm:"not null;default:1.5"`
	MaxReferralMultiplier float64 `gorm:"not null;default:5"`
	ChallengeEnabled      bool
	ScheduledPublish      *time.Time
	CreatedAt             time.Time
	PublishedAt           *time.Time
	FinishedAt            *time.Time
}

func (giveawayRecord) TableName() string { return "giveaways" }

type participantRecord struct {
	ID            uint   `gorm:"primaryKey"`
	GiveawayID    string `gorm:"size:36;not null;uniqueIndex:idx_participant_user"`
	UserID        int64  `gorm:"not null;uniqueIndex:idx_participant_user"`
	Username      string
	FirstName     string
	LastName      string
	ReferredBy    *int64
	ReferralCount int `gorm:"not null;default:0"`
	JoinedAt      time.Time
}

func (participantRecord) TableName() string { return "participants" }

type winnerRecord struct {
	ID            uint   `gorm:"primaryKey"`
	GiveawayID    string `gorm:"size:36;not null;uniqueIndex:idx_winner_place;uniqueIndex:idx_winner_user"`
	UserID        int64  `gorm:"not null;uniqueIndex:idx_winner_user"`
	Place         int    `gorm:"not null;uniqueIndex:idx_winner_place"`
	DataCollected bool
	PrizeSent     bool
	SelectedAt    time.Time
}

func (winnerRecord) TableName() string { return "winners" }

type userRecord struct {
	ID           int64 `gorm:"primaryKey;autoIncrement:false"`
	Username     string
	FirstName    string
	LastName     string
	LanguageCode string
	IsPremium    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (userRecord) TableName() string { return "users" }

func toGiveawayRecord(g *dg.Giveaway) giveawayRecord {
	return giveawayRecord{
		ID:                    g.ID,
		AdminID:               g.AdminID,
		Name:                  g.Name,
		Description:           g.Description,
		Status:                string(g.Status),
		PrizesCount:           g.PrizesCount,
		MaxParticipants:       g.MaxParticipants,
		RequiredChannels:      g.RequiredChannels,
		ReferralEnabled:       g.ReferralEnabled,
		ReferralMultiplier:    g.ReferralMultiplier,
		MaxReferralMultiplier: g.MaxReferralMultiplier,
		ChallengeEnabled:      g.ChallengeEnabled,
		ScheduledPublish:      g.ScheduledPublish,
		CreatedAt:             g.CreatedAt,
		PublishedAt:           g.PublishedAt,
		FinishedAt:            g.FinishedAt,
	}
}

func (r giveawayRecord) toDomain() dg.Giveaway {
	channels := r.RequiredChannels
	if channels == nil {
		channels = []string{}
	}
	return dg.Giveaway{
		ID:                    r.ID,
		AdminID:               r.AdminID,
		Name:                  r.Name,
		Description:           r.Description,
		Status:                dg.Status(r.Status),
		PrizesCount:           r.PrizesCount,
		MaxParticipants:       r.MaxParticipants,
		RequiredChannels:      channels,
		ReferralEnabled:       r.ReferralEnabled,
		ReferralMultiplier:    r.ReferralMultiplier,
		MaxReferralMultiplier: r.MaxReferralMultiplier,
		ChallengeEnabled:      r.ChallengeEnabled,
		ScheduledPublish:      utcPtr(r.ScheduledPublish),
		CreatedAt:             r.CreatedAt.UTC(),
		PublishedAt:           utcPtr(r.PublishedAt),
		FinishedAt:            utcPtr(r.FinishedAt),
	}
}

func (r participantRecord) toDomain() dg.Participant {
	return dg.Participant{
		GiveawayID:    r.GiveawayID,
		UserID:        r.UserID,
		Username:      r.Username,
		FirstName:     r.FirstName,
		LastName:      r.LastName,
		ReferredBy:    r.ReferredBy,
		ReferralCount: r.ReferralCount,
		JoinedAt:      r.JoinedAt.UTC(),
	}
}

func (r winnerRecord) toDomain() dg.Winner {
	return dg.Winner{
		GiveawayID:    r.GiveawayID,
		UserID:        r.UserID,
		Place:         r.Place,
		DataCollected: r.DataCollected,
		PrizeSent:     r.PrizeSent,
		SelectedAt:    r.SelectedAt.UTC(),
	}
}

func (r userRecord) toDomain() *du.User {
	return &du.User{
		ID:           r.ID,
		Username:     r.Username,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		LanguageCode: r.LanguageCode,
		IsPremium:    r.IsPremium,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
