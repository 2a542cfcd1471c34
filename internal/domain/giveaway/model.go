package giveaway

import "time"

const (
	DefaultReferralMultiplier    = 1.5
	DefaultMaxReferralMultiplier = 5.0
)

// Giveaway is the aggregate an administrator creates, publishes and draws.
type Giveaway struct {
	ID                    string     `json:"id"`
	AdminID               int64      `json:"admin_id"`
	Name                  string     `json:"name"`
	Description           string     `json:"description"`
	Status                Status     `json:"status"`
	PrizesCount           int        `json:"prizes_count"`
	MaxParticipants       int        `json:"max_participants"` // 0 = unlimited
	RequiredChannels      []string   `json:"required_channels"`
	ReferralEnabled       bool       `json:"referral_enabled"`
	ReferralMultiplier    float64    `json:"referral_multiplier"`
	MaxReferralMultiplier float64    `json:"max_referral_multiplier"`
	ChallengeEnabled      bool       `json:"challenge_enabled"`
	ScheduledPublish      *time.Time `json:"scheduled_publish,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	PublishedAt           *time.Time `json:"published_at,omitempty"`
	FinishedAt            *time.Time `json:"finished_at,omitempty"`
}

// Participant is a user entered into a giveaway's draw pool.
type Participant struct {
	GiveawayID    string    `json:"giveaway_id"`
	UserID        int64     `json:"user_id"`
	Username      string    `json:"username,omitempty"`
	FirstName     string    `json:"first_name,omitempty"`
	LastName      string    `json:"last_name,omitempty"`
	ReferredBy    *int64    `json:"referred_by,omitempty"`
	ReferralCount int       `json:"referral_count"`
	JoinedAt      time.Time `json:"joined_at"`
}

// Winner is a participant selected by the draw with a unique place.
type Winner struct {
	GiveawayID    string    `json:"giveaway_id"`
	UserID        int64     `json:"user_id"`
	Place         int       `json:"place"`
	DataCollected bool      `json:"data_collected"`
	PrizeSent     bool      `json:"prize_sent"`
	SelectedAt    time.Time `json:"selected_at"`
}

// WinnerFlags carries the bookkeeping flags an admin may set on a winner.
// Nil fields are left unchanged.
type WinnerFlags struct {
	DataCollected *bool
	PrizeSent     *bool
}

// Stats summarizes a giveaway for its administrator.
type Stats struct {
	Participants         int `json:"participants"`
	ReferredParticipants int `json:"referred_participants"`
	TotalReferrals       int `json:"total_referrals"`
	Winners              int `json:"winners"`
}
