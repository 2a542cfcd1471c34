// Package referral builds and parses giveaway referral deep links.
package referral

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/skip2/go-qrcode"
)

const (
	prefix          = "ref_"
	DefaultQRSize   = 256
	maxStartPayload = 64
)

var ErrInvalidLink = errors.New("invalid referral payload")

// Link returns the bot deep link that carries giveawayID and the referring user.
func Link(botUsername, giveawayID string, userID int64) (string, error) {
	botUsername = strings.TrimPrefix(botUsername, "@")
	if botUsername == "" {
		return "", fmt.Errorf("%w: bot username is not configured", ErrInvalidLink)
	}
	if giveawayID == "" || userID == 0 {
		return "", fmt.Errorf("%w: missing giveaway or user id", ErrInvalidLink)
	}
	payload := StartParam(giveawayID, userID)
	if len(payload) > maxStartPayload {
		return "", fmt.Errorf("%w: payload exceeds %d bytes", ErrInvalidLink, maxStartPayload)
	}
	return fmt.Sprintf("https://t.me/%s?start=%s", botUsername, payload), nil
}

// StartParam is the value Telegram hands back as the start parameter.
func StartParam(giveawayID string, userID int64) string {
	return prefix + giveawayID + "_" + strconv.FormatInt(userID, 10)
}

// Parse extracts the giveaway id and referrer id from a start parameter.
func Parse(startParam string) (giveawayID string, referrerID int64, err error) {
	rest, ok := strings.CutPrefix(startParam, prefix)
	if !ok {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidLink, startParam)
	}
	i := strings.LastIndex(rest, "_")
	if i <= 0 || i == len(rest)-1 {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidLink, startParam)
	}
	referrerID, err = strconv.ParseInt(rest[i+1:], 10, 64)
	if err != nil || referrerID <= 0 {
		return "", 0, fmt.Errorf("%w: bad user id in %q", ErrInvalidLink, startParam)
	}
	return rest[:i], referrerID, nil
}

// QRCode renders link as a PNG of size pixels.
func QRCode(link string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultQRSize
	}
	png, err := qrcode.Encode(link, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr code: %w", err)
	}
	return png, nil
}
