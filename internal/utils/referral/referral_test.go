package referral

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinkRoundTrip(t *testing.T) {
	gid := "3f1c2b7e-9a40-4f3b-8e8e-0c1d2e3f4a5b"
	link, err := Link("@raffle_bot", gid, 12345)
	require.NoError(t, err)
	assert.Equal(t, "https://t.me/raffle_bot?start=ref_"+gid+"_12345", link)

	parsedID, ref, err := Parse(StartParam(gid, 12345))
	require.NoError(t, err)
	assert.Equal(t, gid, parsedID)
	assert.Equal(t, int64(12345), ref)
}

func TestLinkRejectsMissingParts(t *testing.T) {
	_, err := Link("", "g", 1)
	assert.ErrorIs(t, err, ErrInvalidLink)
	_, err = Link("bot", "", 1)
	assert.ErrorIs(t, err, ErrInvalidLink)
	_, err = Link("bot", "g", 0)
	assert.ErrorIs(t, err, ErrInvalidLink)
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "ref_", "ref_g", "ref__1", "ref_g_", "ref_g_x", "ref_g_-4", "start_g_1"} {
		_, _, err := Parse(in)
		assert.ErrorIs(t, err, ErrInvalidLink, in)
	}
}

func TestQRCodeIsPNG(t *testing.T) {
	png, err := QRCode("https://t.me/raffle_bot?start=ref_g_1", 0)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))
}
