package notifications

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dg "github.com/open-builders/giveaway-raffle/internal/domain/giveaway"
	du "github.com/open-builders/giveaway-raffle/internal/domain/user"
)

type sent struct {
	chatID int64
	text   string
}

type recorder struct {
	mu   sync.Mutex
	msgs []sent
	err  error
}

func (r *recorder) SendMessage(_ context.Context, chatID int64, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.msgs = append(r.msgs, sent{chatID, text})
	return nil
}

type users map[int64]*du.User

func (u users) GetByID(_ context.Context, id int64) (*du.User, error) {
	return u[id], nil
}

func newTestService(t *testing.T) (*Service, *recorder) {
	t.Helper()
	rec := &recorder{}
	svc, err := NewService(rec, "en")
	require.NoError(t, err)
	svc.WithUsers(users{
		1: {ID: 1, Username: "alice", LanguageCode: "ru"},
		2: {ID: 2, FirstName: "Bob <3"},
		9: {ID: 9, LanguageCode: "en"},
	})
	return svc, rec
}

func TestNotifyWinnerUsesRecipientLanguage(t *testing.T) {
	svc, rec := newTestService(t)
	g := &dg.Giveaway{ID: "g", AdminID: 9, Name: "Tea & Cakes"}

	require.NoError(t, svc.NotifyWinner(context.Background(), g, dg.Winner{UserID: 1, Place: 1}))
	require.NoError(t, svc.NotifyWinner(context.Background(), g, dg.Winner{UserID: 2, Place: 2}))
	require.Len(t, rec.msgs, 2)

	assert.Equal(t, int64(1), rec.msgs[0].chatID)
	assert.Contains(t, rec.msgs[0].text, "Поздравляем")
	assert.Contains(t, rec.msgs[0].text, "Tea &amp; Cakes")
	assert.Contains(t, rec.msgs[1].text, "Congratulations")
	assert.Contains(t, rec.msgs[1].text, "#2")
}

func TestNotifyDrawCompleted(t *testing.T) {
	svc, rec := newTestService(t)
	g := &dg.Giveaway{ID: "g", AdminID: 9, Name: "Launch"}

	require.NoError(t, svc.NotifyDrawCompleted(context.Background(), g, []dg.Winner{
		{UserID: 1, Place: 1}, {UserID: 2, Place: 2}, {UserID: 3, Place: 3},
	}))
	require.Len(t, rec.msgs, 1)
	text := rec.msgs[0].text
	assert.Equal(t, int64(9), rec.msgs[0].chatID)
	assert.Contains(t, text, "3 winners were selected")
	assert.Contains(t, text, "1. @alice")
	assert.Contains(t, text, `2. <a href="tg://user?id=2">Bob &lt;3</a>`)
	assert.Contains(t, text, `3. <a href="tg://user?id=3">User</a>`)

	require.NoError(t, svc.NotifyDrawCompleted(context.Background(), g, []dg.Winner{{UserID: 1, Place: 1}}))
	assert.Contains(t, rec.msgs[1].text, "1 winner was selected")

	require.NoError(t, svc.NotifyDrawCompleted(context.Background(), g, nil))
	assert.Contains(t, rec.msgs[2].text, "without winners")
}

func TestNotifyPublishedFallsBackToDefaultLocale(t *testing.T) {
	svc, rec := newTestService(t)
	require.NoError(t, svc.NotifyPublished(context.Background(), &dg.Giveaway{AdminID: 77, Name: "x"}))
	require.Len(t, rec.msgs, 1)
	assert.Contains(t, rec.msgs[0].text, "is live")

	ru, err := NewService(rec, "ru")
	require.NoError(t, err)
	require.NoError(t, ru.NotifyPublished(context.Background(), &dg.Giveaway{AdminID: 77, Name: "x"}))
	assert.Contains(t, rec.msgs[1].text, "опубликован")
}

func TestSendErrors(t *testing.T) {
	rec := &recorder{err: errors.New("blocked by user")}
	svc, err := NewService(rec, "")
	require.NoError(t, err)
	assert.Error(t, svc.NotifyPublished(context.Background(), &dg.Giveaway{AdminID: 1, Name: "x"}))
	assert.Error(t, svc.NotifyPublished(context.Background(), &dg.Giveaway{Name: "x"}))

	none, err := NewService(nil, "en")
	require.NoError(t, err)
	assert.Error(t, none.NotifyWinner(context.Background(), &dg.Giveaway{Name: "x"}, dg.Winner{UserID: 1, Place: 1}))
}
