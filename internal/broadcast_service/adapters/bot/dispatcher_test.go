package bot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aradsms/broadcast_gate/internal/broadcast_service/adapters/telegram"
	"github.com/aradsms/broadcast_gate/internal/broadcast_service/app"
	"github.com/aradsms/broadcast_gate/internal/broadcast_service/domain"
	"github.com/aradsms/broadcast_gate/internal/broadcast_service/repository/sqlite"
	"github.com/aradsms/broadcast_gate/internal/platform/database"
)

const adminID = 500

type sent struct {
	To     domain.RecipientID
	Text   string
	Photo  string
	Button bool
}

// fakeMessenger records outbound traffic and fails sends to ids in failTo.
type fakeMessenger struct {
	mu       sync.Mutex
	sent     []sent
	answered []string
	failTo   map[domain.RecipientID]bool
}

func (f *fakeMessenger) SendPhoto(_ context.Context, to domain.RecipientID, photo domain.PhotoRef, caption string, withAffordance bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTo[to] {
		return errors.New("Forbidden: bot was blocked by the user")
	}
	f.sent = append(f.sent, sent{To: to, Text: caption, Photo: photo.FileID, Button: withAffordance})
	return nil
}

func (f *fakeMessenger) SendText(_ context.Context, to domain.RecipientID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTo[to] {
		return errors.New("Forbidden: bot was blocked by the user")
	}
	f.sent = append(f.sent, sent{To: to, Text: text})
	return nil
}

func (f *fakeMessenger) SendTextWithButton(_ context.Context, to domain.RecipientID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{To: to, Text: text, Button: true})
	return nil
}

func (f *fakeMessenger) AnswerCallback(_ context.Context, callbackID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answered = append(f.answered, callbackID)
	return nil
}

// textsTo drains the texts sent to id so far.
func (f *fakeMessenger) textsTo(id domain.RecipientID) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	kept := f.sent[:0]
	for _, s := range f.sent {
		if s.To == id && s.Photo == "" {
			out = append(out, s.Text)
			continue
		}
		kept = append(kept, s)
	}
	f.sent = kept
	return out
}

func (f *fakeMessenger) photos() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sent
	for _, s := range f.sent {
		if s.Photo != "" {
			out = append(out, s)
		}
	}
	return out
}

func newTestDispatcher(t *testing.T, retrievalCap int) (*Dispatcher, *fakeMessenger, *app.Core) {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := database.OpenSQLite(ctx, filepath.Join(t.TempDir(), "bot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlite.EnsureSchema(ctx, db))

	messenger := &fakeMessenger{failTo: map[domain.RecipientID]bool{}}
	operators := domain.NewOperators(adminID)
	notifier := telegram.NewNotifier(messenger, operators)
	core := app.NewCore(app.Dependencies{
		Access:            sqlite.NewAccessRepository(db, logger),
		Ledger:            sqlite.NewLedgerRepository(db, logger),
		Delivery:          sqlite.NewDeliveryRepository(db, logger),
		Transport:         messenger,
		Notifier:          notifier,
		Operators:         operators,
		RetrievalCap:      retrievalCap,
		FanoutConcurrency: 2,
		TransportTimeout:  time.Second,
		Logger:            logger,
	})
	d := NewDispatcher(core, messenger, Config{Concurrency: 4, ReplyTimeout: time.Second}, logger)
	return d, messenger, core
}

func user(id int64, name, handle string) *telegram.User {
	return &telegram.User{ID: id, FirstName: name, Username: handle}
}

func command(from *telegram.User, text string) telegram.Update {
	return telegram.Update{Message: &telegram.Message{From: from, Chat: telegram.Chat{ID: from.ID}, Text: text}}
}

func button(from *telegram.User) telegram.Update {
	return telegram.Update{CallbackQuery: &telegram.CallbackQuery{
		ID:      "cb",
		From:    *from,
		Data:    telegram.CallbackGetText,
		Message: &telegram.Message{Chat: telegram.Chat{ID: from.ID}},
	}}
}

func photo(from *telegram.User, caption string) telegram.Update {
	return telegram.Update{Message: &telegram.Message{
		From:    from,
		Chat:    telegram.Chat{ID: from.ID},
		Caption: caption,
		Photo:   []telegram.PhotoSize{{FileID: "small"}, {FileID: "large"}},
	}}
}

func TestDispatcher_AdminLifecycle(t *testing.T) {
	ctx := context.Background()
	d, m, _ := newTestDispatcher(t, 2)
	admin := user(adminID, "Admin", "")

	d.Handle(ctx, command(admin, "/approve abc"))
	assert.Equal(t, []string{"Usage: /approve USER_ID"}, m.textsTo(adminID))

	d.Handle(ctx, command(admin, "/approve 11"))
	d.Handle(ctx, command(admin, "/approve@my_bot 12"))
	assert.Equal(t, []string{"User approved.", "User approved."}, m.textsTo(adminID))

	d.Handle(ctx, command(user(11, "Nima", "nima"), "/start"))
	assert.Equal(t, []string{replyStart}, m.textsTo(11))

	d.Handle(ctx, command(admin, "/list"))
	assert.Equal(t, []string{"11 - Nima @nima\n12"}, m.textsTo(adminID))

	d.Handle(ctx, command(admin, "/remove 12"))
	d.Handle(ctx, command(admin, "/remove 12"))
	assert.Equal(t, []string{"✅ Removed 12 from whitelist.", "⚠️ 12 was not in the whitelist."}, m.textsTo(adminID))

	d.Handle(ctx, command(admin, "/postid"))
	assert.Equal(t, []string{"Current post id: 0"}, m.textsTo(adminID))

	d.Handle(ctx, command(admin, "/status"))
	assert.Equal(t, []string{"No active post yet."}, m.textsTo(adminID))
}

func TestDispatcher_NonOperatorCommandsAreIgnored(t *testing.T) {
	ctx := context.Background()
	d, m, core := newTestDispatcher(t, 2)
	intruder := user(77, "Mal", "")

	d.Handle(ctx, command(intruder, "/approve 77"))
	d.Handle(ctx, command(intruder, "/resetposts"))
	d.Handle(ctx, photo(intruder, "hijack"))
	d.Handle(ctx, command(intruder, "just text"))

	assert.Empty(t, m.textsTo(77))
	ok, err := core.Registry.IsAuthorized(ctx, 77)
	require.NoError(t, err)
	assert.False(t, ok)
	_, hasText, err := core.Ledger.PendingText(ctx)
	require.NoError(t, err)
	assert.False(t, hasText)
}

func TestDispatcher_PublishAndRetrieve(t *testing.T) {
	ctx := context.Background()
	d, m, _ := newTestDispatcher(t, 2)
	admin := user(adminID, "Admin", "")
	reader := user(21, "Lina", "lina")
	blocked := user(22, "Omid", "")

	d.Handle(ctx, photo(admin, "caption text"))
	assert.Equal(t, []string{replyNoAudiencePhoto}, m.textsTo(adminID))

	d.Handle(ctx, command(admin, "/approve 21"))
	d.Handle(ctx, command(admin, "/approve 22"))
	d.Handle(ctx, command(blocked, "/start"))
	m.textsTo(adminID)
	m.failTo[22] = true

	d.Handle(ctx, photo(admin, "caption text"))
	photos := m.photos()
	require.Len(t, photos, 1)
	assert.Equal(t, domain.RecipientID(21), photos[0].To)
	assert.Equal(t, "large", photos[0].Photo)
	assert.Equal(t, "Post #1\nTap 📩 Send or use /send to get the text.", photos[0].Text)
	assert.True(t, photos[0].Button)
	assert.Equal(t, []string{
		"📸 Broadcast complete (Post #1).\n✅ Sent to: 21\n⚠️ Failed: 22 - Omid (they may not have started the bot or blocked it)\n📝 Text updated from photo caption.",
	}, m.textsTo(adminID))

	d.Handle(ctx, command(reader, "/send"))
	assert.Equal(t, []string{"caption text"}, m.textsTo(domain.RecipientID(reader.ID)))

	d.Handle(ctx, button(reader))
	assert.Equal(t, []string{"caption text"}, m.textsTo(domain.RecipientID(reader.ID)))

	d.Handle(ctx, command(reader, "/send"))
	assert.Equal(t, []string{"⚠️ You already received the text for Post #1 (2/2)."}, m.textsTo(domain.RecipientID(reader.ID)))
	assert.Equal(t, []string{
		"✅ Sent text to approved user 21 - Lina @lina via /send (1/2)",
		"✅ Sent text to approved user 21 - Lina @lina via button (2/2)",
	}, m.textsTo(adminID))

	d.Handle(ctx, command(admin, "/status"))
	assert.Equal(t, []string{"📊 Post #1\nWhitelist: 2\nSent to: 2\nRequested text: 1\nNot yet requested: 22 - Omid"}, m.textsTo(adminID))
}

func TestDispatcher_CommandAndButtonShareReplies(t *testing.T) {
	ctx := context.Background()
	d, m, _ := newTestDispatcher(t, 5)
	admin := user(adminID, "Admin", "")
	stranger := user(31, "Sam", "")
	member := user(32, "Kia", "")

	for _, u := range []telegram.Update{command(stranger, "/send"), button(stranger)} {
		d.Handle(ctx, u)
	}
	denied := m.textsTo(domain.RecipientID(stranger.ID))
	require.Len(t, denied, 2)
	assert.Equal(t, denied[0], denied[1])
	assert.Equal(t, "❌ You are not approved.", denied[0])
	assert.Equal(t, []string{
		"🚨 Non-whitelisted user tried /send: 31 - Sam",
		"🚨 Non-whitelisted user tried button: 31 - Sam",
	}, m.textsTo(adminID))

	d.Handle(ctx, command(admin, "/approve 32"))
	for _, u := range []telegram.Update{command(member, "/send"), button(member)} {
		d.Handle(ctx, u)
	}
	assert.Equal(t, []string{"No active post yet.", "No active post yet."}, m.textsTo(domain.RecipientID(member.ID)))

	d.Handle(ctx, photo(admin, ""))
	m.textsTo(adminID)
	for _, u := range []telegram.Update{command(member, "/send"), button(member)} {
		d.Handle(ctx, u)
	}
	assert.Equal(t, []string{"No text saved yet.", "No text saved yet."}, m.textsTo(domain.RecipientID(member.ID)))

	d.Handle(ctx, command(admin, "the real text"))
	assert.Equal(t, []string{replyTextSaved}, m.textsTo(adminID))
	for _, u := range []telegram.Update{command(member, "/send"), button(member)} {
		d.Handle(ctx, u)
	}
	assert.Equal(t, []string{"the real text", "the real text"}, m.textsTo(domain.RecipientID(member.ID)))
}

func TestDispatcher_BroadcastText(t *testing.T) {
	ctx := context.Background()
	d, m, core := newTestDispatcher(t, 2)
	admin := user(adminID, "Admin", "")

	d.Handle(ctx, command(admin, "/broadcast"))
	assert.Equal(t, []string{usageBroadcast}, m.textsTo(adminID))

	d.Handle(ctx, command(admin, "/broadcast hi"))
	assert.Equal(t, []string{replyEmptyAudience}, m.textsTo(adminID))

	d.Handle(ctx, command(admin, "/approve 41"))
	m.textsTo(adminID)
	d.Handle(ctx, command(admin, "/broadcast hello   all"))

	m.mu.Lock()
	got := append([]sent(nil), m.sent...)
	m.mu.Unlock()
	assert.Contains(t, got, sent{To: 41, Text: "hello all"})
	assert.Contains(t, got, sent{To: adminID, Text: "📢 Broadcast message sent.\n✅ Sent to: 41"})

	id, err := core.Ledger.CurrentPostID(ctx)
	require.NoError(t, err)
	assert.Zero(t, id)
}

func TestDispatcher_AddMeAndApproveReply(t *testing.T) {
	ctx := context.Background()
	d, m, core := newTestDispatcher(t, 2)
	admin := user(adminID, "Admin", "")
	newcomer := user(51, "Tara", "tara")

	d.Handle(ctx, command(newcomer, "/addme"))
	assert.Equal(t, []string{replyAddMe}, m.textsTo(domain.RecipientID(newcomer.ID)))
	notices := m.textsTo(adminID)
	require.Len(t, notices, 1)
	assert.Contains(t, notices[0], "📥 Approval request\nID: 51\nName: Tara\nUsername: @tara")
	assert.Contains(t, notices[0], "/approve 51")

	d.Handle(ctx, command(admin, "/approve_reply"))
	assert.Equal(t, []string{usageApproveReply}, m.textsTo(adminID))

	reply := command(admin, "/approve_reply")
	reply.Message.ReplyToMessage = &telegram.Message{From: newcomer, Chat: telegram.Chat{ID: adminID}}
	d.Handle(ctx, reply)

	m.mu.Lock()
	got := append([]sent(nil), m.sent...)
	m.mu.Unlock()
	assert.Contains(t, got, sent{To: adminID, Text: "✅ Approved 51 - Tara @tara"})
	assert.Contains(t, got, sent{To: 51, Text: replyYouAreApproved})

	ok, err := core.Registry.IsAuthorized(ctx, 51)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDispatcher_ImageDocumentAndConcurrency(t *testing.T) {
	ctx := context.Background()
	d, m, _ := newTestDispatcher(t, 1)
	admin := user(adminID, "Admin", "")

	doc := telegram.Update{Message: &telegram.Message{
		From: admin, Chat: telegram.Chat{ID: adminID},
		Document: &telegram.Document{FileID: "pdf", MimeType: "application/pdf"},
	}}
	d.Handle(ctx, doc)
	assert.Equal(t, []string{replyNeedPhoto}, m.textsTo(adminID))

	d.Handle(ctx, command(admin, "/approve 61"))
	doc.Message.Document = &telegram.Document{FileID: "png", MimeType: "image/png"}
	doc.Message.Caption = "from a file"
	d.Handle(ctx, doc)
	photos := m.photos()
	require.Len(t, photos, 1)
	assert.Equal(t, "png", photos[0].Photo)
	m.textsTo(adminID)

	reader := user(61, "Ray", "")
	for i := 0; i < 10; i++ {
		if i%2 == 0 {
			d.Dispatch(ctx, button(reader))
		} else {
			d.Dispatch(ctx, command(reader, "/send"))
		}
	}
	d.Wait()

	replies := m.textsTo(domain.RecipientID(reader.ID))
	require.Len(t, replies, 10)
	delivered := 0
	for _, r := range replies {
		if r == "from a file" {
			delivered++
		}
	}
	assert.Equal(t, 1, delivered)
}
