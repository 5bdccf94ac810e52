// Package bot maps inbound Telegram updates onto the broadcast core.
package bot

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aradsms/broadcast_gate/internal/broadcast_service/adapters/telegram"
	"github.com/aradsms/broadcast_gate/internal/broadcast_service/app"
	"github.com/aradsms/broadcast_gate/internal/broadcast_service/domain"
)

// Messenger is the outbound side of the chat transport the dispatcher replies through.
type Messenger interface {
	domain.Transport
	SendTextWithButton(ctx context.Context, to domain.RecipientID, text string) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

type Config struct {
	Concurrency  int
	ReplyTimeout time.Duration
}

// Dispatcher handles every update on its own goroutine, bounded by Config.Concurrency.
type Dispatcher struct {
	core      *app.Core
	messenger Messenger
	cfg       Config
	group     errgroup.Group
	logger    *slog.Logger
}

func NewDispatcher(core *app.Core, messenger Messenger, cfg Config, logger *slog.Logger) *Dispatcher {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	d := &Dispatcher{
		core:      core,
		messenger: messenger,
		cfg:       cfg,
		logger:    logger.With("component", "bot_dispatcher"),
	}
	d.group.SetLimit(cfg.Concurrency)
	return d
}

// Dispatch schedules u. It blocks while the concurrency limit is reached.
func (d *Dispatcher) Dispatch(ctx context.Context, u telegram.Update) {
	d.group.Go(func() error {
		d.Handle(ctx, u)
		return nil
	})
}

// Wait blocks until every dispatched update was handled.
func (d *Dispatcher) Wait() {
	_ = d.group.Wait()
}

// Handle processes one update synchronously.
func (d *Dispatcher) Handle(ctx context.Context, u telegram.Update) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.ErrorContext(ctx, "Panic while handling update", "update_id", u.UpdateID, "panic", r)
		}
	}()

	switch {
	case u.CallbackQuery != nil:
		d.handleCallback(ctx, u.CallbackQuery)
	case u.Message != nil && u.Message.From != nil:
		d.handleMessage(ctx, u.Message)
	default:
		d.logger.DebugContext(ctx, "Ignoring update", "update_id", u.UpdateID)
	}
}

func (d *Dispatcher) handleMessage(ctx context.Context, msg *telegram.Message) {
	from := domain.RecipientID(msg.From.ID)

	if len(msg.Photo) > 0 || msg.Document != nil {
		d.handlePhoto(ctx, msg)
		return
	}

	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		if d.core.Registry.IsOperator(from) && text != "" {
			d.handleOperatorText(ctx, msg, text)
		}
		return
	}

	name, args := parseCommand(text)
	if h, ok := publicCommands[name]; ok {
		h(d, ctx, msg, args)
		return
	}
	if h, ok := operatorCommands[name]; ok {
		if !d.core.Registry.IsOperator(from) {
			d.logger.InfoContext(ctx, "Ignoring operator command from non-operator", "command", name, "user_id", from)
			return
		}
		h(d, ctx, msg, args)
		return
	}
	d.logger.DebugContext(ctx, "Unknown command", "command", name, "user_id", from)
}

func (d *Dispatcher) handleCallback(ctx context.Context, q *telegram.CallbackQuery) {
	if err := d.answer(ctx, q.ID); err != nil {
		d.logger.WarnContext(ctx, "Failed to answer callback query", "callback_id", q.ID, "error", err)
	}
	if q.Data != telegram.CallbackGetText {
		d.logger.DebugContext(ctx, "Unknown callback data", "data", q.Data)
		return
	}

	chat := q.From.ID
	if q.Message != nil && q.Message.Chat.ID != 0 {
		chat = q.Message.Chat.ID
	}
	d.retrieve(ctx, requesterOf(&q.From), domain.RecipientID(chat), domain.ChannelButton)
}

// retrieve runs the gate and replies with the outcome text. Command and button share it.
func (d *Dispatcher) retrieve(ctx context.Context, req app.Requester, chat domain.RecipientID, via domain.Channel) {
	out, err := d.core.Gate.Retrieve(ctx, req, via)
	if err != nil {
		d.logger.ErrorContext(ctx, "Retrieval failed", "user_id", req.ID, "channel", via, "error", err)
		d.reply(ctx, chat, replyInternalError)
		return
	}
	d.reply(ctx, chat, out.Reply())
}

// parseCommand splits "/cmd@bot a b" into "cmd" and its arguments.
func parseCommand(text string) (string, []string) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", nil
	}
	name := strings.TrimPrefix(fields[0], "/")
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(name), fields[1:]
}

func requesterOf(u *telegram.User) app.Requester {
	return app.Requester{ID: domain.RecipientID(u.ID), DisplayName: u.FullName(), Handle: u.Username}
}

func (d *Dispatcher) reply(ctx context.Context, to domain.RecipientID, text string) {
	sendCtx, cancel := d.sendContext(ctx)
	defer cancel()
	if err := d.messenger.SendText(sendCtx, to, text); err != nil {
		d.logger.WarnContext(ctx, "Reply failed", "chat_id", to, "error", err)
	}
}

func (d *Dispatcher) answer(ctx context.Context, callbackID string) error {
	sendCtx, cancel := d.sendContext(ctx)
	defer cancel()
	return d.messenger.AnswerCallback(sendCtx, callbackID, "")
}

func (d *Dispatcher) sendContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.cfg.ReplyTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.cfg.ReplyTimeout)
}
