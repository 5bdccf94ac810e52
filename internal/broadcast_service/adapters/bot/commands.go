package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aradsms/broadcast_gate/internal/broadcast_service/adapters/telegram"
	"github.com/aradsms/broadcast_gate/internal/broadcast_service/domain"
)

const (
	replyStart            = "Press 📩 Send (or /send) to receive the latest text (approved users only)."
	replyAddMe            = "Request sent to admin. Wait for approval."
	replyApproved         = "User approved."
	replyYouAreApproved   = "✅ You have been approved."
	replyReset            = "✅ Post ID counter reset. Next broadcast will be Post #1."
	replyEmptyList        = "Empty"
	replyEmptyAudience    = "Whitelist is empty."
	replyNoAudiencePhoto  = "Whitelist is empty. Add users with /approve first."
	replyNeedPhoto        = "Send a photo or an image file."
	replyTextSaved        = "📝 Text saved. Approved users can get it with 📩 Send or /send."
	replyNoActivePost     = "No active post yet."
	replyInternalError    = "Something went wrong, try again later."
	usageApprove          = "Usage: /approve USER_ID"
	usageRemove           = "Usage: /remove USER_ID"
	usageBroadcast        = "Usage: /broadcast your message here"
	usageStatus           = "Usage: /status [POST_ID]"
	usageApproveReply     = "Use this by replying to a user's message: reply then type /approve_reply"
	approvalRequestFormat = "📥 Approval request\nID: %d\nName: %s\nUsername: %s\n\nApprove with:\n/approve %d\nOR reply to one of their messages with /approve_reply"
)

type commandHandler func(d *Dispatcher, ctx context.Context, msg *telegram.Message, args []string)

var publicCommands = map[string]commandHandler{
	"start": (*Dispatcher).cmdStart,
	"send":  (*Dispatcher).cmdSend,
	"addme": (*Dispatcher).cmdAddMe,
}

var operatorCommands = map[string]commandHandler{
	"approve":       (*Dispatcher).cmdApprove,
	"remove":        (*Dispatcher).cmdRemove,
	"list":          (*Dispatcher).cmdList,
	"resetposts":    (*Dispatcher).cmdResetPosts,
	"postid":        (*Dispatcher).cmdPostID,
	"status":        (*Dispatcher).cmdStatus,
	"broadcast":     (*Dispatcher).cmdBroadcast,
	"approve_reply": (*Dispatcher).cmdApproveReply,
}

func (d *Dispatcher) cmdStart(ctx context.Context, msg *telegram.Message, _ []string) {
	d.observe(ctx, msg.From)
	sendCtx, cancel := d.sendContext(ctx)
	defer cancel()
	if err := d.messenger.SendTextWithButton(sendCtx, domain.RecipientID(msg.Chat.ID), replyStart); err != nil {
		d.logger.WarnContext(ctx, "Start prompt failed", "chat_id", msg.Chat.ID, "error", err)
	}
}

func (d *Dispatcher) cmdSend(ctx context.Context, msg *telegram.Message, _ []string) {
	d.retrieve(ctx, requesterOf(msg.From), domain.RecipientID(msg.Chat.ID), domain.ChannelCommand)
}

func (d *Dispatcher) cmdAddMe(ctx context.Context, msg *telegram.Message, _ []string) {
	d.observe(ctx, msg.From)
	d.reply(ctx, domain.RecipientID(msg.Chat.ID), replyAddMe)

	handle := "(no username)"
	if msg.From.Username != "" {
		handle = "@" + msg.From.Username
	}
	text := fmt.Sprintf(approvalRequestFormat, msg.From.ID, msg.From.FullName(), handle, msg.From.ID)
	d.core.Alerts.Send(ctx, text)
}

func (d *Dispatcher) cmdApprove(ctx context.Context, msg *telegram.Message, args []string) {
	chat := domain.RecipientID(msg.Chat.ID)
	id, ok := singleID(args)
	if !ok {
		d.reply(ctx, chat, usageApprove)
		return
	}
	if err := d.core.Registry.Approve(ctx, domain.RecipientID(msg.From.ID), id); err != nil {
		d.fail(ctx, chat, "approve", err)
		return
	}
	d.reply(ctx, chat, replyApproved)
}

func (d *Dispatcher) cmdRemove(ctx context.Context, msg *telegram.Message, args []string) {
	chat := domain.RecipientID(msg.Chat.ID)
	id, ok := singleID(args)
	if !ok {
		d.reply(ctx, chat, usageRemove)
		return
	}
	removed, err := d.core.Registry.Remove(ctx, domain.RecipientID(msg.From.ID), id)
	if err != nil {
		d.fail(ctx, chat, "remove", err)
		return
	}
	label := d.core.Registry.LabelOf(ctx, id)
	if removed {
		d.reply(ctx, chat, fmt.Sprintf("✅ Removed %s from whitelist.", label))
		return
	}
	d.reply(ctx, chat, fmt.Sprintf("⚠️ %s was not in the whitelist.", label))
}

func (d *Dispatcher) cmdList(ctx context.Context, msg *telegram.Message, _ []string) {
	chat := domain.RecipientID(msg.Chat.ID)
	labels, err := d.core.Registry.ListLabels(ctx, domain.RecipientID(msg.From.ID))
	if err != nil {
		d.fail(ctx, chat, "list", err)
		return
	}
	if len(labels) == 0 {
		d.reply(ctx, chat, replyEmptyList)
		return
	}
	d.reply(ctx, chat, strings.Join(labels, "\n"))
}

func (d *Dispatcher) cmdResetPosts(ctx context.Context, msg *telegram.Message, _ []string) {
	chat := domain.RecipientID(msg.Chat.ID)
	if err := d.core.Ledger.ResetPosts(ctx, domain.RecipientID(msg.From.ID)); err != nil {
		d.fail(ctx, chat, "resetposts", err)
		return
	}
	d.reply(ctx, chat, replyReset)
}

func (d *Dispatcher) cmdPostID(ctx context.Context, msg *telegram.Message, _ []string) {
	chat := domain.RecipientID(msg.Chat.ID)
	id, err := d.core.Ledger.CurrentPostID(ctx)
	if err != nil {
		d.fail(ctx, chat, "postid", err)
		return
	}
	d.reply(ctx, chat, fmt.Sprintf("Current post id: %d", id))
}

func (d *Dispatcher) cmdStatus(ctx context.Context, msg *telegram.Message, args []string) {
	chat := domain.RecipientID(msg.Chat.ID)
	var postID int64
	if len(args) > 0 {
		n, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || n <= 0 || len(args) > 1 {
			d.reply(ctx, chat, usageStatus)
			return
		}
		postID = n
	}
	report, err := d.core.Status.Report(ctx, domain.RecipientID(msg.From.ID), postID)
	if errors.Is(err, domain.ErrNoActivePost) {
		d.reply(ctx, chat, replyNoActivePost)
		return
	}
	if err != nil {
		d.fail(ctx, chat, "status", err)
		return
	}
	d.reply(ctx, chat, d.formatStatus(ctx, report))
}

func (d *Dispatcher) cmdBroadcast(ctx context.Context, msg *telegram.Message, args []string) {
	chat := domain.RecipientID(msg.Chat.ID)
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		d.reply(ctx, chat, usageBroadcast)
		return
	}
	report, err := d.core.Coordinator.BroadcastText(ctx, domain.RecipientID(msg.From.ID), text)
	if errors.Is(err, domain.ErrEmptyAudience) {
		d.reply(ctx, chat, replyEmptyAudience)
		return
	}
	if err != nil {
		d.fail(ctx, chat, "broadcast", err)
		return
	}
	out := "📢 Broadcast message sent.\n✅ Sent to: " + joinLabels(report.Succeeded)
	if len(report.Failed) > 0 {
		out += "\n⚠️ Failed: " + joinFailures(report.Failed)
	}
	d.reply(ctx, chat, out)
}

func (d *Dispatcher) cmdApproveReply(ctx context.Context, msg *telegram.Message, _ []string) {
	chat := domain.RecipientID(msg.Chat.ID)
	if msg.ReplyToMessage == nil || msg.ReplyToMessage.From == nil {
		d.reply(ctx, chat, usageApproveReply)
		return
	}
	target := msg.ReplyToMessage.From
	targetID := domain.RecipientID(target.ID)
	d.observe(ctx, target)
	if err := d.core.Registry.Approve(ctx, domain.RecipientID(msg.From.ID), targetID); err != nil {
		d.fail(ctx, chat, "approve_reply", err)
		return
	}
	d.reply(ctx, chat, "✅ Approved "+d.core.Registry.LabelOf(ctx, targetID))
	d.reply(ctx, targetID, replyYouAreApproved)
}

// handleOperatorText stores a plain operator message as the retrievable text.
func (d *Dispatcher) handleOperatorText(ctx context.Context, msg *telegram.Message, text string) {
	chat := domain.RecipientID(msg.Chat.ID)
	if err := d.core.Ledger.UpdateText(ctx, domain.RecipientID(msg.From.ID), text); err != nil {
		d.fail(ctx, chat, "set_text", err)
		return
	}
	d.reply(ctx, chat, replyTextSaved)
}

func (d *Dispatcher) handlePhoto(ctx context.Context, msg *telegram.Message) {
	from := domain.RecipientID(msg.From.ID)
	if !d.core.Registry.IsOperator(from) {
		return
	}
	chat := domain.RecipientID(msg.Chat.ID)

	photo, ok := photoOf(msg)
	if !ok {
		d.reply(ctx, chat, replyNeedPhoto)
		return
	}
	report, err := d.core.Coordinator.Publish(ctx, from, domain.PublishRequest{Photo: photo, Caption: msg.Caption})
	if errors.Is(err, domain.ErrEmptyAudience) {
		d.reply(ctx, chat, replyNoAudiencePhoto)
		return
	}
	if err != nil {
		d.fail(ctx, chat, "publish", err)
		return
	}

	out := fmt.Sprintf("📸 Broadcast complete (Post #%d).\n✅ Sent to: %s", report.PostID, joinLabels(report.Succeeded))
	if len(report.Failed) > 0 {
		out += fmt.Sprintf("\n⚠️ Failed: %s (they may not have started the bot or blocked it)", joinFailures(report.Failed))
	}
	if report.TextFromCaption {
		out += "\n📝 Text updated from photo caption."
	} else {
		out += "\n📝 No caption. Send a normal text message now to set the text."
	}
	d.reply(ctx, chat, out)
}

// photoOf picks the largest photo size, or an image document sent as a file.
func photoOf(msg *telegram.Message) (domain.PhotoRef, bool) {
	if n := len(msg.Photo); n > 0 {
		return domain.PhotoRef{FileID: msg.Photo[n-1].FileID}, true
	}
	if doc := msg.Document; doc != nil && strings.HasPrefix(doc.MimeType, "image/") {
		return domain.PhotoRef{FileID: doc.FileID}, true
	}
	return domain.PhotoRef{}, false
}

func (d *Dispatcher) formatStatus(ctx context.Context, r *domain.StatusReport) string {
	pending := make([]string, len(r.NotYetRequested))
	for i, id := range r.NotYetRequested {
		pending[i] = d.core.Registry.LabelOf(ctx, id)
	}
	pendingText := "none"
	if len(pending) > 0 {
		pendingText = strings.Join(pending, ", ")
	}
	return fmt.Sprintf("📊 Post #%d\nWhitelist: %d\nSent to: %d\nRequested text: %d\nNot yet requested: %s",
		r.PostID, r.WhitelistSize, len(r.Recipients), r.DeliveredCount, pendingText)
}

func (d *Dispatcher) observe(ctx context.Context, u *telegram.User) {
	if err := d.core.Registry.RecordObservedIdentity(ctx, domain.RecipientID(u.ID), u.FullName(), u.Username); err != nil {
		d.logger.WarnContext(ctx, "Could not record identity", "user_id", u.ID, "error", err)
	}
}

func (d *Dispatcher) fail(ctx context.Context, chat domain.RecipientID, op string, err error) {
	if errors.Is(err, domain.ErrInvalidRecipient) {
		d.reply(ctx, chat, "Invalid user id.")
		return
	}
	d.logger.ErrorContext(ctx, "Command failed", "command", op, "error", err)
	d.reply(ctx, chat, replyInternalError)
}

func singleID(args []string) (domain.RecipientID, bool) {
	if len(args) != 1 {
		return 0, false
	}
	id, err := domain.ParseRecipientID(args[0])
	if err != nil {
		return 0, false
	}
	return id, true
}

func joinLabels(rs []domain.Recipient) string {
	if len(rs) == 0 {
		return "none"
	}
	labels := make([]string, len(rs))
	for i, r := range rs {
		labels[i] = r.Label
	}
	return strings.Join(labels, ", ")
}

func joinFailures(fs []domain.FanoutFailure) string {
	labels := make([]string, len(fs))
	for i, f := range fs {
		labels[i] = f.Recipient.Label
	}
	return strings.Join(labels, ", ")
}
