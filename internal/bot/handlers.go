package bot

import (
	"context"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"github.com/fetchtube/fetchtube"
	"github.com/fetchtube/fetchtube/database"
	"github.com/fetchtube/fetchtube/internal/fetch"
	"github.com/fetchtube/fetchtube/internal/progress"
	"github.com/fetchtube/fetchtube/internal/session"
)

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		b.handleCommand(msg)
		return
	}
	if match, err := b.registry.Match(msg.Text); err == nil {
		b.handleLink(ctx, msg, match)
		return
	}
	reply := tgbotapi.NewMessage(msg.Chat.ID, msgSendLink)
	_, _ = b.send(reply)
}

func (b *Bot) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		name := ""
		if msg.From != nil {
			name = msg.From.FirstName
		}
		_, _ = b.send(tgbotapi.NewMessage(msg.Chat.ID, greeting(name)))
		help := tgbotapi.NewMessage(msg.Chat.ID, helpMessage)
		help.ParseMode = tgbotapi.ModeMarkdown
		_, _ = b.send(help)
	case "help":
		help := tgbotapi.NewMessage(msg.Chat.ID, helpMessage)
		help.ParseMode = tgbotapi.ModeMarkdown
		_, _ = b.send(help)
	case "history":
		b.handleHistory(msg)
	default:
		_, _ = b.send(tgbotapi.NewMessage(msg.Chat.ID, msgSendLink))
	}
}

func (b *Bot) handleHistory(msg *tgbotapi.Message) {
	if b.history == nil {
		_, _ = b.send(tgbotapi.NewMessage(msg.Chat.ID, msgHistoryDisabled))
		return
	}
	deliveries, err := b.history.RecentDeliveries(msg.Chat.ID, b.historyLimit)
	if err != nil {
		b.log.Warnw("failed to query history", "chat_id", msg.Chat.ID, "error", err)
		_, _ = b.send(tgbotapi.NewMessage(msg.Chat.ID, msgHistoryFailed))
		return
	}
	_, _ = b.send(tgbotapi.NewMessage(msg.Chat.ID, formatHistory(deliveries)))
}

// handleLink fetches metadata for a recognized link and offers the quality
// choices. The link is stored in the session store before the keyboard is
// shown, so a button press can recover it.
func (b *Bot) handleLink(ctx context.Context, msg *tgbotapi.Message, match *fetchtube.Match) {
	chatID := msg.Chat.ID
	log := b.log.With("chat_id", chatID, "provider", match.ProviderName)

	status, err := b.send(tgbotapi.NewMessage(chatID, msgProcessing))
	if err != nil {
		return
	}

	info, err := match.Source.Recon(ctx)
	if err != nil {
		log.Warnw("metadata fetch failed", "url", match.Source.URL(), "error", err)
		b.editText(chatID, status.MessageID, msgProcessFailed)
		return
	}

	pending := session.Pending{
		URL:      match.Source.URL(),
		Title:    info.Title,
		Uploader: info.Uploader,
	}
	if err := b.sessions.Put(chatID, pending); err != nil {
		log.Errorw("failed to store session", "error", err)
		b.editText(chatID, status.MessageID, msgProcessFailed)
		return
	}

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎥 Video (High Quality)", string(fetchtube.TierVideoHigh)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎥 Video (Medium Quality)", string(fetchtube.TierVideoMedium)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎵 Audio Only (MP3)", string(fetchtube.TierAudio)),
		),
	)
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, status.MessageID, linkDetails(info), keyboard)
	edit.ParseMode = tgbotapi.ModeMarkdown
	_, _ = b.send(edit)
}

// handleCallback runs one full download session for a quality button press.
func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID
	messageID := cb.Message.MessageID

	if _, err := b.tg.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.log.Warnw("failed to answer callback", "chat_id", chatID, "error", err)
	}

	tier, err := fetchtube.ParseTier(cb.Data)
	if err != nil {
		b.editText(chatID, messageID, msgInvalidChoice)
		return
	}

	pending, err := b.sessions.Get(chatID)
	if err != nil {
		b.log.Errorw("failed to read session", "chat_id", chatID, "error", err)
	}
	if pending == nil {
		b.editText(chatID, messageID, msgSessionExpired)
		return
	}

	b.editText(chatID, messageID, startingDownload(pending.Title))
	b.runDownload(ctx, chatID, messageID, tier, pending)
}

// runDownload drives one orchestrated download to a terminal state: success,
// oversize rejection, definitive failure, or transport-send failure. The
// local file is gone by the time it returns, whatever happened.
func (b *Bot) runDownload(ctx context.Context, chatID int64, messageID int, tier fetchtube.Tier, pending *session.Pending) {
	requestID := uuid.NewString()
	log := b.log.With("chat_id", chatID, "request_id", requestID, "tier", tier)
	record := &database.Delivery{
		ID:     requestID,
		ChatID: chatID,
		URL:    pending.URL,
		Title:  pending.Title,
		Tier:   string(tier),
	}

	// Progress events flow through a bounded queue; the pump edits the status
	// message at a throttled cadence and is fully drained before any terminal
	// edit is sent.
	queue := progress.NewQueue(progress.DefaultQueueSize)
	pump := progress.NewPump(b.progressStep)
	var pumpDone sync.WaitGroup
	pumpDone.Add(1)
	go func() {
		defer pumpDone.Done()
		pump.Run(ctx, queue, func(u progress.Update) error {
			edit := tgbotapi.NewEditMessageText(chatID, messageID, downloading(tier, u))
			_, err := b.send(edit)
			return err
		})
	}()

	res, err := b.orch.Download(ctx, fetch.Request{
		ID:     requestID,
		ChatID: chatID,
		URL:    pending.URL,
		Tier:   tier,
		OnProgress: func(u progress.Update) {
			queue.TrySend(u)
		},
	})
	queue.Close()
	pumpDone.Wait()

	if err != nil {
		log.Warnw("download failed", "error", err)
		record.Status = database.StatusFailed
		record.Error = err.Error()
		b.recordDelivery(record)
		b.editText(chatID, messageID, msgDownloadFailed)
		return
	}
	record.SizeBytes = res.Size
	if record.Title == "" {
		record.Title = res.Title
	}

	if err := b.orch.Gate(res); err != nil {
		// Gate already deleted the file.
		log.Infow("delivery gate rejected file", "size", res.Size)
		record.Status = database.StatusOversize
		record.Error = err.Error()
		b.recordDelivery(record)
		b.editText(chatID, messageID, oversize(res.Size, b.orch.SizeLimit(), tier))
		return
	}

	b.editText(chatID, messageID, uploading(tier))
	sendErr := b.upload(chatID, tier, res, pending)
	b.orch.Cleanup(res.Path)

	if sendErr != nil {
		log.Warnw("upload failed", "error", sendErr)
		record.Status = database.StatusSendFailed
		record.Error = sendErr.Error()
		b.recordDelivery(record)
		b.editText(chatID, messageID, sendFailed(tier, sendErr))
		return
	}

	log.Infow("delivery complete", "size", res.Size)
	record.Status = database.StatusDelivered
	b.recordDelivery(record)
	b.editText(chatID, messageID, delivered(tier))
}
