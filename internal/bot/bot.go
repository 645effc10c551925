// Package bot is the Telegram front end: it classifies incoming links,
// presents quality choices, and drives the download orchestrator, reporting
// every terminal state back to the chat with exactly one status message.
package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/fetchtube/fetchtube"
	"github.com/fetchtube/fetchtube/database"
	"github.com/fetchtube/fetchtube/internal/fetch"
	"github.com/fetchtube/fetchtube/internal/progress"
	"github.com/fetchtube/fetchtube/internal/session"
)

const defaultHistoryLimit = 10

// transport is the slice of the Telegram API the handlers use: sending
// messages, edits and uploads, and answering callback queries. The long-poll
// update loop stays on the concrete client.
type transport interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type Config struct {
	Token string
	// Registry classifies incoming message text; defaults to the global one.
	Registry *fetchtube.ProviderRegistry
	// ProgressStep is the minimum advance in percentage points between
	// progress edits.
	ProgressStep float64
	// HistoryLimit caps how many records /history replies with.
	HistoryLimit int
}

type Bot struct {
	api          *tgbotapi.BotAPI
	tg           transport
	registry     *fetchtube.ProviderRegistry
	sessions     *session.Store
	history      *database.Database
	orch         *fetch.Orchestrator
	progressStep float64
	historyLimit int
	log          *zap.SugaredLogger
}

func New(cfg Config, sessions *session.Store, history *database.Database, orch *fetch.Orchestrator) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}
	b := newBot(cfg, api, sessions, history, orch)
	b.api = api
	return b, nil
}

// newBot wires everything except the long-poll client, so handlers can run
// against any transport.
func newBot(cfg Config, tg transport, sessions *session.Store, history *database.Database, orch *fetch.Orchestrator) *Bot {
	registry := cfg.Registry
	if registry == nil {
		registry = &fetchtube.DefaultProviderRegistry
	}
	step := cfg.ProgressStep
	if step <= 0 {
		step = progress.DefaultStep
	}
	limit := cfg.HistoryLimit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return &Bot{
		tg:           tg,
		registry:     registry,
		sessions:     sessions,
		history:      history,
		orch:         orch,
		progressStep: step,
		historyLimit: limit,
		log:          zap.S().Named("bot"),
	}
}

// Run consumes the update long-poll until the context ends. Each inbound
// update is handled in its own goroutine; within one update, everything is
// strictly sequential.
func (b *Bot) Run(ctx context.Context) error {
	b.log.Infow("bot started", "username", b.api.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			go b.handleUpdate(ctx, update)
		}
	}
}

// handleUpdate dispatches one update. Nothing is allowed to propagate
// uncaught out of a session's handling path, panics included.
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Errorw("update handler panicked", "panic", r)
		}
	}()
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

// send wraps transport.Send with logging; callers that can't do anything
// useful with a transport error just drop it here.
func (b *Bot) send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	msg, err := b.tg.Send(c)
	if err != nil {
		b.log.Warnw("transport send failed", "error", err)
	}
	return msg, err
}

// editText replaces a status message's text, best-effort.
func (b *Bot) editText(chatID int64, messageID int, text string) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	_, _ = b.send(edit)
}

// recordDelivery persists a terminal outcome; history is never allowed to
// break a delivery, so failures are log-only.
func (b *Bot) recordDelivery(d *database.Delivery) {
	if b.history == nil {
		return
	}
	if err := b.history.RecordDelivery(d); err != nil {
		b.log.Warnw("failed to record delivery", "chat_id", d.ChatID, "error", err)
	}
}
