package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/fetchtube/fetchtube"
	"github.com/fetchtube/fetchtube/internal/fetch"
	"github.com/fetchtube/fetchtube/internal/session"
)

// upload streams a gate-approved file to the chat, tagged as a streamable
// video or as an audio track with title/performer metadata. Deleting the
// local file is the caller's job, on every exit path.
func (b *Bot) upload(chatID int64, tier fetchtube.Tier, res *fetch.Result, pending *session.Pending) error {
	title := pending.Title
	if title == "" {
		title = res.Title
	}

	if tier.IsAudio() {
		audio := tgbotapi.NewAudio(chatID, tgbotapi.FilePath(res.Path))
		audio.Title = title
		performer := pending.Uploader
		if performer == "" {
			performer = res.Uploader
		}
		if performer == "" {
			performer = "Unknown Artist"
		}
		audio.Performer = performer
		_, err := b.send(audio)
		return err
	}

	video := tgbotapi.NewVideo(chatID, tgbotapi.FilePath(res.Path))
	video.SupportsStreaming = true
	video.Caption = "🎬 " + title
	_, err := b.send(video)
	return err
}
