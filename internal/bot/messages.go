package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fetchtube/fetchtube"
	"github.com/fetchtube/fetchtube/database"
	"github.com/fetchtube/fetchtube/internal/progress"
	"github.com/fetchtube/fetchtube/util"
)

const helpMessage = `🎬 *Video Downloader Bot* 🎬

Send me a video link, and I'll download it for you!

*Commands:*
/start - Start the bot
/help - Show this help message
/history - Show your recent downloads

*How to use:*
1. Simply send a video link
2. Choose the quality you want to download
3. Wait for the download to complete

*Supported links:*
- YouTube videos
- YouTube Shorts`

const (
	msgSendLink        = "Please send me a video link or use /help to see available commands."
	msgProcessing      = "🔎 Processing link..."
	msgProcessFailed   = "❌ Sorry, I couldn't process this link. Please make sure it's valid."
	msgSessionExpired  = "❌ Session expired. Please send the link again."
	msgInvalidChoice   = "❌ Invalid option selected."
	msgDownloadFailed  = "❌ Download failed. The video might be unavailable or restricted."
	msgHistoryDisabled = "History is not available."
	msgHistoryFailed   = "❌ Couldn't load your history. Please try again later."
	msgHistoryEmpty    = "You have no downloads yet. Send me a link!"
)

func greeting(firstName string) string {
	if firstName == "" {
		firstName = "there"
	}
	return fmt.Sprintf("👋 Hello, %s!\n\nWelcome to Video Downloader Bot. Send me a video link and I'll download it for you.", firstName)
}

func linkDetails(info *fetchtube.SourceInfo) string {
	return fmt.Sprintf(
		"📽️ *%s*\n\n▶️ Duration: %s\n👁️ Views: %s\n\nPlease select download format:",
		info.Title,
		formatDuration(info.Duration),
		formatViews(info.Views),
	)
}

func startingDownload(title string) string {
	return fmt.Sprintf("⏱️ Starting download for: %s...", title)
}

func downloading(tier fetchtube.Tier, u progress.Update) string {
	speed := "N/A"
	if u.Speed > 0 {
		speed = util.HumanBytes(int64(u.Speed)) + "/s"
	}
	eta := "N/A"
	if u.ETA > 0 {
		eta = u.ETA.Round(time.Second).String()
	}
	return fmt.Sprintf(
		"⬇️ Downloading %s: %.0f%% complete...\nSpeed: %s\nETA: %s",
		tier.Label(), u.Percent, speed, eta,
	)
}

func uploading(tier fetchtube.Tier) string {
	return fmt.Sprintf("📤 Uploading %s to Telegram...", tier.Label())
}

func oversize(size, limit int64, tier fetchtube.Tier) string {
	kind := "video"
	hint := "\nPlease try a lower quality option."
	if tier.IsAudio() {
		kind = "audio"
		hint = ""
	}
	return fmt.Sprintf(
		"⚠️ The %s is too large (%.1f MB) to send via Telegram (limit: %.0f MB).%s",
		kind, util.Mebibytes(size), util.Mebibytes(limit), hint,
	)
}

func sendFailed(tier fetchtube.Tier, err error) string {
	kind := "video"
	if tier.IsAudio() {
		kind = "audio"
	}
	return fmt.Sprintf("❌ Failed to send the %s: %s", kind, err)
}

func delivered(tier fetchtube.Tier) string {
	if tier.IsAudio() {
		return "✅ Audio downloaded and sent successfully!"
	}
	return "✅ Video downloaded and sent successfully!"
}

func formatHistory(deliveries []database.Delivery) string {
	if len(deliveries) == 0 {
		return msgHistoryEmpty
	}
	var sb strings.Builder
	sb.WriteString("🗂 Your recent downloads:\n")
	for _, d := range deliveries {
		title := d.Title
		if title == "" {
			title = d.URL
		}
		status := statusEmoji(d.Status)
		fmt.Fprintf(&sb, "\n%s %s — %s", status, title, fetchtube.Tier(d.Tier).Label())
		if d.SizeBytes > 0 {
			fmt.Fprintf(&sb, " (%s)", util.HumanBytes(d.SizeBytes))
		}
	}
	return sb.String()
}

func statusEmoji(s database.DeliveryStatus) string {
	switch s {
	case database.StatusDelivered:
		return "✅"
	case database.StatusOversize:
		return "⚠️"
	default:
		return "❌"
	}
}

// formatDuration renders a duration as h:mm:ss, or m:ss under an hour.
func formatDuration(d time.Duration) string {
	total := int64(d.Seconds())
	seconds := total % 60
	minutes := (total / 60) % 60
	hours := total / 3600
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

// formatViews groups digits with commas.
func formatViews(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	out := strings.Join(parts, ",")
	if neg {
		out = "-" + out
	}
	return out
}
