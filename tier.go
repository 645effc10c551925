package fetchtube

import "fmt"

// Tier is one of the three user-selectable download modes. The string values
// double as the callback tokens carried by the quality-selection buttons.
type Tier string

const (
	TierVideoHigh   Tier = "video_high"
	TierVideoMedium Tier = "video_medium"
	TierAudio       Tier = "audio"
)

// ParseTier converts a callback token back into a Tier.
func ParseTier(s string) (Tier, error) {
	switch t := Tier(s); t {
	case TierVideoHigh, TierVideoMedium, TierAudio:
		return t, nil
	default:
		return "", fmt.Errorf("unknown tier %q", s)
	}
}

// Label is the human-readable name used in status messages.
func (t Tier) Label() string {
	switch t {
	case TierVideoHigh:
		return "high quality video"
	case TierVideoMedium:
		return "medium quality video"
	case TierAudio:
		return "audio"
	default:
		return string(t)
	}
}

// IsAudio reports whether the tier delivers an audio-only asset.
func (t Tier) IsAudio() bool {
	return t == TierAudio
}

// A FormatSpec is one attempt's worth of parameters for the extraction
// engine: the format-selection expression plus any container/postprocessing
// directives, and the alternate extensions the engine is known to substitute
// for the reported output name.
type FormatSpec struct {
	Format        string
	MergeFormat   string
	RecodeVideo   string
	ExtractAudio  bool
	AudioCodec    string
	AudioQuality  string
	AltExtensions []string
}

var (
	videoAltExtensions = []string{"mp4", "mkv", "webm"}
	audioAltExtensions = []string{"mp3", "m4a", "ogg", "opus"}
)

// A Policy maps each tier to its ordered list of format specifications, plus
// the single unconditional last-resort specification tried after a tier's
// list is exhausted.
type Policy struct {
	Tiers      map[Tier][]FormatSpec
	LastResort FormatSpec
}

// SpecsFor returns the ordered attempt list for the tier. Unknown tiers get
// an empty list, leaving only the last resort.
func (p *Policy) SpecsFor(t Tier) []FormatSpec {
	return p.Tiers[t]
}

// LastResortFor returns the fallback specification tried after a tier's list
// is exhausted. Audio tiers have none: a generic video download is the wrong
// kind of asset to substitute for a failed audio extraction, so an exhausted
// audio list fails definitively.
func (p *Policy) LastResortFor(t Tier) (FormatSpec, bool) {
	if t.IsAudio() {
		return FormatSpec{}, false
	}
	return p.LastResort, true
}

// DefaultPolicy returns the stock tier policy: two resolution ceilings per
// video tier, best-available audio re-encoded to mp3 at 192K for the audio
// tier, and a generic best-available last resort.
func DefaultPolicy() Policy {
	return Policy{
		Tiers: map[Tier][]FormatSpec{
			TierVideoHigh: {
				{
					Format:        "bestvideo[height<=1080][ext=mp4]+bestaudio[ext=m4a]/best[height<=1080][ext=mp4]/best[height<=1080]/best[ext=mp4]/best",
					MergeFormat:   "mp4",
					RecodeVideo:   "mp4",
					AltExtensions: videoAltExtensions,
				},
				{
					Format:        "bestvideo[height<=720][ext=mp4]+bestaudio[ext=m4a]/best[height<=720][ext=mp4]/best[height<=720]/best[ext=mp4]/best",
					MergeFormat:   "mp4",
					RecodeVideo:   "mp4",
					AltExtensions: videoAltExtensions,
				},
			},
			TierVideoMedium: {
				{
					Format:        "bestvideo[height<=480][ext=mp4]+bestaudio[ext=m4a]/best[height<=480][ext=mp4]/best[height<=480]/best[ext=mp4]/best",
					MergeFormat:   "mp4",
					RecodeVideo:   "mp4",
					AltExtensions: videoAltExtensions,
				},
				{
					Format:        "bestvideo[height<=360][ext=mp4]+bestaudio[ext=m4a]/best[height<=360][ext=mp4]/best[height<=360]/best[ext=mp4]/best",
					MergeFormat:   "mp4",
					RecodeVideo:   "mp4",
					AltExtensions: videoAltExtensions,
				},
			},
			TierAudio: {
				{
					Format:        "bestaudio/best",
					ExtractAudio:  true,
					AudioCodec:    "mp3",
					AudioQuality:  "192K",
					AltExtensions: audioAltExtensions,
				},
			},
		},
		LastResort: FormatSpec{
			Format:        "best/bestvideo+bestaudio",
			AltExtensions: videoAltExtensions,
		},
	}
}
