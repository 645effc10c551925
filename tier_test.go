package fetchtube

import (
	"strings"
	"testing"

	assert_ "github.com/stretchr/testify/assert"
)

func TestParseTier(t *testing.T) {
	assert := assert_.New(t)
	for _, want := range []Tier{TierVideoHigh, TierVideoMedium, TierAudio} {
		got, err := ParseTier(string(want))
		assert.Nil(err)
		assert.Equal(want, got)
	}
	_, err := ParseTier("video_ultra")
	assert.NotNil(err)
	_, err = ParseTier("")
	assert.NotNil(err)
}

func TestDefaultPolicyOrder(t *testing.T) {
	assert := assert_.New(t)
	policy := DefaultPolicy()

	high := policy.SpecsFor(TierVideoHigh)
	assert.Len(high, 2)
	assert.Contains(high[0].Format, "height<=1080")
	assert.Contains(high[1].Format, "height<=720")

	medium := policy.SpecsFor(TierVideoMedium)
	assert.Len(medium, 2)
	assert.Contains(medium[0].Format, "height<=480")
	assert.Contains(medium[1].Format, "height<=360")

	audio := policy.SpecsFor(TierAudio)
	assert.Len(audio, 1)
	assert.Equal("bestaudio/best", audio[0].Format)
	assert.True(audio[0].ExtractAudio)
	assert.Equal("mp3", audio[0].AudioCodec)
	assert.Equal("192K", audio[0].AudioQuality)
}

func TestDefaultPolicyVideoTiersConvertToMP4(t *testing.T) {
	assert := assert_.New(t)
	policy := DefaultPolicy()
	for _, tier := range []Tier{TierVideoHigh, TierVideoMedium} {
		for _, spec := range policy.SpecsFor(tier) {
			assert.Equal("mp4", spec.MergeFormat)
			assert.Equal("mp4", spec.RecodeVideo)
			assert.Equal([]string{"mp4", "mkv", "webm"}, spec.AltExtensions)
		}
	}
}

func TestDefaultPolicyLastResort(t *testing.T) {
	assert := assert_.New(t)
	policy := DefaultPolicy()

	assert.Equal("best/bestvideo+bestaudio", policy.LastResort.Format)
	assert.False(policy.LastResort.ExtractAudio)

	for _, tier := range []Tier{TierVideoHigh, TierVideoMedium} {
		spec, ok := policy.LastResortFor(tier)
		assert.True(ok)
		assert.Equal(policy.LastResort, spec)
	}
	// Audio has no lower tier to fall back to, and a generic video download
	// is not a substitute for a failed extraction.
	_, ok := policy.LastResortFor(TierAudio)
	assert.False(ok)
	// The last resort is generic: it must not appear in any tier's own list.
	for tier, specs := range policy.Tiers {
		for _, spec := range specs {
			assert.NotEqual(policy.LastResort.Format, spec.Format, "tier %s duplicates the last resort", tier)
		}
	}
}

func TestTierLabels(t *testing.T) {
	assert := assert_.New(t)
	assert.True(TierAudio.IsAudio())
	assert.False(TierVideoHigh.IsAudio())
	assert.False(TierVideoMedium.IsAudio())
	for _, tier := range []Tier{TierVideoHigh, TierVideoMedium, TierAudio} {
		assert.NotEmpty(tier.Label())
		assert.False(strings.Contains(tier.Label(), "_"))
	}
}

func TestSpecsForUnknownTier(t *testing.T) {
	assert := assert_.New(t)
	policy := DefaultPolicy()
	assert.Empty(policy.SpecsFor(Tier("bogus")))
}
