package persona

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultProfile(t *testing.T) {
	p := DefaultProfile()

	assert.Equal(t, "Sweetie", p.Identity.Nickname)
	assert.Equal(t, "CN", p.Identity.Locale)
	assert.Equal(t, "Asia/Shanghai", p.Identity.Timezone)
	assert.Equal(t, "zh-CN", p.Identity.PrimaryLanguage)
	assert.Equal(t, "A2", p.Identity.CEFRLevel)
	assert.Equal(t, PaceNormal, p.Learning.Pace)
	assert.Equal(t, ScaffoldingMedium, p.Learning.ScaffoldingLevel)
	assert.Equal(t, ExamplesRealLife, p.Learning.ExamplesPreference)
	assert.Equal(t, CorrectionSocratic, p.Learning.ErrorCorrectionStyle)
	assert.Equal(t, ToneEncouraging, p.Motivation.Tone)
	assert.Equal(t, PraiseModerate, p.Motivation.PraiseFrequency)
	assert.True(t, p.Motivation.EmotionCheckin)
	assert.True(t, p.Motivation.GrowthMindset)
	assert.Equal(t, 60, p.Routines.SessionLengthMax)
	assert.Equal(t, 15, p.Routines.BreakIntervalMin)
	assert.True(t, p.Communication.Emoji)
	assert.True(t, p.Communication.StepByStep)
	assert.True(t, p.Communication.AskBeforeAnswer)
	assert.InDelta(t, 0.8, p.Assessment.MasteryThreshold, 0.001)
	assert.False(t, p.Safety.ExternalLinksAllowed)
	assert.Equal(t, ContentK12Safe, p.Safety.ContentLevel)
	assert.Equal(t, []string{"Violent", "Adult"}, p.Safety.ProhibitedTopics)
	assert.Equal(t, "1.0", p.Meta.Version)

	assert.NoError(t, p.Validate())
}

func TestParseProfile(t *testing.T) {
	t.Run("empty input yields defaults", func(t *testing.T) {
		p, err := ParseProfile(nil)
		require.NoError(t, err)
		assert.Equal(t, "Sweetie", p.Identity.Nickname)
	})

	t.Run("partial profile keeps defaults for unset sections", func(t *testing.T) {
		raw := `{
			"identity": {"nickname": "Ming", "grade_level": "7th grade"},
			"learning": {"pace": "fast", "strengths": ["math", "physics"]}
		}`

		p, err := ParseProfile([]byte(raw))
		require.NoError(t, err)

		assert.Equal(t, "Ming", p.Identity.Nickname)
		assert.Equal(t, "7th grade", p.Identity.GradeLevel)
		assert.Equal(t, PaceFast, p.Learning.Pace)
		assert.Equal(t, []string{"math", "physics"}, p.Learning.Strengths)
		// Unset fields keep defaults
		assert.Equal(t, "CN", p.Identity.Locale)
		assert.Equal(t, ScaffoldingMedium, p.Learning.ScaffoldingLevel)
		assert.Equal(t, ToneEncouraging, p.Motivation.Tone)
	})

	t.Run("rejects unknown enum value", func(t *testing.T) {
		raw := `{"learning": {"pace": "blazing"}}`

		_, err := ParseProfile([]byte(raw))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "schema validation")
	})

	t.Run("rejects wrong type", func(t *testing.T) {
		raw := `{"communication": {"emoji": "yes"}}`

		_, err := ParseProfile([]byte(raw))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "schema validation")
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		_, err := ParseProfile([]byte("{not json"))
		assert.Error(t, err)
	})

	t.Run("rejects out-of-range session length", func(t *testing.T) {
		raw := `{"routines": {"session_length_max": 600}}`

		_, err := ParseProfile([]byte(raw))
		assert.Error(t, err)
	})
}

func TestProfileValidate(t *testing.T) {
	t.Run("session length bounds", func(t *testing.T) {
		p := DefaultProfile()
		p.Routines.SessionLengthMax = 3

		err := p.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "session_length_max")
	})

	t.Run("break interval bounds", func(t *testing.T) {
		p := DefaultProfile()
		p.Routines.BreakIntervalMin = 60

		err := p.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "break_interval_min")
	})

	t.Run("mastery threshold bounds", func(t *testing.T) {
		p := DefaultProfile()
		p.Assessment.MasteryThreshold = 0.3

		err := p.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "mastery_threshold")
	})
}

func TestProfileJSONRoundTrip(t *testing.T) {
	p := DefaultProfile()
	p.Identity.Nickname = "Lea"
	p.Motivation.Interests = []string{"chess"}

	data, err := p.JSON()
	require.NoError(t, err)

	parsed, err := ParseProfile(data)
	require.NoError(t, err)
	assert.Equal(t, "Lea", parsed.Identity.Nickname)
	assert.Equal(t, []string{"chess"}, parsed.Motivation.Interests)
}
