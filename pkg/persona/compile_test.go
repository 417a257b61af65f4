package persona

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileCompile(t *testing.T) {
	t.Run("default profile", func(t *testing.T) {
		out := DefaultProfile().Compile()

		assert.Contains(t, out, "Use a `encouraging` tone and address the user as `Sweetie`.")
		assert.Contains(t, out, "The user's primary language is `zh-CN`, locale `CN`, timezone `Asia/Shanghai`.")
		assert.Contains(t, out, "Reading level: CEFR `A2`.")
		assert.Contains(t, out, "Learning pace: `normal`")
		assert.Contains(t, out, "Scaffolding level: `medium`")
		assert.Contains(t, out, "Error correction style: `socratic`")
		assert.Contains(t, out, "Praise frequency: `moderate`.")
		assert.Contains(t, out, "explain step by step")
		assert.Contains(t, out, "ask one or two clarifying questions")
		assert.Contains(t, out, "`k12-safe` content level")
		assert.Contains(t, out, "`Violent, Adult`")
		assert.Contains(t, out, "Do not use external links")
		assert.True(t, strings.HasSuffix(out, "\n"))
		assert.False(t, strings.HasSuffix(out, "\n\n"))
	})

	t.Run("optional lines omitted when unset", func(t *testing.T) {
		p := DefaultProfile()
		out := p.Compile()

		assert.NotContains(t, out, "Birth month")
		assert.NotContains(t, out, "Grade level")
		assert.NotContains(t, out, "Interests:")
		assert.NotContains(t, out, "strengths")
		assert.NotContains(t, out, "Short-term goal")
		assert.NotContains(t, out, "Additional notes")
	})

	t.Run("optional lines present when set", func(t *testing.T) {
		p := DefaultProfile()
		p.Identity.BirthMonth = "June"
		p.Identity.GradeLevel = "5th grade"
		p.Motivation.Interests = []string{"dinosaurs", "space"}
		p.Learning.Strengths = []string{"mental math"}
		p.Learning.Challenges = []string{"long reading"}
		p.Learning.Goals = Goals{ShortTerm: "pass the unit test", LongTerm: "love science"}
		p.Learning.SubjectsFocus = []string{"math", "science"}
		p.Learning.PreferredModalities = []string{"visual", "interactive"}
		p.Meta.Notes = "gets discouraged quickly"

		out := p.Compile()

		assert.Contains(t, out, "Birth month: `June`.")
		assert.Contains(t, out, "Grade level: `5th grade`.")
		assert.Contains(t, out, "Interests: `dinosaurs, space`.")
		assert.Contains(t, out, "Self-assessed strengths: `mental math`.")
		assert.Contains(t, out, "Self-assessed challenges: `long reading`.")
		assert.Contains(t, out, "Short-term goal: `pass the unit test`.")
		assert.Contains(t, out, "Long-term goal: `love science`.")
		assert.Contains(t, out, "Subjects in focus: `math, science`.")
		assert.Contains(t, out, "Preferred ways of engaging: `visual, interactive`")
		assert.Contains(t, out, "Additional notes about the user: gets discouraged quickly")
	})

	t.Run("toggles flip their lines", func(t *testing.T) {
		p := DefaultProfile()
		p.Motivation.EmotionCheckin = false
		p.Motivation.GrowthMindset = false
		p.Communication.Emoji = false
		p.Communication.StepByStep = false
		p.Communication.AskBeforeAnswer = false
		p.Safety.ExternalLinksAllowed = true
		p.Safety.ProhibitedTopics = nil

		out := p.Compile()

		assert.NotContains(t, out, "light greeting")
		assert.NotContains(t, out, "positive attitude")
		assert.NotContains(t, out, "emoji")
		assert.Contains(t, out, "explain as a whole and state the answer clearly")
		assert.NotContains(t, out, "clarifying questions")
		assert.NotContains(t, out, "external links")
		assert.Contains(t, out, "never touch these topics: `none`.")
	})

	t.Run("line order is stable", func(t *testing.T) {
		out := DefaultProfile().Compile()
		lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")

		require.NotEmpty(t, lines)
		assert.Contains(t, lines[0], "patient AI tutor")
		assert.Contains(t, lines[len(lines)-1], "external links")
	})
}

func TestCompileProfile(t *testing.T) {
	t.Run("from JSON", func(t *testing.T) {
		raw := `{"identity": {"nickname": "Ming"}, "motivation": {"tone": "humorous"}}`

		out, err := CompileProfile([]byte(raw))
		require.NoError(t, err)
		assert.Contains(t, out, "Use a `humorous` tone and address the user as `Ming`.")
	})

	t.Run("invalid JSON surfaces error", func(t *testing.T) {
		_, err := CompileProfile([]byte(`{"learning": {"pace": 7}}`))
		assert.Error(t, err)
	})
}
