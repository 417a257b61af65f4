package persona

import (
	"fmt"
	"strings"
)

// Compile renders the profile into a directive block for the system prompt.
// Lines for unset optional fields are omitted; the block always ends with a
// trailing newline.
func (p *Profile) Compile() string {
	var lines []string

	lines = append(lines, fmt.Sprintf(
		"You are a patient AI tutor for K-12 users. Use a `%s` tone and address the user as `%s`.",
		p.Motivation.Tone, p.Identity.Nickname))

	if p.Identity.BirthMonth != "" {
		lines = append(lines, fmt.Sprintf("Birth month: `%s`.", p.Identity.BirthMonth))
	}

	if p.Identity.GradeLevel != "" {
		lines = append(lines, fmt.Sprintf("Grade level: `%s`.", p.Identity.GradeLevel))
	}

	lines = append(lines, fmt.Sprintf(
		"The user's primary language is `%s`, locale `%s`, timezone `%s`.",
		p.Identity.PrimaryLanguage, p.Identity.Locale, p.Identity.Timezone))

	if p.Identity.CEFRLevel != "" {
		lines = append(lines, fmt.Sprintf("Reading level: CEFR `%s`.", p.Identity.CEFRLevel))
	}

	if len(p.Motivation.Interests) > 0 {
		lines = append(lines, fmt.Sprintf("Interests: `%s`.", strings.Join(p.Motivation.Interests, ", ")))
	}

	if len(p.Learning.Strengths) > 0 {
		lines = append(lines, fmt.Sprintf("Self-assessed strengths: `%s`.", strings.Join(p.Learning.Strengths, ", ")))
	}

	if len(p.Learning.Challenges) > 0 {
		lines = append(lines, fmt.Sprintf("Self-assessed challenges: `%s`.", strings.Join(p.Learning.Challenges, ", ")))
	}

	if p.Learning.Goals.ShortTerm != "" {
		lines = append(lines, fmt.Sprintf("Short-term goal: `%s`.", p.Learning.Goals.ShortTerm))
	}

	if p.Learning.Goals.LongTerm != "" {
		lines = append(lines, fmt.Sprintf("Long-term goal: `%s`.", p.Learning.Goals.LongTerm))
	}

	if len(p.Learning.SubjectsFocus) > 0 {
		lines = append(lines, fmt.Sprintf("Subjects in focus: `%s`.", strings.Join(p.Learning.SubjectsFocus, ", ")))
	}

	if len(p.Learning.PreferredModalities) > 0 {
		lines = append(lines, fmt.Sprintf(
			"Preferred ways of engaging: `%s` (visual: diagrams and video; auditory: spoken explanations; kinesthetic: hands-on practice; reading: written text; interactive: discussion and Q&A).",
			strings.Join(p.Learning.PreferredModalities, ", ")))
	}

	lines = append(lines, fmt.Sprintf(
		"Learning pace: `%s` (how quickly new material is introduced).", p.Learning.Pace))

	lines = append(lines, fmt.Sprintf(
		"Scaffolding level: `%s` (low: minimal hints; medium: moderate guidance; high: detailed step-by-step support).",
		p.Learning.ScaffoldingLevel))

	lines = append(lines, fmt.Sprintf(
		"When giving examples, match this preference: `%s` (real_life: everyday situations; abstract: conceptual; academic: textbook cases; interactive: worked through together).",
		p.Learning.ExamplesPreference))

	lines = append(lines, fmt.Sprintf(
		"Error correction style: `%s` (socratic: guide with questions; direct: point out mistakes plainly; gentle: correct with encouragement; step_by_step: walk through the reasoning).",
		p.Learning.ErrorCorrectionStyle))

	lines = append(lines, fmt.Sprintf("Praise frequency: `%s`.", p.Motivation.PraiseFrequency))

	if p.Motivation.EmotionCheckin {
		lines = append(lines, "Open the conversation with a light greeting to check how the user is feeling and invite them to share. If the user does not respond to it, do not ask again.")
	}

	if p.Motivation.GrowthMindset {
		lines = append(lines, "Encourage a positive attitude toward learning and emphasize progress made along the way.")
	}

	if p.Communication.Emoji {
		lines = append(lines, "Use emoji in replies so longer passages feel less heavy.")
	}

	if p.Communication.StepByStep {
		lines = append(lines, "Explanation style: explain step by step and avoid giving the final answer outright.")
	} else {
		lines = append(lines, "Explanation style: explain as a whole and state the answer clearly.")
	}

	if p.Communication.AskBeforeAnswer {
		lines = append(lines, "Before giving an answer, ask one or two clarifying questions to understand the user's thinking.")
	}

	topics := "none"
	if len(p.Safety.ProhibitedTopics) > 0 {
		topics = strings.Join(p.Safety.ProhibitedTopics, ", ")
	}
	lines = append(lines, fmt.Sprintf(
		"Strictly follow the `%s` content level and never touch these topics: `%s`.",
		p.Safety.ContentLevel, topics))

	if !p.Safety.ExternalLinksAllowed {
		lines = append(lines, "Do not use external links unless explicitly instructed.")
	}

	if p.Meta.Notes != "" {
		lines = append(lines, fmt.Sprintf("Additional notes about the user: %s", p.Meta.Notes))
	}

	return strings.Join(lines, "\n") + "\n"
}

// CompileProfile parses raw profile JSON and compiles it in one step.
func CompileProfile(data []byte) (string, error) {
	profile, err := ParseProfile(data)
	if err != nil {
		return "", err
	}
	return profile.Compile(), nil
}
