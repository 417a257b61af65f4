package persona

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// Pace is the user's preferred learning pace
type Pace string

const (
	PaceSlow   Pace = "slow"
	PaceNormal Pace = "normal"
	PaceFast   Pace = "fast"
)

// ScaffoldingLevel is how much temporary support the assistant provides
type ScaffoldingLevel string

const (
	ScaffoldingLow    ScaffoldingLevel = "low"
	ScaffoldingMedium ScaffoldingLevel = "medium"
	ScaffoldingHigh   ScaffoldingLevel = "high"
)

// ExamplesPreference is the kind of examples the user prefers
type ExamplesPreference string

const (
	ExamplesRealLife    ExamplesPreference = "real_life"
	ExamplesAbstract    ExamplesPreference = "abstract"
	ExamplesAcademic    ExamplesPreference = "academic"
	ExamplesInteractive ExamplesPreference = "interactive"
)

// ErrorCorrectionStyle is how mistakes are addressed
type ErrorCorrectionStyle string

const (
	CorrectionSocratic   ErrorCorrectionStyle = "socratic"
	CorrectionDirect     ErrorCorrectionStyle = "direct"
	CorrectionGentle     ErrorCorrectionStyle = "gentle"
	CorrectionStepByStep ErrorCorrectionStyle = "step_by_step"
)

// Tone is the assistant's speaking tone
type Tone string

const (
	ToneEncouraging  Tone = "encouraging"
	ToneFriendly     Tone = "friendly"
	ToneProfessional Tone = "professional"
	ToneStrict       Tone = "strict"
	ToneHumorous     Tone = "humorous"
	ToneCalm         Tone = "calm"
	ToneCasual       Tone = "casual"
	ToneEnthusiastic Tone = "enthusiastic"
)

// PraiseFrequency is how often the assistant praises the user
type PraiseFrequency string

const (
	PraiseLow      PraiseFrequency = "low"
	PraiseModerate PraiseFrequency = "moderate"
	PraiseHigh     PraiseFrequency = "high"
)

// QuizStyle is the preferred quiz question format
type QuizStyle string

const (
	QuizMultipleChoice QuizStyle = "multiple_choice"
	QuizTrueFalse      QuizStyle = "true_false"
	QuizFillInBlank    QuizStyle = "fill_in_the_blank"
	QuizShortAnswer    QuizStyle = "short_answer"
	QuizEssay          QuizStyle = "essay"
)

// ContentLevel is the safety content rating the assistant must honor
type ContentLevel string

const (
	ContentK12Safe     ContentLevel = "k12-safe"
	ContentGeneralSafe ContentLevel = "general-safe"
)

// Identity describes who the user is
type Identity struct {
	Nickname        string `json:"nickname"`
	BirthMonth      string `json:"birth_month"`
	GradeLevel      string `json:"grade_level"`
	Locale          string `json:"locale"`
	Timezone        string `json:"timezone"`
	PrimaryLanguage string `json:"primary_language"`
	Bilingual       bool   `json:"bilingual"`
	CEFRLevel       string `json:"cefr_level"`
}

// Goals holds short- and long-term learning goals
type Goals struct {
	ShortTerm string `json:"short_term"`
	LongTerm  string `json:"long_term"`
}

// Learning describes how the user learns best
type Learning struct {
	Strengths            []string             `json:"strengths"`
	Challenges           []string             `json:"challenges"`
	Goals                Goals                `json:"goals"`
	SubjectsFocus        []string             `json:"subjects_focus"`
	PreferredModalities  []string             `json:"preferred_modalities"`
	Pace                 Pace                 `json:"pace"`
	ScaffoldingLevel     ScaffoldingLevel     `json:"scaffolding_level"`
	ExamplesPreference   ExamplesPreference   `json:"examples_preference"`
	ErrorCorrectionStyle ErrorCorrectionStyle `json:"error_correction_style"`
}

// Motivation describes what keeps the user engaged
type Motivation struct {
	Tone            Tone            `json:"tone"`
	PraiseFrequency PraiseFrequency `json:"praise_frequency"`
	Gamification    bool            `json:"gamification"`
	Interests       []string        `json:"interests"`
	EmotionCheckin  bool            `json:"emotion_checkin"`
	GrowthMindset   bool            `json:"growth_mindset"`
	RewardScheme    string          `json:"reward_scheme"`
}

// Routines describes study-time boundaries
type Routines struct {
	SessionLengthMax   int                 `json:"session_length_max"`
	BreakIntervalMin   int                 `json:"break_interval_min"`
	StudySchedule      map[string][]string `json:"study_schedule"`
	HomeworkPolicy     string              `json:"homework_policy"`
	OfflineSuggestions bool                `json:"offline_suggestions"`
}

// Communication describes how answers should be delivered
type Communication struct {
	Emoji           bool `json:"emoji"`
	StepByStep      bool `json:"step_by_step"`
	AskBeforeAnswer bool `json:"ask_before_answer"`
}

// Assessment describes quiz and mastery preferences
type Assessment struct {
	QuizStyle        QuizStyle `json:"quiz_style"`
	AdaptDifficulty  bool      `json:"adapt_difficulty"`
	MasteryThreshold float64   `json:"mastery_threshold"`
	SpacedRepetition bool      `json:"spaced_repetition"`
}

// Safety describes hard content boundaries
type Safety struct {
	ExternalLinksAllowed bool         `json:"external_links_allowed"`
	ContentLevel         ContentLevel `json:"content_level"`
	ProhibitedTopics     []string     `json:"prohibited_topics"`
}

// Meta holds profile bookkeeping
type Meta struct {
	Version string `json:"version"`
	Notes   string `json:"notes"`
}

// Profile is a structured description of a user that compiles into a
// system-prompt directive block.
type Profile struct {
	Identity      Identity      `json:"identity"`
	Learning      Learning      `json:"learning"`
	Motivation    Motivation    `json:"motivation"`
	Routines      Routines      `json:"routines"`
	Communication Communication `json:"communication"`
	Assessment    Assessment    `json:"assessment"`
	Safety        Safety        `json:"safety"`
	Meta          Meta          `json:"meta"`
}

// DefaultProfile returns a profile with default values
func DefaultProfile() *Profile {
	return &Profile{
		Identity: Identity{
			Nickname:        "Sweetie",
			Locale:          "CN",
			Timezone:        "Asia/Shanghai",
			PrimaryLanguage: "zh-CN",
			CEFRLevel:       "A2",
		},
		Learning: Learning{
			Pace:                 PaceNormal,
			ScaffoldingLevel:     ScaffoldingMedium,
			ExamplesPreference:   ExamplesRealLife,
			ErrorCorrectionStyle: CorrectionSocratic,
		},
		Motivation: Motivation{
			Tone:            ToneEncouraging,
			PraiseFrequency: PraiseModerate,
			EmotionCheckin:  true,
			GrowthMindset:   true,
		},
		Routines: Routines{
			SessionLengthMax: 60,
			BreakIntervalMin: 15,
			StudySchedule: map[string][]string{
				"Mon": {"19:00-20:00"},
				"Sat": {"10:00-11:00"},
			},
			HomeworkPolicy:     "Don't give direct answers, provide hints and key concepts",
			OfflineSuggestions: true,
		},
		Communication: Communication{
			Emoji:           true,
			StepByStep:      true,
			AskBeforeAnswer: true,
		},
		Assessment: Assessment{
			QuizStyle:        QuizMultipleChoice,
			AdaptDifficulty:  true,
			MasteryThreshold: 0.8,
			SpacedRepetition: true,
		},
		Safety: Safety{
			ContentLevel:     ContentK12Safe,
			ProhibitedTopics: []string{"Violent", "Adult"},
		},
		Meta: Meta{
			Version: "1.0",
		},
	}
}

var profileSchemaLoader = gojsonschema.NewStringLoader(ProfileSchema)

// ParseProfile parses raw profile JSON, validates it against the schema and
// fills unset sections with defaults. Empty input yields the default profile.
func ParseProfile(data []byte) (*Profile, error) {
	profile := DefaultProfile()
	if len(data) == 0 {
		return profile, nil
	}

	if err := validateSchema(data); err != nil {
		return nil, fmt.Errorf("profile schema validation failed: %w", err)
	}

	if err := json.Unmarshal(data, profile); err != nil {
		return nil, fmt.Errorf("failed to parse profile JSON: %w", err)
	}

	if err := profile.Validate(); err != nil {
		return nil, fmt.Errorf("profile validation failed: %w", err)
	}

	return profile, nil
}

// validateSchema validates profile JSON against the JSON schema
func validateSchema(data []byte) error {
	documentLoader := gojsonschema.NewBytesLoader(data)
	result, err := gojsonschema.Validate(profileSchemaLoader, documentLoader)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		var errMsg string
		for i, err := range result.Errors() {
			if i > 0 {
				errMsg += "; "
			}
			errMsg += err.String()
		}
		return fmt.Errorf("schema validation errors: %s", errMsg)
	}

	return nil
}

// Validate performs additional validation beyond the JSON schema
func (p *Profile) Validate() error {
	if p.Routines.SessionLengthMax < 5 || p.Routines.SessionLengthMax > 180 {
		return fmt.Errorf("session_length_max must be between 5 and 180 minutes, got %d", p.Routines.SessionLengthMax)
	}
	if p.Routines.BreakIntervalMin < 5 || p.Routines.BreakIntervalMin > 45 {
		return fmt.Errorf("break_interval_min must be between 5 and 45 minutes, got %d", p.Routines.BreakIntervalMin)
	}
	if p.Assessment.MasteryThreshold < 0.5 || p.Assessment.MasteryThreshold > 1.0 {
		return fmt.Errorf("mastery_threshold must be between 0.5 and 1.0, got %g", p.Assessment.MasteryThreshold)
	}
	return nil
}

// JSON serializes the profile back to JSON
func (p *Profile) JSON() ([]byte, error) {
	return json.Marshal(p)
}
