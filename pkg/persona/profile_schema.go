package persona

// ProfileSchema is the JSON Schema for persona profile validation
const ProfileSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "identity": {
      "type": "object",
      "properties": {
        "nickname": {
          "type": "string",
          "description": "How the assistant addresses the user"
        },
        "birth_month": {
          "type": "string",
          "description": "Birth month, free-form"
        },
        "grade_level": {
          "type": "string",
          "description": "School grade level"
        },
        "locale": {
          "type": "string",
          "description": "Region code"
        },
        "timezone": {
          "type": "string",
          "description": "IANA timezone name"
        },
        "primary_language": {
          "type": "string",
          "description": "BCP-47 language tag"
        },
        "bilingual": {
          "type": "boolean"
        },
        "cefr_level": {
          "type": "string",
          "description": "CEFR reading level (A1-C2)"
        }
      }
    },
    "learning": {
      "type": "object",
      "properties": {
        "strengths": {
          "type": "array",
          "items": { "type": "string" }
        },
        "challenges": {
          "type": "array",
          "items": { "type": "string" }
        },
        "goals": {
          "type": "object",
          "properties": {
            "short_term": { "type": "string" },
            "long_term": { "type": "string" }
          }
        },
        "subjects_focus": {
          "type": "array",
          "items": { "type": "string" }
        },
        "preferred_modalities": {
          "type": "array",
          "items": {
            "type": "string",
            "enum": ["visual", "auditory", "kinesthetic", "reading", "interactive"]
          }
        },
        "pace": {
          "type": "string",
          "enum": ["slow", "normal", "fast"]
        },
        "scaffolding_level": {
          "type": "string",
          "enum": ["low", "medium", "high"]
        },
        "examples_preference": {
          "type": "string",
          "enum": ["real_life", "abstract", "academic", "interactive"]
        },
        "error_correction_style": {
          "type": "string",
          "enum": ["socratic", "direct", "gentle", "step_by_step"]
        }
      }
    },
    "motivation": {
      "type": "object",
      "properties": {
        "tone": {
          "type": "string",
          "enum": ["encouraging", "friendly", "professional", "strict", "humorous", "calm", "casual", "enthusiastic"]
        },
        "praise_frequency": {
          "type": "string",
          "enum": ["low", "moderate", "high"]
        },
        "gamification": { "type": "boolean" },
        "interests": {
          "type": "array",
          "items": { "type": "string" }
        },
        "emotion_checkin": { "type": "boolean" },
        "growth_mindset": { "type": "boolean" },
        "reward_scheme": { "type": "string" }
      }
    },
    "routines": {
      "type": "object",
      "properties": {
        "session_length_max": {
          "type": "integer",
          "minimum": 5,
          "maximum": 180,
          "description": "Maximum session length in minutes"
        },
        "break_interval_min": {
          "type": "integer",
          "minimum": 5,
          "maximum": 45,
          "description": "Break interval in minutes"
        },
        "study_schedule": {
          "type": "object",
          "additionalProperties": {
            "type": "array",
            "items": { "type": "string" }
          }
        },
        "homework_policy": { "type": "string" },
        "offline_suggestions": { "type": "boolean" }
      }
    },
    "communication": {
      "type": "object",
      "properties": {
        "emoji": { "type": "boolean" },
        "step_by_step": { "type": "boolean" },
        "ask_before_answer": { "type": "boolean" }
      }
    },
    "assessment": {
      "type": "object",
      "properties": {
        "quiz_style": {
          "type": "string",
          "enum": ["multiple_choice", "true_false", "fill_in_the_blank", "short_answer", "essay"]
        },
        "adapt_difficulty": { "type": "boolean" },
        "mastery_threshold": {
          "type": "number",
          "minimum": 0.5,
          "maximum": 1.0
        },
        "spaced_repetition": { "type": "boolean" }
      }
    },
    "safety": {
      "type": "object",
      "properties": {
        "external_links_allowed": { "type": "boolean" },
        "content_level": {
          "type": "string",
          "enum": ["k12-safe", "general-safe"]
        },
        "prohibited_topics": {
          "type": "array",
          "items": { "type": "string" }
        }
      }
    },
    "meta": {
      "type": "object",
      "properties": {
        "version": { "type": "string" },
        "notes": { "type": "string" }
      }
    }
  }
}`
