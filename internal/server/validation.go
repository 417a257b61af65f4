package server

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Session keys are minted by clients as
// session_<unix-ms>_<lowercase-alnum>_<8 base64 chars>; the embedded
// timestamp bounds how long a key stays usable.
var sessionKeyPattern = regexp.MustCompile(`^session_(\d+)_[a-z0-9]+_[A-Za-z0-9+/]{8}$`)

// forbiddenWords are rejected anywhere in an instruction, case-insensitive.
var forbiddenWords = []string{"password", "token", "secret"}

// ValidateSessionKey checks the key's shape and that its embedded timestamp
// is no older than ttl. Future-dated keys pass; only staleness is rejected.
func ValidateSessionKey(key string, ttl time.Duration, now time.Time) error {
	m := sessionKeyPattern.FindStringSubmatch(key)
	if m == nil {
		return errors.New("invalid session key format")
	}

	ms, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return errors.New("invalid session key timestamp")
	}
	if ttl > 0 && now.Sub(time.UnixMilli(ms)) > ttl {
		return errors.New("session key expired")
	}
	return nil
}

// ValidateInstruction trims the instruction and enforces the length bound
// and the forbidden-content check. Returns the trimmed instruction.
func ValidateInstruction(instruction string, maxLen int) (string, error) {
	trimmed := strings.TrimSpace(instruction)
	if trimmed == "" {
		return "", errors.New("instruction cannot be empty")
	}
	if maxLen > 0 && utf8.RuneCountInString(trimmed) > maxLen {
		return "", fmt.Errorf("instruction exceeds %d characters", maxLen)
	}

	lower := strings.ToLower(trimmed)
	for _, word := range forbiddenWords {
		if strings.Contains(lower, word) {
			return "", errors.New("instruction contains forbidden content")
		}
	}
	return trimmed, nil
}

// validateChatRequest applies the transport checks to one request and
// returns the instruction to run. The session key is required here: the
// keyless ephemeral mode is a library affair, not an HTTP one.
func (s *Server) validateChatRequest(req *chatRequest) (string, error) {
	if err := ValidateSessionKey(req.SessionKey, s.cfg.HTTP.SessionKeyTTL, time.Now()); err != nil {
		return "", err
	}
	return ValidateInstruction(req.Instruction, s.cfg.HTTP.InstructionMaxLen)
}
