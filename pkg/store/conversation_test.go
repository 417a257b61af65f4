package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateSession(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	t.Run("creates on first call", func(t *testing.T) {
		sess, err := s.GetOrCreateSession(ctx, "session_1756000000000_abc123_QUFBQUFBQUE=", "user-1")
		require.NoError(t, err)

		assert.NotEmpty(t, sess.ID)
		assert.Equal(t, "session_1756000000000_abc123_QUFBQUFBQUE=", sess.SessionKey)
		assert.Equal(t, "user-1", sess.UserID)
		assert.Empty(t, sess.LastMsgID)
		assert.False(t, sess.CreatedAt.IsZero())
	})

	t.Run("returns existing on second call", func(t *testing.T) {
		first, err := s.GetOrCreateSession(ctx, "session_1756000000001_def456_QkJCQkJCQkI=", "user-2")
		require.NoError(t, err)

		second, err := s.GetOrCreateSession(ctx, "session_1756000000001_def456_QkJCQkJCQkI=", "user-2")
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("does not rebind user on existing session", func(t *testing.T) {
		first, err := s.GetOrCreateSession(ctx, "session_1756000000002_ghi789_Q0NDQ0NDQ0M=", "user-3")
		require.NoError(t, err)

		second, err := s.GetOrCreateSession(ctx, "session_1756000000002_ghi789_Q0NDQ0NDQ0M=", "someone-else")
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, "user-3", second.UserID)
	})

	t.Run("anonymous session", func(t *testing.T) {
		sess, err := s.GetOrCreateSession(ctx, "session_1756000000003_jkl012_RERERERERER=", "")
		require.NoError(t, err)
		assert.Empty(t, sess.UserID)
	})

	t.Run("empty key fails", func(t *testing.T) {
		_, err := s.GetOrCreateSession(ctx, "", "user-1")
		assert.Error(t, err)
	})
}

func TestSessionByKey(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.GetOrCreateSession(ctx, "session_1756000000010_mno345_RUVFRUVFRUU=", "user-1")
	require.NoError(t, err)

	t.Run("found", func(t *testing.T) {
		sess, err := s.SessionByKey(ctx, "session_1756000000010_mno345_RUVFRUVFRUU=")
		require.NoError(t, err)
		assert.Equal(t, "user-1", sess.UserID)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := s.SessionByKey(ctx, "session_9999999999999_zzz999_WlpaWlpaWlo=")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestAppendMessage(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	sess, err := s.GetOrCreateSession(ctx, "session_1756000000020_pqr678_RkZGRkZGRkY=", "user-1")
	require.NoError(t, err)

	t.Run("basic append advances pointer", func(t *testing.T) {
		msg, err := s.AppendMessage(ctx, Message{
			SessionID: sess.ID,
			Role:      "user",
			Content:   "what is photosynthesis?",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, msg.ID)
		assert.False(t, msg.CreatedAt.IsZero())

		got, err := s.SessionByID(ctx, sess.ID)
		require.NoError(t, err)
		assert.Equal(t, msg.ID, got.LastMsgID)
	})

	t.Run("stores usage and metadata", func(t *testing.T) {
		msg, err := s.AppendMessage(ctx, Message{
			SessionID:    sess.ID,
			Role:         "assistant",
			Content:      "Plants turn light into sugar. 🌱",
			InputTokens:  120,
			OutputTokens: 48,
			ResponseTime: 1.52,
			Metadata:     map[string]interface{}{"agent": "Compere", "model": "gpt-4o-mini"},
		})
		require.NoError(t, err)

		msgs, err := s.MessagesBySession(ctx, sess.ID)
		require.NoError(t, err)

		var found *Message
		for i := range msgs {
			if msgs[i].ID == msg.ID {
				found = &msgs[i]
			}
		}
		require.NotNil(t, found)
		assert.Equal(t, int64(120), found.InputTokens)
		assert.Equal(t, int64(48), found.OutputTokens)
		assert.InDelta(t, 1.52, found.ResponseTime, 0.001)
		assert.Equal(t, "Compere", found.Metadata["agent"])
		assert.Equal(t, "gpt-4o-mini", found.Metadata["model"])
	})

	t.Run("idempotency key deduplicates", func(t *testing.T) {
		first, err := s.AppendMessage(ctx, Message{
			SessionID:      sess.ID,
			Role:           "user",
			Content:        "retry me",
			IdempotencyKey: "turn-abc:user",
		})
		require.NoError(t, err)

		second, err := s.AppendMessage(ctx, Message{
			SessionID:      sess.ID,
			Role:           "user",
			Content:        "retry me",
			IdempotencyKey: "turn-abc:user",
		})
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)

		msgs, err := s.MessagesBySession(ctx, sess.ID)
		require.NoError(t, err)
		count := 0
		for _, m := range msgs {
			if m.IdempotencyKey == "turn-abc:user" {
				count++
			}
		}
		assert.Equal(t, 1, count)
	})

	t.Run("same idempotency key on another session still writes", func(t *testing.T) {
		other, err := s.GetOrCreateSession(ctx, "session_1756000000021_stu901_R0dHR0dHR0c=", "user-2")
		require.NoError(t, err)

		msg, err := s.AppendMessage(ctx, Message{
			SessionID:      other.ID,
			Role:           "user",
			Content:        "retry me",
			IdempotencyKey: "turn-abc:user",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, msg.ID)
	})

	t.Run("missing session id fails", func(t *testing.T) {
		_, err := s.AppendMessage(ctx, Message{Role: "user", Content: "hi"})
		assert.Error(t, err)
	})

	t.Run("missing role fails", func(t *testing.T) {
		_, err := s.AppendMessage(ctx, Message{SessionID: sess.ID, Content: "hi"})
		assert.Error(t, err)
	})
}

func TestLastMessages(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	sess, err := s.GetOrCreateSession(ctx, "session_1756000000030_vwx234_SEhISEhISEg=", "user-1")
	require.NoError(t, err)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 6; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		_, err := s.AppendMessage(ctx, Message{
			SessionID: sess.ID,
			Role:      role,
			Content:   fmt.Sprintf("message %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	t.Run("returns chronological order", func(t *testing.T) {
		msgs, err := s.LastMessages(ctx, sess.ID, 10)
		require.NoError(t, err)
		require.Len(t, msgs, 6)

		for i, m := range msgs {
			assert.Equal(t, fmt.Sprintf("message %d", i), m.Content)
		}
	})

	t.Run("limit keeps newest", func(t *testing.T) {
		msgs, err := s.LastMessages(ctx, sess.ID, 2)
		require.NoError(t, err)
		require.Len(t, msgs, 2)

		assert.Equal(t, "message 4", msgs[0].Content)
		assert.Equal(t, "message 5", msgs[1].Content)
	})

	t.Run("same-timestamp rows keep insertion order", func(t *testing.T) {
		ts := time.Now()
		_, err := s.AppendMessage(ctx, Message{SessionID: sess.ID, Role: "user", Content: "tied user", CreatedAt: ts})
		require.NoError(t, err)
		_, err = s.AppendMessage(ctx, Message{SessionID: sess.ID, Role: "assistant", Content: "tied assistant", CreatedAt: ts})
		require.NoError(t, err)

		msgs, err := s.LastMessages(ctx, sess.ID, 2)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, "tied user", msgs[0].Content)
		assert.Equal(t, "tied assistant", msgs[1].Content)
	})

	t.Run("empty session", func(t *testing.T) {
		other, err := s.GetOrCreateSession(ctx, "session_1756000000031_yza567_SUlJSUlJSUk=", "")
		require.NoError(t, err)

		msgs, err := s.LastMessages(ctx, other.ID, 10)
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})

	t.Run("default limit applies", func(t *testing.T) {
		msgs, err := s.LastMessages(ctx, sess.ID, 0)
		require.NoError(t, err)
		assert.NotEmpty(t, msgs)
	})
}
