package store

import (
	"context"
	"fmt"
	"time"

	"github.com/ezralim/compere/internal/observability"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// RepairLastMessagePointers re-points every session's last_msg_id at its
// actual newest message, clearing pointers of sessions with no messages.
// Returns the number of sessions repaired.
func (s *Store) RepairLastMessagePointers(ctx context.Context) (int, error) {
	start := time.Now()
	success := false
	defer func() { observability.RecordStoreOp("repair_pointers", time.Since(start), success) }()

	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET last_msg_id = (
			SELECT id FROM messages
			WHERE messages.session_id = sessions.id
			ORDER BY created_at DESC, rowid DESC LIMIT 1
		)
		WHERE IFNULL(last_msg_id, '') <> IFNULL((
			SELECT id FROM messages
			WHERE messages.session_id = sessions.id
			ORDER BY created_at DESC, rowid DESC LIMIT 1
		), '')`)
	if err != nil {
		return 0, fmt.Errorf("failed to repair session pointers: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read rows affected: %w", err)
	}

	success = true
	return int(affected), nil
}

// Maintenance runs periodic store upkeep on a cron schedule
type Maintenance struct {
	store    *Store
	schedule string
	logger   zerolog.Logger
	cron     *cron.Cron
}

// NewMaintenance creates a maintenance runner. The schedule uses cron syntax,
// including descriptors like "@every 1h".
func NewMaintenance(store *Store, schedule string, logger zerolog.Logger) *Maintenance {
	return &Maintenance{
		store:    store,
		schedule: schedule,
		logger:   logger.With().Str("component", "store-maintenance").Logger(),
	}
}

// Start schedules the maintenance job
func (m *Maintenance) Start() error {
	c := cron.New()
	if _, err := c.AddFunc(m.schedule, m.run); err != nil {
		return fmt.Errorf("invalid maintenance schedule %q: %w", m.schedule, err)
	}
	m.cron = c
	c.Start()

	m.logger.Info().Str("schedule", m.schedule).Msg("Store maintenance started")
	return nil
}

// Stop halts the schedule and waits for a running job to finish
func (m *Maintenance) Stop() {
	if m.cron == nil {
		return
	}
	ctx := m.cron.Stop()
	<-ctx.Done()
	m.logger.Info().Msg("Store maintenance stopped")
}

func (m *Maintenance) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repaired, err := m.store.RepairLastMessagePointers(ctx)
	if err != nil {
		m.logger.Error().Err(err).Msg("Pointer repair failed")
		return
	}
	if repaired > 0 {
		m.logger.Info().Int("sessions", repaired).Msg("Repaired stale session pointers")
	} else {
		m.logger.Debug().Msg("No stale session pointers")
	}
}
