package auditlog

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Riareddie/CHAKSHU-sub001/internal/domain/audit"
)

// retentionActor is recorded as the deleter on soft-deleted entries.
const retentionActor = "retention-job"

// RunRetention soft-deletes entries older than the configured retention
// window. Nothing is hard-deleted inside this core.
func (l *Logger) RunRetention(ctx context.Context) error {
	cutoff := time.Now().AddDate(0, 0, -l.cfg.RetentionDays)

	affected, err := l.repo.SoftDeleteOlderThan(ctx, cutoff, retentionActor)
	if err != nil {
		log.Error().Err(err).Time("cutoff", cutoff).Msg("Audit retention cleanup failed")
		return err
	}

	log.Info().
		Int64("entries", affected).
		Time("cutoff", cutoff).
		Int("retention_days", l.cfg.RetentionDays).
		Msg("Audit retention cleanup completed")

	if affected > 0 {
		l.LogSystemEvent(audit.SystemEvent{
			Event: "audit_retention_cleanup",
			Detail: map[string]interface{}{
				"soft_deleted": affected,
				"cutoff":       cutoff.Format(time.RFC3339),
			},
		})
	}
	return nil
}
