package jobs

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"authgrid/api/internal/repository"
	"authgrid/api/internal/revocation"
	"authgrid/api/internal/storage"
)

// idleSessionAge is how long a session may sit unused before the nightly
// sweep closes it.
const idleSessionAge = "30 days"

type Scheduler struct {
	cron     *cron.Cron
	db       *pgxpool.Pool
	sessions *repository.SessionRepository
	resets   *repository.ResetTokenRepository
	audits   *repository.AuditRepository
	revoker  *revocation.Index
	archive  *storage.ArchiveStore
	log      zerolog.Logger
}

// NewScheduler wires the periodic maintenance tasks. archive may be nil
// when audit export is disabled.
func NewScheduler(db *pgxpool.Pool, revoker *revocation.Index, archive *storage.ArchiveStore, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		db:       db,
		sessions: repository.NewSessionRepository(),
		resets:   repository.NewResetTokenRepository(),
		audits:   repository.NewAuditRepository(),
		revoker:  revoker,
		archive:  archive,
		log:      log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("0 */15 * * * *", s.purgeResetTokens); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("0 30 3 * * *", s.closeIdleSessions); err != nil {
		return err
	}
	if s.archive != nil {
		if _, err := s.cron.AddFunc("0 0 4 * * *", s.archiveAuditTrail); err != nil {
			return err
		}
	}

	s.cron.Start()
	return nil
}

// Stop halts scheduling and waits briefly for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		s.log.Warn().Msg("scheduler stop timed out with jobs running")
	}
}

func (s *Scheduler) purgeResetTokens() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := s.resets.DeleteExpired(ctx, s.db)
	if err != nil {
		s.log.Error().Err(err).Msg("reset token purge failed")
		return
	}
	if n > 0 {
		s.log.Info().Int64("purged", n).Msg("expired reset tokens removed")
	}
}

// closeIdleSessions closes sessions idle past idleSessionAge and tombstones
// their access tokens so they die before their natural expiry.
func (s *Scheduler) closeIdleSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	closed, err := s.sessions.CloseIdle(ctx, s.db, idleSessionAge)
	if err != nil {
		s.log.Error().Err(err).Msg("idle session sweep failed")
		return
	}
	for _, sess := range closed {
		if err := s.sessions.RevokeLogs(ctx, s.db, sess.ID); err != nil {
			s.log.Error().Err(err).Str("session_id", sess.ID).Msg("revoke session logs failed")
		}
		if err := s.revoker.Revoke(ctx, sess.AccessTokenID, time.Now().Add(time.Hour)); err != nil {
			s.log.Error().Err(err).Str("session_id", sess.ID).Msg("revoke idle session token failed")
		}
	}
	if len(closed) > 0 {
		s.log.Info().Int("closed", len(closed)).Msg("idle sessions swept")
	}
}

// archiveAuditTrail exports yesterday's audit entries to object storage.
func (s *Scheduler) archiveAuditTrail() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	day := time.Now().UTC().AddDate(0, 0, -1).Truncate(24 * time.Hour)
	entries, err := s.audits.List(ctx, s.db, repository.AuditFilter{
		From:  day,
		To:    day.Add(24 * time.Hour),
		Limit: 10000,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("audit archive query failed")
		return
	}
	if len(entries) == 0 {
		return
	}

	key, err := s.archive.PutEntries(ctx, day, entries)
	if err != nil {
		s.log.Error().Err(err).Msg("audit archive upload failed")
		return
	}
	s.log.Info().Str("object", key).Int("entries", len(entries)).Msg("audit trail archived")
}
