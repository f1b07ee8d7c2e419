package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quickcourt/quickcourt/internal/db"
)

const (
	ExpiryJobName    = "expire_pending_bookings"
	expiryJobTimeout = time.Minute
)

// RegisterExpiryJobs schedules ExpirePendingBookings on the shared scheduler.
func RegisterExpiryJobs(database *db.DB, cronExpr string) error {
	svc, err := instance()
	if err != nil {
		return err
	}
	return svc.RegisterExpiryJobs(database, cronExpr)
}

func (s *Service) RegisterExpiryJobs(database *db.DB, cronExpr string) error {
	if database == nil {
		return fmt.Errorf("expiry jobs require database")
	}
	_, err := s.Schedule(Job{
		Name:    ExpiryJobName,
		Cron:    cronExpr,
		Timeout: expiryJobTimeout,
		Run: func(ctx context.Context) error {
			_, err := ExpirePendingBookings(ctx, database.Queries, time.Now())
			return err
		},
	})
	return err
}

// ExpirePendingBookings marks pending bookings that started before now as expired.
func ExpirePendingBookings(ctx context.Context, queries *db.Queries, now time.Time) (int64, error) {
	logger := log.Ctx(ctx)

	expired, err := queries.ExpirePendingBookings(ctx, now)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to expire pending bookings")
		return 0, fmt.Errorf("expire pending bookings: %w", err)
	}
	if expired > 0 {
		logger.Info().Int64("expired", expired).Msg("Expired pending bookings")
	}
	return expired, nil
}
