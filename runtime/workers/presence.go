package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/lo"

	"chatroom/domain"
	"chatroom/repositories"
)

// PresenceWorker periodically evicts participants that stopped sending
// heartbeats and announces their departure in the message log. It shares
// the stores with the request handlers; atomicity lives in the store layer,
// not in this worker.
type PresenceWorker struct {
	participants repositories.IParticipantRepository
	messages     repositories.IMessageRepository
	clock        domain.Clock
	period       time.Duration
	timeout      time.Duration
	log          *slog.Logger
}

func NewPresenceWorker(
	participants repositories.IParticipantRepository,
	messages repositories.IMessageRepository,
	clock domain.Clock,
	period time.Duration,
	timeout time.Duration,
	log *slog.Logger,
) PresenceWorker {
	return PresenceWorker{
		participants: participants,
		messages:     messages,
		clock:        clock,
		period:       period,
		timeout:      timeout,
		log:          log,
	}
}

// Run ticks until the context is canceled. A failed sweep is logged and
// swallowed: the next tick retries the whole eviction, so no explicit
// backoff is needed.
func (w PresenceWorker) Run(ctx context.Context) error {
	w.log.Info("Starting presence sweep", "period", w.period, "timeout", w.timeout)
	ticker := time.NewTicker(w.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping presence sweep")
			return ctx.Err()
		case <-ticker.C:
			if err := w.Sweep(); err != nil {
				w.log.Error("Presence sweep failed", "err", err)
			}
		}
	}
}

// Sweep performs a single eviction pass. The departure messages are
// written before the directory entries are removed: a failed insert aborts
// the tick with the participants still in place, so a "left" announcement
// can be lost only if it was never needed. Duplicate announcements on a
// partially failed removal are tolerated.
func (w PresenceWorker) Sweep() error {
	now := w.clock.Now()
	expired, err := w.participants.ListExpired(now.Add(-w.timeout))
	if err != nil {
		return err
	}
	if len(expired) == 0 {
		return nil
	}

	departures := lo.Map(expired, func(p domain.Participant, _ int) domain.Message {
		return domain.NewLeaveStatus(p.Name, now)
	})
	if err := w.messages.AppendAll(departures); err != nil {
		return err
	}

	names := lo.Map(expired, func(p domain.Participant, _ int) string { return p.Name })
	if err := w.participants.RemoveAll(names); err != nil {
		return err
	}
	w.log.Info("Evicted stale participants", "names", names)
	return nil
}
