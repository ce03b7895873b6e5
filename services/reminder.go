package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ceramicnetwork/go-pulse/models"
)

// ReminderState is owned by one responder's reminder loop and carried from tick to tick.
type ReminderState struct {
	Attempts     int
	NextInterval time.Duration
}

// BackoffInterval is the wait after the given attempt: base * attempts².
func BackoffInterval(base time.Duration, attempts int) time.Duration {
	return base * time.Duration(attempts*attempts)
}

type ReminderScheduler struct {
	polls         *PollStore
	messenger     models.Messenger
	notif         models.Notifier
	events        *EventService
	metricService models.MetricService
	logger        models.Logger
	config        models.ReminderConfig
	wg            sync.WaitGroup
}

func NewReminderScheduler(
	polls *PollStore,
	messenger models.Messenger,
	notif models.Notifier,
	events *EventService,
	metricService models.MetricService,
	logger models.Logger,
	config models.ReminderConfig,
) *ReminderScheduler {
	return &ReminderScheduler{
		polls:         polls,
		messenger:     messenger,
		notif:         notif,
		events:        events,
		metricService: metricService,
		logger:        logger,
		config:        config,
	}
}

// Start runs the responder's reminder loop in the background. The loop ends when the responder's open pointer no
// longer references the poll, when the attempt budget is spent, or when ctx is done.
func (r *ReminderScheduler) Start(ctx context.Context, key models.PollKey, responderId string) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.run(ctx, key, responderId)
	}()
}

// Wait blocks until every started loop has exited.
func (r *ReminderScheduler) Wait() {
	r.wg.Wait()
}

func (r *ReminderScheduler) run(ctx context.Context, key models.PollKey, responderId string) {
	state := ReminderState{NextInterval: r.config.BaseInterval}
	for {
		timer := time.NewTimer(state.NextInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			r.logger.Debugf("reminder: stopped for %s on %s", responderId, key)
			return
		case <-timer.C:
		}
		var active bool
		if state, active = r.safeTick(ctx, key, responderId, state); !active {
			return
		}
	}
}

// safeTick keeps the loop alive across a panicking tick.
func (r *ReminderScheduler) safeTick(ctx context.Context, key models.PollKey, responderId string, state ReminderState) (next ReminderState, active bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.metricService.Count(ctx, models.MetricName_ReminderTickFailed, 1)
			r.logger.Errorf("reminder: tick failed for %s on %s: %v", responderId, key, rec)
			next, active = state, true
		}
	}()
	return r.tick(ctx, key, responderId, state)
}

func (r *ReminderScheduler) tick(ctx context.Context, key models.PollKey, responderId string, state ReminderState) (ReminderState, bool) {
	open, err := r.polls.FindOpenFor(ctx, responderId)
	if err != nil {
		r.metricService.Count(ctx, models.MetricName_ReminderTickFailed, 1)
		r.logger.Errorf("reminder: error looking up open poll for %s: %v", responderId, err)
		return state, true
	}
	if open == nil || open.Key.String() != key.String() {
		r.logger.Debugf("reminder: %s is no longer open on %s", responderId, key)
		return state, false
	}
	if state.Attempts >= r.config.MaxAttempts {
		r.giveUp(ctx, key, responderId, state)
		return state, false
	}
	state.Attempts++
	state.NextInterval = BackoffInterval(r.config.BaseInterval, state.Attempts)
	if err = r.messenger.SendMessage(ctx, responderId, models.Msg_Reminder); err != nil {
		if errors.Is(err, models.ErrUnreachable) {
			r.logger.Debugf("reminder: %s is unreachable: %v", responderId, err)
		} else {
			r.logger.Errorf("reminder: error reminding %s on %s: %v", responderId, key, err)
		}
	} else {
		r.metricService.Count(ctx, models.MetricName_ReminderSent, 1)
		r.logger.Debugf("reminder: sent attempt %d to %s on %s, next in %s", state.Attempts, responderId, key, state.NextInterval)
	}
	return state, true
}

func (r *ReminderScheduler) giveUp(ctx context.Context, key models.PollKey, responderId string, state ReminderState) {
	r.logger.Infof("reminder: giving up on %s for %s after %d attempts", responderId, key, state.Attempts)
	r.metricService.Count(ctx, models.MetricName_ReminderGaveUp, 1)
	r.events.Publish(ctx, models.PollEventType_ReminderGaveUp, key, responderId, 0)
	if err := r.notif.SendWarning(
		models.AlertTitle,
		models.AlertDesc_ReminderGaveUp,
		fmt.Sprintf(models.AlertFmt_ReminderGaveUp, responderId, state.Attempts, key),
	); err != nil {
		r.logger.Errorf("reminder: error sending give up warning: %v", err)
	}
}
