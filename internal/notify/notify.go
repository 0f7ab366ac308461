package notify

import (
	"context"
	"time"

	"github.com/augustdua/6degrees-sub006/internal/models"

	"go.uber.org/zap"
)

// Sink receives lifecycle events, fire-and-forget: a failing sink must
// never block or fail the transition that produced the event. Callers
// invoke it after their own transaction has committed.
type Sink interface {
	ChainCompleted(ctx context.Context, chainId string, payouts []models.Payout)
	ChainExpired(ctx context.Context, chainId string, at time.Time)
	ParticipantFrozen(ctx context.Context, chainId, participantId string, freezeEndsAt time.Time)
}

// LogSink is the default Sink: it writes events to the structured log.
// Downstream delivery (push, email) hangs off the log pipeline.
type LogSink struct{}

var _ Sink = LogSink{}

func (LogSink) ChainCompleted(_ context.Context, chainId string, payouts []models.Payout) {
	zap.L().Info("Notification: chain completed",
		zap.String("chain_id", chainId),
		zap.Int("payouts", len(payouts)))
}

func (LogSink) ChainExpired(_ context.Context, chainId string, at time.Time) {
	zap.L().Info("Notification: chain expired",
		zap.String("chain_id", chainId),
		zap.Time("at", at))
}

func (LogSink) ParticipantFrozen(_ context.Context, chainId, participantId string, freezeEndsAt time.Time) {
	zap.L().Info("Notification: participant frozen",
		zap.String("chain_id", chainId),
		zap.String("participant_id", participantId),
		zap.Time("freeze_ends_at", freezeEndsAt))
}
