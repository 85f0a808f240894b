package background

import (
	"context"

	"papa-puns/internal/acquire"
	"papa-puns/internal/models"
	"papa-puns/pkg/logger"
)

type Acquirer interface {
	Acquire(ctx context.Context, opts acquire.Options) (models.AcquisitionResult, error)
}

// Trigger is the unattended refresh: never forced, notifies on rollover.
type Trigger struct {
	acquirer Acquirer
}

func NewTrigger(a Acquirer) *Trigger {
	return &Trigger{acquirer: a}
}

func (t *Trigger) Run(ctx context.Context) models.Outcome {
	res, err := t.acquirer.Acquire(ctx, acquire.Options{
		ForceFetch:      false,
		NotifyOnNewJoke: true,
	})
	if err != nil {
		logger.Error("Background joke refresh failed", logger.Err(err))
		return models.OutcomeFailed
	}
	if res.FromCache {
		return models.OutcomeNoData
	}
	return models.OutcomeNewData
}
