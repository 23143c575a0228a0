package usecase

import (
	"context"

	"github.com/m-mizutani/ctxlog"

	"github.com/m-mizutani/drover/pkg/domain/interfaces"
	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/drover/pkg/utils/metrics"
)

type webhookUseCase struct {
	trigger interfaces.TriggerUseCase
}

// NewWebhook creates a new instance of WebhookUseCase
func NewWebhook(trigger interfaces.TriggerUseCase) *webhookUseCase {
	return &webhookUseCase{trigger: trigger}
}

// ProcessEvent processes a webhook event. Supported events are handed
// to the trigger use case; everything else is logged and dropped.
func (uc *webhookUseCase) ProcessEvent(ctx context.Context, event *model.WebhookEvent) error {
	logger := ctxlog.From(ctx)

	logger.Info("Processing webhook event",
		"id", event.ID,
		"type", event.Type,
		"action", event.Action,
		"repository", event.Repository,
		"sender", event.Sender,
		"supported", event.IsSupportedEvent(),
	)
	metrics.WebhookEvents.WithLabelValues(string(event.Type), event.Action).Inc()

	if !event.IsSupportedEvent() {
		logger.Warn("Unsupported event received",
			"type", event.Type,
			"action", event.Action,
		)
		return nil
	}

	return uc.trigger.HandleEvent(ctx, event)
}
