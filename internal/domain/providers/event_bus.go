package providers

import (
	"context"

	"github.com/zatekoja/clinicalcore/internal/domain/entities"
)

// EventBus fans patient change events out to the index maintainer.
// Delivery is best effort: a subscriber that is not listening misses the
// event and picks the change up on the next periodic refresh.
type EventBus interface {
	Publish(ctx context.Context, channel string, event *entities.PatientEvent) error

	// Subscribe returns a channel that is closed when ctx ends or the
	// subscription is dropped.
	Subscribe(ctx context.Context, channel string) (<-chan *entities.PatientEvent, error)

	Unsubscribe(ctx context.Context, channel string) error
	Close() error
}

// EventChannelPatientUpdates carries every patient change
const EventChannelPatientUpdates = "patient:updates"
