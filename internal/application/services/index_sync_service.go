package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/zatekoja/clinicalcore/internal/domain/entities"
	"github.com/zatekoja/clinicalcore/internal/domain/providers"
)

const defaultSyncEventTimeout = 30 * time.Second

// IndexRefresher updates the embedding index for one patient
type IndexRefresher interface {
	Refresh(ctx context.Context, patientID string) (entities.IndexRefreshOutcome, error)
	Remove(ctx context.Context, patientID string) error
}

// IndexSyncService refreshes patient embeddings as patient-update events
// arrive on the event bus.
type IndexSyncService struct {
	refresher    IndexRefresher
	eventBus     providers.EventBus
	eventTimeout time.Duration
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
}

// NewIndexSyncService creates a new index sync service
func NewIndexSyncService(refresher IndexRefresher, eventBus providers.EventBus) *IndexSyncService {
	ctx, cancel := context.WithCancel(context.Background())
	return &IndexSyncService{
		refresher:    refresher,
		eventBus:     eventBus,
		eventTimeout: defaultSyncEventTimeout,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start begins listening for patient updates
func (s *IndexSyncService) Start() error {
	eventChan, err := s.eventBus.Subscribe(s.ctx, providers.EventChannelPatientUpdates)
	if err != nil {
		return fmt.Errorf("failed to subscribe to patient updates: %w", err)
	}

	s.wg.Add(1)
	go s.processEvents(eventChan)
	log.Info().Str("channel", providers.EventChannelPatientUpdates).Msg("Index sync service started")
	return nil
}

// Stop stops listening and waits for the in-flight event to finish
func (s *IndexSyncService) Stop() {
	s.cancel()
	s.wg.Wait()
	log.Info().Msg("Index sync service stopped")
}

func (s *IndexSyncService) processEvents(eventChan <-chan *entities.PatientEvent) {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if event == nil || event.PatientID == "" {
				continue
			}
			s.handleEvent(event)
		}
	}
}

func (s *IndexSyncService) handleEvent(event *entities.PatientEvent) {
	ctx, cancel := context.WithTimeout(s.ctx, s.eventTimeout)
	defer cancel()

	logger := log.With().
		Str("event_id", event.ID).
		Str("patient_id", event.PatientID).
		Str("event_type", string(event.EventType)).
		Logger()

	if event.EventType == entities.PatientEventTypeDeleted {
		if err := s.refresher.Remove(ctx, event.PatientID); err != nil {
			logger.Warn().Err(err).Msg("Failed to remove patient from embedding index")
			return
		}
		logger.Debug().Msg("Removed patient from embedding index")
		return
	}

	outcome, err := s.refresher.Refresh(ctx, event.PatientID)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to refresh patient embedding")
		return
	}
	logger.Debug().Str("outcome", string(outcome)).Msg("Processed patient update")
}
