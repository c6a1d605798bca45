package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/shared-event-wallet/internal/domain/event"
	"github.com/shared-event-wallet/internal/domain/shared"
)

// requireParticipant loads the event for a caller who belongs to it. Outsiders
// get the same NotFoundError as for a missing event.
func requireParticipant(ctx context.Context, repos Repositories, eventID, userID uuid.UUID) (*event.Event, *event.Participant, error) {
	evt, err := repos.Events.GetByID(ctx, eventID)
	if err != nil {
		return nil, nil, err
	}

	p, err := repos.Events.GetParticipant(ctx, eventID, userID)
	if err != nil {
		if errors.Is(err, shared.NotFoundError{}) {
			return nil, nil, shared.NotFoundError{Resource: "event", ID: eventID.String()}
		}
		return nil, nil, err
	}

	return evt, p, nil
}

// requireCreator loads the event for its creator
func requireCreator(ctx context.Context, repos Repositories, eventID, userID uuid.UUID, locked bool) (*event.Event, error) {
	var (
		evt *event.Event
		err error
	)
	if locked {
		evt, err = repos.Events.LockForUpdate(ctx, eventID)
	} else {
		evt, err = repos.Events.GetByID(ctx, eventID)
	}
	if err != nil {
		return nil, err
	}
	if !evt.IsCreator(userID) {
		return nil, shared.AuthorizationError{Err: shared.ErrCreatorOnly}
	}
	return evt, nil
}

// loadAggregate reads the event with its participant and category arenas
func loadAggregate(ctx context.Context, repos Repositories, eventID uuid.UUID) (*event.Aggregate, error) {
	evt, err := repos.Events.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}

	participants, err := repos.Events.ListParticipants(ctx, eventID)
	if err != nil {
		return nil, err
	}

	categories, err := repos.Categories.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	return event.NewAggregate(evt, participants, categories), nil
}
