package badgerdb

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/timshannon/badgerhold/v4"

	"github.com/veridex-io/veridexd/internal/core/domain"
)

const eventStoreDir = "events"

type eventSubscriber struct {
	topic   string
	handler func(events []domain.Event)
}

type eventDTO struct {
	Key       string `badgerhold:"key"`
	Topic     string
	StreamID  string
	EventType domain.EventType
	Payload   []byte
	CreatedAt int64
}

type eventRepository struct {
	store *badgerhold.Store

	subscribers    map[string][]eventSubscriber // topic -> subscribers
	subscriberLock *sync.Mutex
}

func NewEventRepository(config ...interface{}) (domain.EventRepository, error) {
	if len(config) != 2 {
		return nil, fmt.Errorf("invalid config")
	}
	baseDir, ok := config[0].(string)
	if !ok {
		return nil, fmt.Errorf("invalid base directory")
	}
	var logger badger.Logger
	if config[1] != nil {
		logger, ok = config[1].(badger.Logger)
		if !ok {
			return nil, fmt.Errorf("invalid logger")
		}
	}

	var dir string
	if len(baseDir) > 0 {
		dir = filepath.Join(baseDir, eventStoreDir)
	}
	store, err := createDB(dir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open event store: %s", err)
	}

	return &eventRepository{
		store:          store,
		subscribers:    make(map[string][]eventSubscriber),
		subscriberLock: &sync.Mutex{},
	}, nil
}

func (e *eventRepository) Save(
	ctx context.Context, topic string, id string, events []domain.Event,
) error {
	now := time.Now().UnixNano()
	for _, event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to serialize event: %w", err)
		}
		dto := eventDTO{
			Key:       uuid.New().String(),
			Topic:     topic,
			StreamID:  id,
			EventType: event.GetType(),
			Payload:   payload,
			CreatedAt: now,
		}
		if err := e.store.Insert(dto.Key, dto); err != nil {
			return fmt.Errorf("failed to store event: %w", err)
		}
	}

	if err := e.dispatch(topic, id); err != nil {
		log.WithError(err).Error("failed to dispatch saved events")
	}
	return nil
}

func (e *eventRepository) RegisterEventsHandler(
	topic string, handler func(events []domain.Event),
) {
	e.subscriberLock.Lock()
	defer e.subscriberLock.Unlock()

	if _, ok := e.subscribers[topic]; !ok {
		e.subscribers[topic] = make([]eventSubscriber, 0)
	}

	e.subscribers[topic] = append(e.subscribers[topic], eventSubscriber{
		topic:   topic,
		handler: handler,
	})
}

func (e *eventRepository) ClearRegisteredHandlers(topics ...string) {
	e.subscriberLock.Lock()
	defer e.subscriberLock.Unlock()

	if len(topics) == 0 {
		e.subscribers = make(map[string][]eventSubscriber)
		return
	}

	for _, topic := range topics {
		delete(e.subscribers, topic)
	}
}

func (e *eventRepository) Close() {
	// nolint:all
	e.store.Close()
}

func (e *eventRepository) dispatch(topic, id string) error {
	var dtos []eventDTO
	query := badgerhold.Where("Topic").Eq(topic).And("StreamID").Eq(id)
	if err := e.store.Find(&dtos, query.SortBy("CreatedAt")); err != nil {
		return err
	}
	if len(dtos) == 0 {
		return nil
	}

	events := make([]domain.Event, 0, len(dtos))
	for _, dto := range dtos {
		event, err := deserializeEvent(dto.EventType, dto.Payload)
		if err != nil {
			log.WithError(err).Warnf("failed to deserialize event: %s", string(dto.Payload))
			continue
		}
		events = append(events, event)
	}

	e.subscriberLock.Lock()
	defer e.subscriberLock.Unlock()
	for _, subscriber := range e.subscribers[topic] {
		go subscriber.handler(events)
	}
	return nil
}

func deserializeEvent(eventType domain.EventType, buf []byte) (domain.Event, error) {
	switch eventType {
	case domain.EventTypeUtxoCreated:
		var event = domain.UtxoCreated{}
		if err := json.Unmarshal(buf, &event); err == nil {
			return event, nil
		}
	case domain.EventTypeUtxoSpent:
		var event = domain.UtxoSpent{}
		if err := json.Unmarshal(buf, &event); err == nil {
			return event, nil
		}
	case domain.EventTypeComplianceUpdated:
		var event = domain.ComplianceUpdated{}
		if err := json.Unmarshal(buf, &event); err == nil {
			return event, nil
		}
	case domain.EventTypeQueryResolved:
		var event = domain.QueryResolved{}
		if err := json.Unmarshal(buf, &event); err == nil {
			return event, nil
		}
	case domain.EventTypeProofVerified:
		var event = domain.ProofVerified{}
		if err := json.Unmarshal(buf, &event); err == nil {
			return event, nil
		}
	case domain.EventTypeTransactionValidated:
		var event = domain.TransactionValidated{}
		if err := json.Unmarshal(buf, &event); err == nil {
			return event, nil
		}
	case domain.EventTypeOracleRegistered:
		var event = domain.OracleRegistered{}
		if err := json.Unmarshal(buf, &event); err == nil {
			return event, nil
		}
	case domain.EventTypeOracleRemoved:
		var event = domain.OracleRemoved{}
		if err := json.Unmarshal(buf, &event); err == nil {
			return event, nil
		}
	}

	return nil, fmt.Errorf("unknown event")
}
