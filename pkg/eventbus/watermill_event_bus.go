package eventbus

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/arjanchaudharyy/flowdeck/pkg/events"
)

type WatermillEventBus struct {
	publisher     message.Publisher
	subscriber    message.Subscriber
	subscriptions map[events.EventType]EventHandler
}

func NewWatermillEventBus(pub message.Publisher, sub message.Subscriber) EventBus {
	return &WatermillEventBus{
		publisher:     pub,
		subscriber:    sub,
		subscriptions: make(map[events.EventType]EventHandler),
	}
}

func (eb *WatermillEventBus) GenerateID() string {
	return watermill.NewULID()
}

func (eb *WatermillEventBus) Publish(ctx context.Context, key string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := message.NewMessage("msg-"+eb.GenerateID(), payload)
	msg.Metadata.Set(events.EventMetadataKey, key)
	msg.Metadata.Set(events.EventTypeMetadataKey, string(event.GetType()))

	return eb.publisher.Publish(topicFor(event.GetType()), msg)
}

func (eb *WatermillEventBus) Subscribe(ctx context.Context) error {
	for _, topic := range []string{events.RunTopic, events.NodeTopic, events.ApprovalTopic} {
		messages, err := eb.subscriber.Subscribe(ctx, topic)
		if err != nil {
			return err
		}

		go eb.consume(ctx, messages)
	}

	return nil
}

func (eb *WatermillEventBus) consume(ctx context.Context, messages <-chan *message.Message) {
	for msg := range messages {
		eventType := events.EventType(msg.Metadata.Get(events.EventTypeMetadataKey))

		handler, exists := eb.subscriptions[eventType]
		if !exists {
			msg.Ack()

			continue
		}

		event := newEvent(eventType)
		if event == nil {
			msg.Nack()

			continue
		}

		err := json.Unmarshal(msg.Payload, event)
		if err != nil {
			msg.Nack()

			continue
		}

		err = handler(ctx, event)
		if err != nil {
			msg.Nack()

			continue
		}

		msg.Ack()
	}
}

func (eb *WatermillEventBus) Handle(eventType events.EventType, handler EventHandler) error {
	eb.subscriptions[eventType] = handler

	return nil
}

func (eb *WatermillEventBus) Close() error {
	err := eb.publisher.Close()
	if err != nil {
		return err
	}

	return eb.subscriber.Close()
}

func topicFor(eventType events.EventType) string {
	switch eventType {
	case events.NodeStartedEvent, events.NodeCompletedEvent,
		events.NodeFailedEvent, events.NodeProgressEvent:
		return events.NodeTopic
	case events.ApprovalRequestedEvent, events.ApprovalResolvedEvent:
		return events.ApprovalTopic
	default:
		return events.RunTopic
	}
}

func newEvent(eventType events.EventType) any {
	switch eventType {
	case events.RunStartedEvent:
		return &events.RunStarted{}
	case events.RunCompletedEvent:
		return &events.RunCompleted{}
	case events.RunFailedEvent:
		return &events.RunFailed{}
	case events.RunCancelledEvent:
		return &events.RunCancelled{}
	case events.NodeStartedEvent:
		return &events.NodeStarted{}
	case events.NodeCompletedEvent:
		return &events.NodeCompleted{}
	case events.NodeFailedEvent:
		return &events.NodeFailed{}
	case events.NodeProgressEvent:
		return &events.NodeProgress{}
	case events.ApprovalRequestedEvent:
		return &events.ApprovalRequested{}
	case events.ApprovalResolvedEvent:
		return &events.ApprovalResolved{}
	default:
		return nil
	}
}
