package transport

import (
	"context"
	"fmt"
	"mclbus/internal/global"
	"mclbus/internal/logctx"
	"mclbus/pkg/message"
	"sync/atomic"
)

// Broadcaster bound to a registered message type's endpoint
type MessageBroadcaster struct {
	*Broadcaster
	msgType *message.Type
}

func NewMessageBroadcaster(ctx context.Context, typeName string, topic string) (broadcaster *MessageBroadcaster, err error) {
	msgType, err := message.Lookup(typeName)
	if err != nil {
		return
	}

	ctx = logctx.AppendCtxTag(ctx, typeName)
	base, err := NewBroadcaster(ctx, msgType.Endpoint(), topic)
	if err != nil {
		return
	}

	broadcaster = &MessageBroadcaster{
		Broadcaster: base,
		msgType:     msgType,
	}
	return
}

func (broadcaster *MessageBroadcaster) Type() *message.Type {
	return broadcaster.msgType
}

// Publishes with the default topic
func (broadcaster *MessageBroadcaster) Publish(msg *message.Message) (err error) {
	err = broadcaster.PublishTopic(msg, broadcaster.Topic())
	return
}

// Publishes a message of the bound type under topic
func (broadcaster *MessageBroadcaster) PublishTopic(msg *message.Message, topic string) (err error) {
	if !broadcaster.IsOpen() {
		err = ErrClosed
		return
	}
	if msg == nil || msg.TypeName() != broadcaster.msgType.Name() {
		broadcaster.Metrics.Rejected.Add(1)
		err = fmt.Errorf("%w: broadcaster carries '%s' messages", ErrInvalidPayload, broadcaster.msgType.Name())
		return
	}
	err = broadcaster.Broadcaster.PublishTopic(msg, topic)
	return
}

// Listener that decodes payloads as one registered message type
type MessageListener struct {
	*Listener
	msgType     *message.Type
	subscribers subscriberSet[MessageDelivery]
	counter     atomic.Uint64
}

func NewMessageListener(ctx context.Context, typeName string, topics ...string) (listener *MessageListener, err error) {
	msgType, err := message.Lookup(typeName)
	if err != nil {
		return
	}

	ctx = logctx.AppendCtxTag(ctx, typeName)
	base, err := NewListener(ctx, msgType.Endpoint(), topics...)
	if err != nil {
		return
	}

	listener = &MessageListener{
		Listener: base,
		msgType:  msgType,
	}
	base.Subscribe(listener)
	return
}

func (listener *MessageListener) Type() *message.Type {
	return listener.msgType
}

// Messages delivered to at least one message subscriber
func (listener *MessageListener) Counter() uint64 {
	return listener.counter.Load()
}

func (listener *MessageListener) Subscribe(subscriber MessageSubscriber) bool {
	return listener.subscribers.add(subscriber)
}

func (listener *MessageListener) Unsubscribe(subscriber MessageSubscriber) bool {
	return listener.subscribers.remove(subscriber)
}

func (listener *MessageListener) IsSubscribed(subscriber MessageSubscriber) bool {
	return listener.subscribers.contains(subscriber)
}

func (listener *MessageListener) NumSubscriptions() int {
	return listener.subscribers.len()
}

// Decodes a raw delivery and fans it out (runs on the dispatch goroutine)
func (listener *MessageListener) Deliver(delivery Delivery) {
	msg, err := message.NewFromEncoded(listener.msgType.Name(), delivery.Payload)
	if err != nil {
		listener.Metrics.DecodeErrors.Add(1)
		logctx.LogEvent(listener.ctx, global.VerbosityProgress, global.WarnLog,
			"Dropped undecodable '%s' payload (topic '%s'): %v\n", listener.msgType.Name(), delivery.Topic, err)
		return
	}

	decoded := MessageDelivery{
		Topic:    delivery.Topic,
		Message:  msg,
		Received: delivery.Received,
	}
	delivered := dispatch(listener.ctx, listener.subscribers.snapshot(), decoded, &listener.Metrics.SubscriberPanics)
	if delivered > 0 {
		listener.counter.Add(1)
	}
}
