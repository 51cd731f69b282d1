package transport

import (
	"mclbus/pkg/message"
	"reflect"
	"slices"
	"sync"
	"time"
)

// Raw datagram handed to subscribers
type Delivery struct {
	Topic    string // empty when the publisher sent no topic
	Payload  []byte
	Received time.Time
}

// Decoded message handed to message subscribers
type MessageDelivery struct {
	Topic    string
	Message  *message.Message
	Received time.Time
}

// Receives deliveries on the listener's dispatch goroutine
type Handler[D any] interface {
	Deliver(D)
}

type (
	Subscriber        = Handler[Delivery]
	MessageSubscriber = Handler[MessageDelivery]
)

// Function subscriber with pointer identity
type Callback[D any] struct {
	fn func(D)
}

func NewCallback(fn func(Delivery)) *Callback[Delivery] {
	return &Callback[Delivery]{fn: fn}
}

func NewMessageCallback(fn func(MessageDelivery)) *Callback[MessageDelivery] {
	return &Callback[MessageDelivery]{fn: fn}
}

func (callback *Callback[D]) Deliver(delivery D) {
	callback.fn(delivery)
}

// Ordered subscriber list compared by identity
type subscriberSet[D any] struct {
	mutex sync.RWMutex
	list  []Handler[D]
}

// Identity comparison panics on non-comparable dynamic types
func isComparable(subscriber any) bool {
	if subscriber == nil {
		return false
	}
	return reflect.TypeOf(subscriber).Comparable()
}

func (set *subscriberSet[D]) add(subscriber Handler[D]) (added bool) {
	if !isComparable(subscriber) {
		return
	}

	set.mutex.Lock()
	defer set.mutex.Unlock()

	if slices.Contains(set.list, subscriber) {
		return
	}
	set.list = append(set.list, subscriber)
	added = true
	return
}

func (set *subscriberSet[D]) remove(subscriber Handler[D]) (removed bool) {
	if !isComparable(subscriber) {
		return
	}

	set.mutex.Lock()
	defer set.mutex.Unlock()

	position := slices.Index(set.list, subscriber)
	if position < 0 {
		return
	}
	set.list = slices.Delete(set.list, position, position+1)
	removed = true
	return
}

func (set *subscriberSet[D]) contains(subscriber Handler[D]) (found bool) {
	if !isComparable(subscriber) {
		return
	}

	set.mutex.RLock()
	found = slices.Contains(set.list, subscriber)
	set.mutex.RUnlock()
	return
}

func (set *subscriberSet[D]) len() (count int) {
	set.mutex.RLock()
	count = len(set.list)
	set.mutex.RUnlock()
	return
}

// Copy for dispatch outside the lock
func (set *subscriberSet[D]) snapshot() (list []Handler[D]) {
	set.mutex.RLock()
	list = slices.Clone(set.list)
	set.mutex.RUnlock()
	return
}
