package integration

import (
	"context"
	"mclbus/pkg/message"
	"mclbus/pkg/transport"
	"sync"
	"testing"
	"time"
)

// Polls cond until true or timeout
func eventually(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

// Publishes count sequenced messages spaced by gap
func publishSequence(t *testing.T, ctx context.Context, typeName, topic string, count int, gap time.Duration) {
	t.Helper()
	broadcaster, err := transport.NewMessageBroadcaster(ctx, typeName, topic)
	if err != nil {
		t.Fatalf("expected no error opening broadcaster, but got '%v'", err)
	}
	defer broadcaster.Close()

	for i := range count {
		msg, err := message.NewFromPairs(typeName, message.Field{Key: "seq", Value: i}, message.Field{Key: "label", Value: "step"})
		if err != nil {
			t.Fatalf("expected no error creating message, but got '%v'", err)
		}
		if err = broadcaster.Publish(msg); err != nil {
			t.Fatalf("expected no error publishing, but got '%v'", err)
		}
		time.Sleep(gap)
	}
}

// Thread-safe delivery log
type collector struct {
	mutex      sync.Mutex
	deliveries []transport.MessageDelivery
}

func (col *collector) add(delivery transport.MessageDelivery) {
	col.mutex.Lock()
	col.deliveries = append(col.deliveries, delivery)
	col.mutex.Unlock()
}

func (col *collector) len() int {
	col.mutex.Lock()
	defer col.mutex.Unlock()
	return len(col.deliveries)
}

func (col *collector) snapshot() (list []transport.MessageDelivery) {
	col.mutex.Lock()
	defer col.mutex.Unlock()
	list = append(list, col.deliveries...)
	return
}
