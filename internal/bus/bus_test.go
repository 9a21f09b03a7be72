package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ableka/lumina/internal/domain"
)

func TestChannelBus(t *testing.T) {
	ctx := context.Background()

	t.Run("publish reaches subscriber", func(t *testing.T) {
		b := NewChannelBus(10)
		defer b.Close()

		received := make(chan *domain.Message, 1)
		_, err := b.Subscribe(ctx, domain.TopicCheckCompleted, func(ctx context.Context, msg *domain.Message) error {
			received <- msg
			return nil
		})
		if err != nil {
			t.Fatalf("Subscribe: %v", err)
		}

		if err := b.Publish(ctx, domain.TopicCheckCompleted, []byte(`{"id":"res-1"}`)); err != nil {
			t.Fatalf("Publish: %v", err)
		}

		select {
		case msg := <-received:
			if msg.Topic != domain.TopicCheckCompleted {
				t.Errorf("topic = %s", msg.Topic)
			}
			if string(msg.Payload) != `{"id":"res-1"}` {
				t.Errorf("payload = %s", msg.Payload)
			}
		case <-time.After(time.Second):
			t.Fatal("message not delivered")
		}
	})

	t.Run("topics are isolated", func(t *testing.T) {
		b := NewChannelBus(10)
		defer b.Close()

		received := make(chan *domain.Message, 1)
		b.Subscribe(ctx, domain.TopicCheckRejected, func(ctx context.Context, msg *domain.Message) error {
			received <- msg
			return nil
		})

		b.Publish(ctx, domain.TopicCheckCompleted, []byte("other"))

		select {
		case msg := <-received:
			t.Fatalf("received message for wrong topic: %+v", msg)
		case <-time.After(50 * time.Millisecond):
		}
	})

	t.Run("multiple subscribers all receive", func(t *testing.T) {
		b := NewChannelBus(10)
		defer b.Close()

		var wg sync.WaitGroup
		wg.Add(2)
		for i := 0; i < 2; i++ {
			b.Subscribe(ctx, domain.TopicCheckEscalated, func(ctx context.Context, msg *domain.Message) error {
				wg.Done()
				return nil
			})
		}

		b.Publish(ctx, domain.TopicCheckEscalated, []byte("x"))

		done := make(chan struct{})
		go func() { wg.Wait(); close(done) }()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("not all subscribers received the message")
		}
	})

	t.Run("unsubscribe stops delivery", func(t *testing.T) {
		b := NewChannelBus(10)
		defer b.Close()

		received := make(chan *domain.Message, 1)
		sub, _ := b.Subscribe(ctx, domain.TopicCheckCompleted, func(ctx context.Context, msg *domain.Message) error {
			received <- msg
			return nil
		})
		sub.Unsubscribe()
		time.Sleep(10 * time.Millisecond)

		b.Publish(ctx, domain.TopicCheckCompleted, []byte("x"))

		select {
		case <-received:
			t.Fatal("unsubscribed handler still invoked")
		case <-time.After(50 * time.Millisecond):
		}
	})

	t.Run("closed bus rejects operations", func(t *testing.T) {
		b := NewChannelBus(10)
		b.Close()

		if err := b.Publish(ctx, "t", nil); err == nil {
			t.Error("publish on closed bus must fail")
		}
		if _, err := b.Subscribe(ctx, "t", nil); err == nil {
			t.Error("subscribe on closed bus must fail")
		}
		if err := b.Ping(ctx); err == nil {
			t.Error("ping on closed bus must fail")
		}
	})
}
