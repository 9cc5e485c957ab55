package realtime

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Stream is a live subscription. Messages is closed once the stream is closed.
type Stream interface {
	Messages() <-chan string
	Close() error
}

type Subscriber interface {
	Subscribe(ctx context.Context, channels ...string) (Stream, error)
}

type RedisSubscriber struct {
	Client *redis.Client
}

func (s RedisSubscriber) Subscribe(ctx context.Context, channels ...string) (Stream, error) {
	ps := s.Client.Subscribe(ctx, channels...)
	// wait for the subscription confirmation so early publishes are not lost
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	rs := &redisStream{ps: ps, out: make(chan string, 16), done: make(chan struct{})}
	go rs.forward(ps.Channel())
	return rs, nil
}

type redisStream struct {
	ps   *redis.PubSub
	out  chan string
	done chan struct{}
	once sync.Once
}

func (r *redisStream) forward(src <-chan *redis.Message) {
	defer close(r.out)
	for m := range src {
		select {
		case r.out <- m.Payload:
		case <-r.done:
			return
		}
	}
}

func (r *redisStream) Messages() <-chan string { return r.out }

func (r *redisStream) Close() error {
	var err error
	r.once.Do(func() {
		close(r.done)
		err = r.ps.Close()
	})
	return err
}
