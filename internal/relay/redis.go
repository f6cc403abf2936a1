// Package relay publishes every session broadcast onto a per-document
// Redis channel so external observers (dashboards, integrations) can
// follow live edits. The feed is strictly one-way: nothing read from
// Redis ever mutates a document.
package relay

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "collabtext:doc:"

type message struct {
	docID   string
	payload []byte
}

// Redis fans session events out to Redis pub/sub. Publish never blocks
// the caller: events are queued and written by a background goroutine,
// and the queue drops when Redis cannot keep up.
type Redis struct {
	client *redis.Client
	queue  chan message
	done   chan struct{}
}

// NewRedis connects, verifies the server is reachable, and starts the
// publish loop.
func NewRedis(ctx context.Context, addr string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, err
	}
	r := &Redis{
		client: client,
		queue:  make(chan message, 1024),
		done:   make(chan struct{}),
	}
	go r.run()
	return r, nil
}

// Publish enqueues one event for the document's channel.
func (r *Redis) Publish(docID string, event interface{}) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("relay: encoding event for %s: %v", docID, err)
		return
	}
	select {
	case r.queue <- message{docID: docID, payload: payload}:
	default:
		log.Printf("relay: queue full, dropping event for %s", docID)
	}
}

func (r *Redis) run() {
	defer close(r.done)
	ctx := context.Background()
	for msg := range r.queue {
		if err := r.client.Publish(ctx, channelPrefix+msg.docID, msg.payload).Err(); err != nil {
			log.Printf("relay: publishing to %s: %v", msg.docID, err)
		}
	}
}

// Close drains the queue and releases the client.
func (r *Redis) Close() error {
	close(r.queue)
	<-r.done
	return r.client.Close()
}
