// Package bus is the topic-exchange abstraction shared by the simulator,
// dispatcher, and external consumers. Publishers route JSON envelopes by
// routing key; each consumer owns a queue bound to the exchange by one or
// more binding patterns. Delivery is at-least-once and FIFO per producer
// stream; consumers are expected to be idempotent.
package bus

import (
	"context"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// defaultQueueDepth bounds a consumer queue. Publish blocks when a queue is
// full, which backpressures the producer rather than dropping events.
const defaultQueueDepth = 4096

// Exchange routes envelopes to every queue whose binding matches the
// envelope's routing key. A single mutex serializes publishes, which
// preserves per-producer FIFO order across all bound queues.
type Exchange struct {
	mu     sync.Mutex
	queues []*Queue
}

func NewExchange() *Exchange {
	return &Exchange{}
}

// Queue is a consumer's private buffered stream of matched envelopes.
type Queue struct {
	name     string
	patterns []string
	ch       chan Envelope
	// lossy queues shed their oldest envelope instead of backpressuring
	// the producer; viewers opt in, core consumers never do.
	lossy bool
}

// Bind registers a consumer queue with the given binding patterns.
// Patterns use the usual topic-exchange syntax: "*" matches exactly one
// dot-separated word, "#" matches zero or more words.
func (x *Exchange) Bind(name string, patterns ...string) *Queue {
	q := &Queue{
		name:     name,
		patterns: patterns,
		ch:       make(chan Envelope, defaultQueueDepth),
	}
	x.mu.Lock()
	x.queues = append(x.queues, q)
	x.mu.Unlock()
	return q
}

// BindLossy registers a viewer queue that drops its oldest envelope when
// full rather than blocking publishers. Core consumers use Bind.
func (x *Exchange) BindLossy(name string, patterns ...string) *Queue {
	q := x.Bind(name, patterns...)
	q.lossy = true
	return q
}

// Unbind removes a queue from the exchange; buffered envelopes remain
// readable but nothing further is delivered.
func (x *Exchange) Unbind(q *Queue) {
	x.mu.Lock()
	defer x.mu.Unlock()
	for i, bound := range x.queues {
		if bound == q {
			x.queues = append(x.queues[:i], x.queues[i+1:]...)
			return
		}
	}
}

// Publish fans the envelope out to all matching queues.
func (x *Exchange) Publish(env Envelope) {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, q := range x.queues {
		if q.matches(env.EventType) {
			q.deliver(env)
		}
	}
}

func (q *Queue) deliver(env Envelope) {
	if !q.lossy {
		q.ch <- env
		return
	}
	for {
		select {
		case q.ch <- env:
			return
		default:
			// Full: shed the oldest buffered envelope and retry.
			select {
			case <-q.ch:
			default:
			}
		}
	}
}

// C exposes the queue's delivery channel for select loops.
func (q *Queue) C() <-chan Envelope {
	return q.ch
}

// Name returns the consumer name the queue was bound with.
func (q *Queue) Name() string {
	return q.name
}

// Drain delivers all envelopes currently buffered without blocking.
func (q *Queue) Drain() []Envelope {
	var out []Envelope
	for {
		select {
		case env := <-q.ch:
			out = append(out, env)
		default:
			return out
		}
	}
}

// Next blocks until an envelope arrives or the context ends.
func (q *Queue) Next(ctx context.Context) (Envelope, bool) {
	select {
	case env := <-q.ch:
		return env, true
	case <-ctx.Done():
		return Envelope{}, false
	}
}

func (q *Queue) matches(key string) bool {
	for _, p := range q.patterns {
		if MatchTopic(p, key) {
			return true
		}
	}
	return false
}

// MatchTopic reports whether a routing key matches a binding pattern.
func MatchTopic(pattern, key string) bool {
	return matchWords(strings.Split(pattern, "."), strings.Split(key, "."))
}

func matchWords(pat, key []string) bool {
	if len(pat) == 0 {
		return len(key) == 0
	}
	switch pat[0] {
	case "#":
		// "#" may consume zero or more words.
		if matchWords(pat[1:], key) {
			return true
		}
		if len(key) > 0 {
			return matchWords(pat, key[1:])
		}
		return false
	case "*":
		return len(key) > 0 && matchWords(pat[1:], key[1:])
	default:
		return len(key) > 0 && pat[0] == key[0] && matchWords(pat[1:], key[1:])
	}
}

// DropMalformed logs a payload decode failure and acknowledges the envelope.
// Malformed events are never requeued.
func DropMalformed(q *Queue, env Envelope, err error) {
	logrus.WithFields(logrus.Fields{
		"queue":    q.name,
		"event":    env.EventType,
		"event_id": env.EventID,
		"run_id":   env.RunID,
	}).Warnf("dropping malformed event: %v", err)
}
