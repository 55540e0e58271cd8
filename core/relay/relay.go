// Package relay extends addressed and broadcast WebSocket pushes across
// server processes through Redis pub/sub.
//
// Every process runs a Relay next to its server. A push is delivered locally
// first; whatever could not be delivered locally is published on a shared
// channel, and every other process delivers it to its own sessions. Each
// Relay ignores its own publications.
//
//	client, err := relay.Connect(ctx, cfg)
//	r := relay.New(client, srv, relay.WithChannel(cfg.Channel), relay.WithLogger(log))
//	g.Go(r.Run(ctx))
//
//	r.Send(ctx, sessionID, []byte("hello"), true)
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/wirehttp/core/logger"
)

// DefaultChannel is the pub/sub channel used when none is configured.
const DefaultChannel = "wirehttp:push"

// Pusher delivers messages to sessions in this process. *server.Server and
// *ws.Registry implement it.
type Pusher interface {
	Send(id string, msg []byte, isText bool) bool
	SendMany(ids []string, msg []byte, isText bool) int
	Broadcast(msg []byte, isText bool) int
}

// Message is the wire format published on the channel.
type Message struct {
	Origin    string   `json:"origin"`
	IDs       []string `json:"ids,omitempty"`
	Broadcast bool     `json:"broadcast,omitempty"`
	Payload   []byte   `json:"payload"`
	Text      bool     `json:"text,omitempty"`
}

// Relay publishes pushes for remote sessions and applies pushes published by
// other processes.
type Relay struct {
	client  redis.UniversalClient
	local   Pusher
	channel string
	origin  string
	logger  *slog.Logger
}

// Option configures a Relay.
type Option func(*Relay)

// WithChannel sets the pub/sub channel.
func WithChannel(channel string) Option {
	return func(r *Relay) {
		if channel != "" {
			r.channel = channel
		}
	}
}

// WithOrigin sets the id this process publishes under. Defaults to a random UUID.
func WithOrigin(origin string) Option {
	return func(r *Relay) {
		if origin != "" {
			r.origin = origin
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Relay) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Relay that publishes through client and delivers to local.
func New(client redis.UniversalClient, local Pusher, opts ...Option) *Relay {
	r := &Relay{
		client:  client,
		local:   local,
		channel: DefaultChannel,
		origin:  uuid.NewString(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(logger.Component("relay"))
	return r
}

// Origin returns the id this process publishes under.
func (r *Relay) Origin() string { return r.origin }

// Send delivers msg to the session with the given id. A local session gets
// it directly and true is returned; otherwise the message is published for
// other processes and false is returned.
func (r *Relay) Send(ctx context.Context, id string, msg []byte, isText bool) (bool, error) {
	if r.local.Send(id, msg, isText) {
		return true, nil
	}
	return false, r.publish(ctx, Message{IDs: []string{id}, Payload: msg, Text: isText})
}

// SendMany delivers msg to every listed session. Sessions found locally get
// it directly; the rest are published in one message. Returns the number of
// local deliveries.
func (r *Relay) SendMany(ctx context.Context, ids []string, msg []byte, isText bool) (int, error) {
	var (
		delivered int
		remote    []string
	)
	for _, id := range ids {
		if r.local.Send(id, msg, isText) {
			delivered++
			continue
		}
		remote = append(remote, id)
	}
	if len(remote) == 0 {
		return delivered, nil
	}
	return delivered, r.publish(ctx, Message{IDs: remote, Payload: msg, Text: isText})
}

// Broadcast delivers msg to every local session and publishes it for every
// other process. Returns the number of local deliveries.
func (r *Relay) Broadcast(ctx context.Context, msg []byte, isText bool) (int, error) {
	n := r.local.Broadcast(msg, isText)
	return n, r.publish(ctx, Message{Broadcast: true, Payload: msg, Text: isText})
}

func (r *Relay) publish(ctx context.Context, m Message) error {
	m.Origin = r.origin
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode relay message: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", r.channel, err)
	}
	return nil
}

// Run provides errgroup compatibility: the returned function subscribes to
// the channel and applies remote pushes until ctx is canceled.
func (r *Relay) Run(ctx context.Context) func() error {
	return func() error {
		sub := r.client.Subscribe(ctx, r.channel)
		defer sub.Close()

		if _, err := sub.Receive(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("subscribe to %s: %w", r.channel, err)
		}
		r.logger.InfoContext(ctx, "relay subscribed", slog.String("channel", r.channel))

		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return nil
			case msg, ok := <-ch:
				if !ok {
					return nil
				}
				if _, err := r.handle([]byte(msg.Payload)); err != nil {
					r.logger.WarnContext(ctx, "dropping relay message", logger.Error(err))
				}
			}
		}
	}
}

// handle applies one published message and returns the number of local
// deliveries. Messages from this process are skipped.
func (r *Relay) handle(data []byte) (int, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return 0, errors.Join(ErrInvalidMessage, err)
	}
	if m.Origin == r.origin {
		return 0, nil
	}
	switch {
	case m.Broadcast:
		return r.local.Broadcast(m.Payload, m.Text), nil
	case len(m.IDs) > 0:
		return r.local.SendMany(m.IDs, m.Payload, m.Text), nil
	}
	return 0, fmt.Errorf("%w: no recipients", ErrInvalidMessage)
}
