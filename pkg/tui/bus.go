package tui

import (
	"context"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	gochannel "github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Bus is the in-process pub/sub between the runner and the bubbletea program. Domain
// events, UI messages and UI actions each travel on their own topic.
type Bus struct {
	Publisher message.Publisher

	sub    message.Subscriber
	router *message.Router
	once   sync.Once
}

func NewInMemoryBus() (*Bus, error) {
	logger := busLogger{l: log.Logger.With().Str("component", "bus").Logger()}
	pubsub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 1024}, logger)

	router, err := message.NewRouter(message.RouterConfig{}, logger)
	if err != nil {
		return nil, errors.Wrap(err, "new watermill router")
	}
	return &Bus{Publisher: pubsub, sub: pubsub, router: router}, nil
}

func (b *Bus) Handle(name, topic string, handler func(*message.Message) error) {
	b.router.AddConsumerHandler(name, topic, b.sub, handler)
}

// Running is closed once every handler subscribed. Publishing earlier loses messages.
func (b *Bus) Running() chan struct{} {
	return b.router.Running()
}

// Run serves handlers until ctx ends. Calls after the first return nil at once.
func (b *Bus) Run(ctx context.Context) error {
	var err error
	b.once.Do(func() {
		stop := context.AfterFunc(ctx, func() { _ = b.router.Close() })
		defer stop()
		err = b.router.Run(ctx)
	})
	return err
}

// busLogger routes watermill's internal logging to zerolog. Info goes to debug since
// the router is chatty about subscriptions.
type busLogger struct {
	l zerolog.Logger
}

func (b busLogger) fields(ev *zerolog.Event, f watermill.LogFields) *zerolog.Event {
	for k, v := range f {
		ev = ev.Interface(k, v)
	}
	return ev
}

func (b busLogger) Error(msg string, err error, f watermill.LogFields) {
	b.fields(b.l.Error().Err(err), f).Msg(msg)
}

func (b busLogger) Info(msg string, f watermill.LogFields) {
	b.fields(b.l.Debug(), f).Msg(msg)
}

func (b busLogger) Debug(msg string, f watermill.LogFields) {
	b.fields(b.l.Trace(), f).Msg(msg)
}

func (b busLogger) Trace(msg string, f watermill.LogFields) {
	b.fields(b.l.Trace(), f).Msg(msg)
}

func (b busLogger) With(f watermill.LogFields) watermill.LoggerAdapter {
	ctx := b.l.With()
	for k, v := range f {
		ctx = ctx.Interface(k, v)
	}
	return busLogger{l: ctx.Logger()}
}
