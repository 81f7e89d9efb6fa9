package broadcast

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pubnub "github.com/pubnub/go/v7"

	"shuttle-ticket/utils"
)

// Publisher pushes trip events to subscribers. Delivery is at-most-once.
type Publisher interface {
	Publish(ctx context.Context, topic, event string, payload any) error
}

// Message is the envelope every subscriber receives.
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type sendFunc func(ctx context.Context, channel string, msg Message) error

// PubNubPublisher publishes on PubNub behind a circuit breaker.
type PubNubPublisher struct {
	send    sendFunc
	breaker *utils.CircuitBreaker
}

type Config struct {
	PublishKey   string
	SubscribeKey string
	SecretKey    string
	UserID       string
}

func NewPubNubPublisher(cfg Config) *PubNubPublisher {
	pnCfg := pubnub.NewConfigWithUserId(pubnub.UserId(cfg.UserID))
	pnCfg.PublishKey = cfg.PublishKey
	pnCfg.SubscribeKey = cfg.SubscribeKey
	pnCfg.SecretKey = cfg.SecretKey

	pn := pubnub.NewPubNub(pnCfg)

	return newPubNubPublisher(func(ctx context.Context, channel string, msg Message) error {
		_, st, err := pn.PublishWithContext(ctx).
			Channel(channel).
			Message(msg).
			Execute()
		if err != nil {
			return fmt.Errorf("pubnub publish (status %d): %w", st.StatusCode, err)
		}
		return nil
	})
}

func newPubNubPublisher(send sendFunc) *PubNubPublisher {
	return &PubNubPublisher{
		send:    send,
		breaker: utils.NewCircuitBreaker("pubnub", utils.WithMaxRequests(20)),
	}
}

func (p *PubNubPublisher) Publish(ctx context.Context, topic, event string, payload any) error {
	channel := Channel(topic)
	_, err := p.breaker.Execute(ctx, func() (any, error) {
		return nil, p.send(ctx, channel, Message{Event: event, Data: payload})
	})
	return err
}

// Channel maps a topic such as "trip:42" to a PubNub channel name. PubNub
// reserves ':' and ',' in channel names.
func Channel(topic string) string {
	return strings.NewReplacer(":", "-", ",", "-").Replace(topic)
}

// NopPublisher drops every event. Used when no publish key is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, string, any) error { return nil }

// IsBreakerOpen reports whether err came from a tripped circuit breaker.
func IsBreakerOpen(err error) bool {
	return errors.Is(err, utils.ErrCircuitOpen) || errors.Is(err, utils.ErrTooManyRequests)
}
