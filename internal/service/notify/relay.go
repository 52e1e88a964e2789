package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultChannel - канал Redis для уведомлений гостей
const DefaultChannel = "hotelops:guest-notifications"

// Connect создает клиент Redis из URL или host:port
func Connect(_ context.Context, redisURL string) (*redis.Client, error) {
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

// envelope - сообщение между экземплярами сервиса
type envelope struct {
	GuestIDs  []string `json:"guest_ids,omitempty"`
	Broadcast bool     `json:"broadcast,omitempty"`
	Message   Message  `json:"message"`
}

// RedisRelay публикует уведомления в Redis; подписчик каждого экземпляра
// доставляет их в свой локальный Hub
type RedisRelay struct {
	client  *redis.Client
	channel string
	hub     *Hub
	log     zerolog.Logger
}

func NewRedisRelay(client *redis.Client, channel string, hub *Hub, log zerolog.Logger) *RedisRelay {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisRelay{client: client, channel: channel, hub: hub, log: log}
}

// SendToGuest возвращает число экземпляров, получивших сообщение
func (r *RedisRelay) SendToGuest(ctx context.Context, guestID string, msg Message) (int, error) {
	return r.publish(ctx, envelope{GuestIDs: []string{guestID}, Message: msg})
}

func (r *RedisRelay) SendToGuests(ctx context.Context, guestIDs []string, msg Message) (int, error) {
	return r.publish(ctx, envelope{GuestIDs: guestIDs, Message: msg})
}

func (r *RedisRelay) Broadcast(ctx context.Context, msg Message) (int, error) {
	return r.publish(ctx, envelope{Broadcast: true, Message: msg})
}

func (r *RedisRelay) publish(ctx context.Context, env envelope) (int, error) {
	raw, err := json.Marshal(env)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal relay envelope: %w", err)
	}
	n, err := r.client.Publish(ctx, r.channel, raw).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to publish notification: %w", err)
	}
	return int(n), nil
}

// Run слушает канал до отмены ctx
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			r.deliver(ctx, m.Payload)
		}
	}
}

func (r *RedisRelay) deliver(ctx context.Context, payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		r.log.Error().Err(err).Msg("invalid relay envelope")
		return
	}

	var err error
	if env.Broadcast {
		_, err = r.hub.Broadcast(ctx, env.Message)
	} else {
		_, err = r.hub.SendToGuests(ctx, env.GuestIDs, env.Message)
	}
	if err != nil {
		r.log.Error().Err(err).Msg("failed to deliver relayed notification")
	}
}
