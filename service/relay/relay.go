package relay

import (
	"context"
	stdjson "encoding/json"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/leandro-lugaresi/hub"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/quartzchat/quartz/event"
	"github.com/quartzchat/quartz/model"
	"github.com/quartzchat/quartz/utils/random"
)

const channelName = "quartz:events"

var json = jsoniter.ConfigFastest

// relayTopics 他インスタンスへ中継するhubトピック
var relayTopics = []string{
	event.MessageCreated,
	event.MessageUpdated,
	event.MessageDeleted,
	event.MessageForwarded,
	event.ReactionAdded,
	event.ReactionRemoved,
	event.UserOnline,
	event.UserOffline,
	event.RoomRead,
}

type envelope struct {
	Instance string                        `json:"instance"`
	Topic    string                        `json:"topic"`
	Fields   map[string]stdjson.RawMessage `json:"fields"`
}

// Relay インスタンス間イベントリレー
//
// ローカルhubのドメインイベントをRedisのPub/Subへ流し、他インスタンス
// 由来のイベントをremoteフラグ付きでローカルhubへ再発行します。
// 中継はベストエフォートで、失敗してもローカル配信は継続します。
type Relay struct {
	rdb      *redis.Client
	hub      *hub.Hub
	logger   *zap.Logger
	instance string
}

// NewRelay リレーを生成して起動します
func NewRelay(ctx context.Context, rdb *redis.Client, h *hub.Hub, logger *zap.Logger) *Relay {
	r := &Relay{
		rdb:      rdb,
		hub:      h,
		logger:   logger.Named("relay"),
		instance: random.AlphaNumeric(12),
	}
	go r.publishLoop(ctx)
	go r.subscribeLoop(ctx)
	return r
}

func (r *Relay) publishLoop(ctx context.Context) {
	sub := r.hub.Subscribe(200, relayTopics...)
	defer r.hub.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Receiver:
			if !ok {
				return
			}
			if remote, _ := msg.Fields["remote"].(bool); remote {
				continue
			}
			env, err := encodeEnvelope(r.instance, msg)
			if err != nil {
				r.logger.Warn("failed to encode relay envelope", zap.String("topic", msg.Topic()), zap.Error(err))
				continue
			}
			if err := r.rdb.Publish(ctx, channelName, env).Err(); err != nil {
				r.logger.Warn("failed to publish relay envelope", zap.String("topic", msg.Topic()), zap.Error(err))
			}
		}
	}
}

func (r *Relay) subscribeLoop(ctx context.Context) {
	sub := r.rdb.Subscribe(ctx, channelName)
	defer func() { _ = sub.Close() }()
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-sub.Channel():
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(m.Payload), &env); err != nil {
				r.logger.Warn("failed to decode relay envelope", zap.Error(err))
				continue
			}
			if env.Instance == r.instance {
				continue
			}
			fields, err := decodeFields(env)
			if err != nil {
				r.logger.Warn("failed to decode relay fields", zap.String("topic", env.Topic), zap.Error(err))
				continue
			}
			fields["remote"] = true
			r.hub.Publish(hub.Message{Name: env.Topic, Fields: fields})
		}
	}
}

func encodeEnvelope(instance string, msg hub.Message) ([]byte, error) {
	fields := make(map[string]stdjson.RawMessage, len(msg.Fields))
	for k, v := range msg.Fields {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal field %s: %w", k, err)
		}
		fields[k] = b
	}
	return json.Marshal(envelope{Instance: instance, Topic: msg.Topic(), Fields: fields})
}

func decodeFields(env envelope) (hub.Fields, error) {
	fields := hub.Fields{}
	for k, raw := range env.Fields {
		v, err := decodeField(env.Topic, k, raw)
		if err != nil {
			return nil, err
		}
		fields[k] = v
	}
	return fields, nil
}

// decodeField トピックごとに既知のフィールド型へ復元します
func decodeField(topic, key string, raw stdjson.RawMessage) (interface{}, error) {
	switch key {
	case "message":
		v := &model.Message{}
		return v, json.Unmarshal(raw, v)
	case "forward":
		v := &model.ForwardRecord{}
		return v, json.Unmarshal(raw, v)
	case "reaction":
		v := &model.Reaction{}
		return v, json.Unmarshal(raw, v)
	case "message_id", "room_id", "user_id":
		var v uuid.UUID
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	case "datetime":
		var v time.Time
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	case "session_key":
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unknown relay field %s in topic %s", key, topic)
	}
}
