package cache

import (
	"context"
	"errors"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
)

var json = jsoniter.ConfigFastest

// redisDurable Redisによる耐久層の実装
//
// エントリ本体に加えてキー索引セットを持ち、スイープはこの索引を
// 走査して期限切れエントリを削除します。Redis自体のTTLは取りこぼし
// 対策として期限より長めに設定されます。
type redisDurable struct {
	rdb    *redis.Client
	prefix string
}

const redisTTLSlack = time.Hour

// NewRedisDurable Redisによる耐久層を生成します
func NewRedisDurable(rdb *redis.Client, prefix string) Durable {
	return &redisDurable{rdb: rdb, prefix: prefix}
}

func (r *redisDurable) Get(ctx context.Context, key string) (*Envelope, error) {
	raw, err := r.rdb.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

func (r *redisDurable) Set(ctx context.Context, key string, env *Envelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, r.prefix+key, raw, time.Until(env.ExpiresAt)+redisTTLSlack)
	pipe.SAdd(ctx, r.indexKey(), key)
	_, err = pipe.Exec(ctx)
	return err
}

func (r *redisDurable) Delete(ctx context.Context, key string) error {
	pipe := r.rdb.TxPipeline()
	pipe.Del(ctx, r.prefix+key)
	pipe.SRem(ctx, r.indexKey(), key)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *redisDurable) Sweep(ctx context.Context) (int, error) {
	keys, err := r.rdb.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return 0, err
	}

	now := time.Now()
	swept := 0
	for _, key := range keys {
		env, err := r.Get(ctx, key)
		if err != nil {
			return swept, err
		}
		if env == nil {
			// Redis側TTLで先に消えたエントリ。索引だけ掃除する
			if err := r.rdb.SRem(ctx, r.indexKey(), key).Err(); err != nil {
				return swept, err
			}
			continue
		}
		if env.Expired(now) {
			if err := r.Delete(ctx, key); err != nil {
				return swept, err
			}
			swept++
		}
	}
	return swept, nil
}

func (r *redisDurable) indexKey() string {
	return r.prefix + "!index"
}
