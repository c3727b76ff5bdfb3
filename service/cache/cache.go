package cache

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// Strategy TTLの流儀
type Strategy int

const (
	// Fixed 書き込み時点から固定のTTL。メッセージページやワークスペース設定向け
	Fixed Strategy = iota
	// Sliding 読み取りのたびに延長されるTTL。セッション向け
	Sliding
)

// Envelope 耐久層に格納されるエントリ
type Envelope struct {
	Value     []byte        `json:"value"`
	ExpiresAt time.Time     `json:"expiresAt"`
	Sliding   bool          `json:"sliding"`
	TTL       time.Duration `json:"ttl"`
}

// Expired 期限切れかどうか
func (e *Envelope) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Durable 耐久フォールバック層
//
// Getはエントリが無い場合(nil, nil)を返します。
// 耐久層は全バックエンドインスタンスで共有され、高速層と食い違った
// 場合はこちらが正です。
type Durable interface {
	Get(ctx context.Context, key string) (*Envelope, error)
	Set(ctx context.Context, key string, env *Envelope) error
	Delete(ctx context.Context, key string) error
	// Sweep 期限切れエントリを削除し、削除数を返します
	Sweep(ctx context.Context) (int, error)
}

// Cache 2層キャッシュ
//
// 容量制限付きのプロセス内LRU(高速層)と耐久フォールバック層からなります。
// 読み取りが期限切れの値を返すことはなく、どちらかの層で期限切れを
// 検出した場合は両層から追い出したうえでミスを返します。
type Cache struct {
	fast      *lru.Cache[string, *Envelope]
	durable   Durable
	logger    *zap.Logger
	opTimeout time.Duration
}

// NewCache 2層キャッシュを生成します
func NewCache(fastSize int, durable Durable, logger *zap.Logger) (*Cache, error) {
	fast, err := lru.New[string, *Envelope](fastSize)
	if err != nil {
		return nil, err
	}
	return &Cache{
		fast:      fast,
		durable:   durable,
		logger:    logger.Named("cache"),
		opTimeout: 3 * time.Second,
	}, nil
}

// Get 指定したキーの値を取得します
//
// 高速層、次いで耐久層を調べます。耐久層でヒットした場合は高速層に
// 書き戻してから返します。Slidingなエントリはヒットのたびに期限が
// 延長されます。
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	now := time.Now()

	if env, ok := c.fast.Get(key); ok {
		if env.Expired(now) {
			c.evictBoth(ctx, key)
			return nil, false
		}
		if env.Sliding {
			env = c.refresh(ctx, key, env, now)
		}
		return env.Value, true
	}

	cctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	env, err := c.durable.Get(cctx, key)
	if err != nil {
		c.logger.Warn("durable tier read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if env == nil {
		return nil, false
	}
	if env.Expired(now) {
		// 読まれることのなくなったエントリも読み取り時に機会的に追い出す
		c.evictBoth(ctx, key)
		return nil, false
	}
	if env.Sliding {
		env = c.refresh(ctx, key, env, now)
	} else {
		c.fast.Add(key, env)
	}
	return env.Value, true
}

// Set 指定したキーに値を設定します
//
// 両層へ同期的に書き込むため、高速層が失われても耐久層の記録との
// 食い違いによるサイレントなデータ損失は起きません。
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration, strategy Strategy) error {
	env := &Envelope{
		Value:     value,
		ExpiresAt: time.Now().Add(ttl),
		Sliding:   strategy == Sliding,
		TTL:       ttl,
	}
	c.fast.Add(key, env)

	cctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	return c.durable.Set(cctx, key, env)
}

// Invalidate 指定したキーを両層から削除します
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	c.fast.Remove(key)

	cctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	return c.durable.Delete(cctx, key)
}

// RunSweeper 耐久層の期限切れエントリを定期的に掃除します
//
// 読み取り起点の追い出しとは独立に動き、二度と読まれないエントリによる
// ストレージの成長を抑えます。ctxのキャンセルで停止します。
func (c *Cache) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cctx, cancel := context.WithTimeout(ctx, c.opTimeout)
			n, err := c.durable.Sweep(cctx)
			cancel()
			if err != nil {
				c.logger.Warn("durable tier sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				c.logger.Debug("swept expired cache entries", zap.Int("count", n))
			}
		}
	}
}

// refresh Slidingなエントリの期限を延長します
//
// 高速層に載ったEnvelopeは複数ゴルーチンから同時に読まれるため、
// 書き換えずに延長済みのコピーで置き換えます。
func (c *Cache) refresh(ctx context.Context, key string, env *Envelope, now time.Time) *Envelope {
	renewed := &Envelope{
		Value:     env.Value,
		ExpiresAt: now.Add(env.TTL),
		Sliding:   true,
		TTL:       env.TTL,
	}
	c.fast.Add(key, renewed)
	c.writeDurable(ctx, key, renewed)
	return renewed
}

func (c *Cache) writeDurable(ctx context.Context, key string, env *Envelope) {
	cctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	if err := c.durable.Set(cctx, key, env); err != nil {
		c.logger.Warn("durable tier write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *Cache) evictBoth(ctx context.Context, key string) {
	c.fast.Remove(key)
	cctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	if err := c.durable.Delete(cctx, key); err != nil {
		c.logger.Warn("durable tier eviction failed", zap.String("key", key), zap.Error(err))
	}
}
