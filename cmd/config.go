package cmd

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/quartzchat/quartz/router"
)

// Config 設定
type Config struct {
	// DevMode 開発モードかどうか (default: false)
	DevMode bool `mapstructure:"dev" yaml:"dev"`
	// Pprof pprofを有効にするかどうか (default: false)
	Pprof bool `mapstructure:"pprof" yaml:"pprof"`

	// Origin サーバーオリジン (default: http://localhost:3000)
	Origin string `mapstructure:"origin" yaml:"origin"`
	// Port サーバーポート番号 (default: 3000)
	Port int `mapstructure:"port" yaml:"port"`
	// Gzip レスポンスのGZIP圧縮を有効にするかどうか (default: true)
	Gzip bool `mapstructure:"gzip" yaml:"gzip"`
	// ShutdownTimeout シャットダウン待機秒数 (default: 10)
	ShutdownTimeout int `mapstructure:"shutdownTimeout" yaml:"shutdownTimeout"`

	// AccessLog HTTPアクセスログ設定
	AccessLog struct {
		// Enabled 有効かどうか (default: true)
		Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	} `mapstructure:"accessLog" yaml:"accessLog"`

	// MariaDB データベース接続設定
	MariaDB struct {
		// Host ホスト名 (default: 127.0.0.1)
		Host string `mapstructure:"host" yaml:"host"`
		// Port ポート番号 (default: 3306)
		Port int `mapstructure:"port" yaml:"port"`
		// Username ユーザー名 (default: root)
		Username string `mapstructure:"username" yaml:"username"`
		// Password パスワード (default: password)
		Password string `mapstructure:"password" yaml:"password"`
		// Database データベース名 (default: quartz)
		Database string `mapstructure:"database" yaml:"database"`
		// Connection コネクション設定
		Connection struct {
			// MaxOpen 最大オープン接続数. 0は無制限 (default: 0)
			MaxOpen int `mapstructure:"maxOpen" yaml:"maxOpen"`
			// MaxIdle 最大アイドル接続数 (default: 2)
			MaxIdle int `mapstructure:"maxIdle" yaml:"maxIdle"`
			// LifeTime 待機接続維持時間. 0は無制限 (default: 0)
			LifeTime int `mapstructure:"lifetime" yaml:"lifetime"`
		} `mapstructure:"connection" yaml:"connection"`
	} `mapstructure:"mariadb" yaml:"mariadb"`

	// Redis キャッシュ耐久層・インスタンス間リレー設定
	Redis struct {
		// Host ホスト名 (default: 127.0.0.1)
		Host string `mapstructure:"host" yaml:"host"`
		// Port ポート番号 (default: 6379)
		Port int `mapstructure:"port" yaml:"port"`
		// Password パスワード (default: 空文字)
		Password string `mapstructure:"password" yaml:"password"`
		// Database データベース番号 (default: 0)
		Database int `mapstructure:"database" yaml:"database"`
	} `mapstructure:"redis" yaml:"redis"`

	// RateLimit コマンド流量制限設定
	RateLimit struct {
		// Ceiling ウィンドウ内で受理するコマンド数の上限 (default: 30)
		Ceiling int `mapstructure:"ceiling" yaml:"ceiling"`
		// WindowSeconds ウィンドウ長(秒) (default: 60)
		WindowSeconds int `mapstructure:"windowSeconds" yaml:"windowSeconds"`
	} `mapstructure:"rateLimit" yaml:"rateLimit"`

	// Cache 二層キャッシュ設定
	Cache struct {
		// FastSize インメモリ層のエントリ数 (default: 4096)
		FastSize int `mapstructure:"fastSize" yaml:"fastSize"`
		// SweepIntervalSeconds 期限切れ掃除の実行間隔(秒) (default: 60)
		SweepIntervalSeconds int `mapstructure:"sweepIntervalSeconds" yaml:"sweepIntervalSeconds"`
	} `mapstructure:"cache" yaml:"cache"`

	// JWT 認証トークン設定
	JWT struct {
		// Keys 鍵設定
		Keys struct {
			// Private ES256秘密鍵ファイルパス
			Private string `mapstructure:"private" yaml:"private"`
		} `mapstructure:"keys" yaml:"keys"`
	} `mapstructure:"jwt" yaml:"jwt"`
}

func init() {
	viper.SetDefault("dev", false)
	viper.SetDefault("pprof", false)
	viper.SetDefault("origin", "http://localhost:3000")
	viper.SetDefault("port", 3000)
	viper.SetDefault("gzip", true)
	viper.SetDefault("shutdownTimeout", 10)
	viper.SetDefault("accessLog.enabled", true)
	viper.SetDefault("mariadb.host", "127.0.0.1")
	viper.SetDefault("mariadb.port", 3306)
	viper.SetDefault("mariadb.username", "root")
	viper.SetDefault("mariadb.password", "password")
	viper.SetDefault("mariadb.database", "quartz")
	viper.SetDefault("mariadb.connection.maxOpen", 0)
	viper.SetDefault("mariadb.connection.maxIdle", 2)
	viper.SetDefault("mariadb.connection.lifetime", 0)
	viper.SetDefault("redis.host", "127.0.0.1")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.database", 0)
	viper.SetDefault("rateLimit.ceiling", 30)
	viper.SetDefault("rateLimit.windowSeconds", 60)
	viper.SetDefault("cache.fastSize", 4096)
	viper.SetDefault("cache.sweepIntervalSeconds", 60)
	viper.SetDefault("jwt.keys.private", "")
}

func provideRouterConfig(c *Config) *router.Config {
	return &router.Config{
		Development:   c.DevMode,
		Version:       Version,
		Revision:      Revision,
		AccessLogging: c.AccessLog.Enabled,
		Gzipped:       c.Gzip,
		Origin:        c.Origin,
	}
}

func (c Config) getDatabase(l gormlogger.Interface) (*gorm.DB, error) {
	engine, err := gorm.Open(mysql.Open(fmt.Sprintf(
		"%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&collation=utf8mb4_general_ci&parseTime=true",
		c.MariaDB.Username,
		c.MariaDB.Password,
		c.MariaDB.Host,
		c.MariaDB.Port,
		c.MariaDB.Database,
	)), &gorm.Config{Logger: l, TranslateError: true})
	if err != nil {
		return nil, err
	}
	db, err := engine.DB()
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(c.MariaDB.Connection.MaxOpen)
	db.SetMaxIdleConns(c.MariaDB.Connection.MaxIdle)
	db.SetConnMaxLifetime(time.Duration(c.MariaDB.Connection.LifeTime) * time.Second)
	return engine.Set("gorm:table_options", "ENGINE=InnoDB DEFAULT CHARSET=utf8mb4"), nil
}

func (c Config) getRedis() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port),
		Password: c.Redis.Password,
		DB:       c.Redis.Database,
	})
}
