// Package config предоставляет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек
type Config struct {
	Env             string `yaml:"env" env-default:"local"`
	Backend         `yaml:"backend"`
	HTTPServer      `yaml:"http_server"`
	RedisConnection `yaml:"redis_connection"`
	Session         `yaml:"session"`
	Routes          `yaml:"routes"`
	AMQP            `yaml:"amqp"`
	Audit           `yaml:"audit"`
}

// Backend структура для настройки клиента REST backend
type Backend struct {
	BaseURL          string        `yaml:"base_url" env-default:"http://localhost:4000/v1"`
	TimeoutBackend   time.Duration `yaml:"timeout" env-default:"10s"`
	Retries          uint64        `yaml:"retries" env-default:"3"`
	BreakerFailures  uint32        `yaml:"breaker_failures" env-default:"5"`
	BreakerOpenDelay time.Duration `yaml:"breaker_open_delay" env-default:"30s"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:":8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"15s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// RedisConnection структура для настройки подключения к redis.
// Пустой адрес означает хранение учётных данных в памяти процесса.
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis"`
	Password     string        `yaml:"password"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries" env-default:"3"`
	DialTimeout  time.Duration `yaml:"dial_timeout" env-default:"5s"`
	TimeoutRedis time.Duration `yaml:"timeoutredis" env-default:"3s"`
}

// Session структура для настройки сессий браузеров
type Session struct {
	CookieName          string        `yaml:"cookie_name" env-default:"oc_session"`
	CookieSecure        bool          `yaml:"cookie_secure"`
	ExpiryCheckInterval time.Duration `yaml:"expiry_check_interval" env-default:"5m"`
	DefaultTokenTTL     time.Duration `yaml:"default_token_ttl" env-default:"24h"`
	IdleTTL             time.Duration `yaml:"idle_ttl" env-default:"24h"`
	AnonymousIdleTTL    time.Duration `yaml:"anonymous_idle_ttl" env-default:"15m"`
	MaxScopes           int           `yaml:"max_scopes" env-default:"10000"`
	LoginRate           float64       `yaml:"login_rate" env-default:"1"`
	LoginBurst          int           `yaml:"login_burst" env-default:"5"`
	DirectoryCacheTTL   time.Duration `yaml:"directory_cache_ttl" env-default:"5m"`
}

// Routes пути представлений, на которые перенаправляет route guard
type Routes struct {
	Login        string `yaml:"login" env-default:"/auth/login"`
	Onboarding   string `yaml:"onboarding" env-default:"/onboarding"`
	Landing      string `yaml:"landing" env-default:"/profile"`
	AdminLanding string `yaml:"admin_landing" env-default:"/admin"`
	OAuthLanding string `yaml:"oauth_landing" env-default:"/community"`
}

// AMQP структура для публикации событий сессии. Пустой URL отключает публикацию.
type AMQP struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange" env-default:"session_events"`
}

// Audit структура для настройки журнала событий сессий
type Audit struct {
	Queue     string        `yaml:"queue" env-default:"session_audit"`
	Retention time.Duration `yaml:"retention" env-default:"720h"`
}

// MustLoad функция для загрузки конфига из файла, путь к которому лежит в CONFIG_PATH
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return &cfg
}

func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"Backend:\n"+
			"  BaseURL: %s\n"+
			"  Timeout: %s\n"+
			"  Retries: %d\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"RedisConnection:\n"+
			"  Addr: %s\n"+
			"  DB: %d\n"+
			"Session:\n"+
			"  CookieName: %s\n"+
			"  ExpiryCheckInterval: %s\n"+
			"  DefaultTokenTTL: %s\n"+
			"  IdleTTL: %s\n"+
			"  AnonymousIdleTTL: %s\n"+
			"  MaxScopes: %d\n"+
			"AMQP:\n"+
			"  Enabled: %t\n"+
			"  Exchange: %s\n",
		c.Env,
		c.BaseURL,
		c.TimeoutBackend,
		c.Retries,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.IdleTimeout,
		c.AddressRedis,
		c.DB,
		c.CookieName,
		c.ExpiryCheckInterval,
		c.DefaultTokenTTL,
		c.IdleTTL,
		c.AnonymousIdleTTL,
		c.MaxScopes,
		c.URL != "",
		c.Exchange,
	)
}
