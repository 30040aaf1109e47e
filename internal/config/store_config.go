package config

// Store backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Store selects where sessions and pending auth states are kept.
type Store struct {
	Backend        string `env:"STORE_BACKEND" envDefault:"memory"`
	RedisAddr      string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisUsername  string `env:"REDIS_USERNAME"`
	RedisPassword  string `env:"REDIS_PASSWORD"`
	RedisDB        int    `env:"REDIS_DB" envDefault:"0"`
	RedisKeyPrefix string `env:"REDIS_KEY_PREFIX" envDefault:"sso:"`
}
