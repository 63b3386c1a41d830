package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	LogLevel    string      `yaml:"log-level" env-default:"info"`
	SocketPort  string      `yaml:"socket-port" env-default:"8080"`
	Redis       Redis       `yaml:"redis"`
	Auth        Auth        `yaml:"auth"`
	Game        Game        `yaml:"game"`
	Matchmaking Matchmaking `yaml:"matchmaking"`
	Challenge   Challenge   `yaml:"challenge"`
	Connection  Connection  `yaml:"connection"`
}

type Redis struct {
	Host string `yaml:"host" env-default:"localhost"`
	Port string `yaml:"port" env-default:"6379"`
}

type Auth struct {
	TokenTTLSeconds int `yaml:"token-ttl-seconds" env-default:"604800"`
}

type Game struct {
	TurnLimitSeconds   int  `yaml:"turn-limit-seconds" env-default:"60"`
	TurnWarningSeconds int  `yaml:"turn-warning-seconds" env-default:"10"`
	AllowTouchingShips bool `yaml:"allow-touching-ships" env-default:"false"`
}

type Matchmaking struct {
	QueueCapacity   int `yaml:"queue-capacity" env-default:"1000"`
	RatingTolerance int `yaml:"rating-tolerance" env-default:"200"`
}

type Challenge struct {
	Capacity             int `yaml:"capacity" env-default:"100"`
	ExpirySeconds        int `yaml:"expiry-seconds" env-default:"60"`
	SweepIntervalSeconds int `yaml:"sweep-interval-seconds" env-default:"5"`
}

type Connection struct {
	RegistryCapacity        int     `yaml:"registry-capacity" env-default:"100"`
	HandshakeTimeoutSeconds int     `yaml:"handshake-timeout-seconds" env-default:"10"`
	IdleTimeoutSeconds      int     `yaml:"idle-timeout-seconds" env-default:"300"`
	WriteTimeoutSeconds     int     `yaml:"write-timeout-seconds" env-default:"10"`
	MessagesPerSecond       float64 `yaml:"messages-per-second" env-default:"100"`
	MessageBurst            int     `yaml:"message-burst" env-default:"200"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		panic(fmt.Errorf("unable to load config file: %w", err))
	}

	return config
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}

func (that *Auth) TokenTTL() time.Duration {
	return time.Duration(that.TokenTTLSeconds) * time.Second
}

func (that *Game) TurnLimit() time.Duration {
	return time.Duration(that.TurnLimitSeconds) * time.Second
}

func (that *Game) TurnWarning() time.Duration {
	return time.Duration(that.TurnWarningSeconds) * time.Second
}

func (that *Challenge) Expiry() time.Duration {
	return time.Duration(that.ExpirySeconds) * time.Second
}

func (that *Challenge) SweepInterval() time.Duration {
	return time.Duration(that.SweepIntervalSeconds) * time.Second
}

func (that *Connection) HandshakeTimeout() time.Duration {
	return time.Duration(that.HandshakeTimeoutSeconds) * time.Second
}

func (that *Connection) IdleTimeout() time.Duration {
	return time.Duration(that.IdleTimeoutSeconds) * time.Second
}

func (that *Connection) WriteTimeout() time.Duration {
	return time.Duration(that.WriteTimeoutSeconds) * time.Second
}
