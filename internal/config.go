package internal

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Config is read from the environment with Netflix/go-env then checked by Validate.
type Config struct {
	Host                 string        `env:"HOST,default=0.0.0.0"`
	Port                 int           `env:"PORT,default=8080" validate:"min=1,max=65535"`
	LogLevel             string        `env:"LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true" validate:"required"`
	JWTSecret            string        `env:"JWT_SECRET,required=true" validate:"min=16"`
	JWTIssuer            string        `env:"JWT_ISSUER,default=chat-relay" validate:"required"`
	AuthTokenDuration    time.Duration `env:"AUTH_TOKEN_DURATION,default=24h" validate:"gt=0"`
	LimitMessages        *int          `env:"LIMIT_MESSAGES" validate:"omitempty,gt=0"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=256" validate:"gt=0"`
	WriteTimeout         time.Duration `env:"WRITE_TIMEOUT,default=10s" validate:"gt=0"`
	PongWait             time.Duration `env:"PONG_WAIT,default=60s" validate:"gt=0"`
	PingPeriod           time.Duration `env:"PING_PERIOD,default=54s" validate:"gt=0,ltfield=PongWait"`
	MaxMessageSize       int64         `env:"MAX_MESSAGE_SIZE,default=65536" validate:"gt=0"`
	GCInterval           time.Duration `env:"GC_INTERVAL,default=5m" validate:"gt=0"`
	StatsInterval        time.Duration `env:"STATS_INTERVAL,default=15s" validate:"gt=0"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s" validate:"gt=0"`
	DebugPort            int           `env:"DEBUG_PORT,default=8081" validate:"min=1,max=65535"`
}

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
