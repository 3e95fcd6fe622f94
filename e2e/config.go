package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

// Config points the scenarios at a running relay seeded with cmd/seed.
type Config struct {
	RelayAddr  string `envconfig:"RELAY_ADDR"`
	RoomID     string `envconfig:"E2E_ROOM_ID"`
	AliceToken string `envconfig:"E2E_ALICE_TOKEN"`
	BobToken   string `envconfig:"E2E_BOB_TOKEN"`
	// E2E_DEBUG_JSON dumps every frame received
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
