package internal

import (
	"fmt"
	"time"
)

type Config struct {
	Host           string `env:"HOST,default=0.0.0.0"`
	Port           int    `env:"PORT,default=8080"`
	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath  string `env:"BLUGE_FILEPATH,required=true"`
	LogLevel       string `env:"LOG_LEVEL,default=INFO"`

	// Presence tuning. A participant silent for longer than PresenceTimeout
	// is evicted by the sweep that runs every SweepInterval.
	SweepInterval   time.Duration `env:"SWEEP_INTERVAL,default=10s"`
	PresenceTimeout time.Duration `env:"PRESENCE_TIMEOUT,default=10s"`

	SearchLimit     int    `env:"SEARCH_LIMIT,default=20"`
	CharReplacement string `env:"CHARACTER_REPLACEMENT,default=*"`
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
