// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2025, Webtrit

package callkeep

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config carries coordination timeouts. Zero value is not usable, construct
// with DefaultConfig or LoadConfig.
type Config struct {
	// RingTimeout bounds how long incoming call may stay ringing before it
	// is treated as missed
	RingTimeout time.Duration `env:"CALLKEEP_RING_TIMEOUT" envDefault:"35s"`
	// DialTimeout bounds wait for ongoing confirmation of outgoing call
	DialTimeout time.Duration `env:"CALLKEEP_DIAL_TIMEOUT" envDefault:"35s"`

	// StartTimeout bounds background worker cold start
	StartTimeout time.Duration `env:"CALLKEEP_START_TIMEOUT" envDefault:"10s"`
	// AckTimeout bounds wait for background delivery acknowledgement
	AckTimeout time.Duration `env:"CALLKEEP_ACK_TIMEOUT" envDefault:"5s"`
}

func DefaultConfig() Config {
	return Config{
		RingTimeout:  35 * time.Second,
		DialTimeout:  35 * time.Second,
		StartTimeout: 10 * time.Second,
		AckTimeout:   5 * time.Second,
	}
}

// LoadConfig reads config from environment
func LoadConfig() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return c, fmt.Errorf("parsing callkeep env config: %w", err)
	}
	return c, nil
}
