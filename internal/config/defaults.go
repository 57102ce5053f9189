package config

import "github.com/gg2-lobby/lobbyd/internal/constants"

// Default returns the configuration lobbyd runs with absent any config
// file, matching the original's config.py literals.
func Default() *Config {
	return &Config{
		Ports: Ports{
			Legacy:       constants.DefaultLegacyPort,
			LegacyQuery:  constants.DefaultLegacyPort,
			NewStyle:     constants.DefaultNewStylePort,
			NewStyleList: constants.DefaultNewStylePort,
			Web:          constants.DefaultWebPort,
		},
		BannedIPs: []string{"1.2.3.4"},
		Timing: Timing{
			ServerExpirationSecs:     int(constants.ServerExpiration.Seconds()),
			RegistrationThrottleSecs: int(constants.RegistrationThrottle.Seconds()),
			ConnectionTimeoutSecs:    int(constants.ConnectionTimeout.Seconds()),
		},
		Log: Log{
			Level:  "info",
			Pretty: false,
		},
	}
}
