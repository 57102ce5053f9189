// Package config defines and loads lobbyd's configuration schema.
//
// Grounded on the teacher's internal/config package (GlobalConfig +
// Loader split into schema/defaults/loader files) and on the original
// lobby's config.py, whose flat module-level constants become this
// schema's fields.
package config

import "net"

// Config is lobbyd's full runtime configuration.
type Config struct {
	Ports     Ports    `yaml:"ports"`
	BannedIPs []string `yaml:"banned_ips"`
	Timing    Timing   `yaml:"timing"`
	Log       Log      `yaml:"log"`
}

// Ports configures the five listeners lobbyd binds.
type Ports struct {
	Legacy       int `yaml:"legacy"`
	LegacyQuery  int `yaml:"legacy_query"`
	NewStyle     int `yaml:"new_style"`
	NewStyleList int `yaml:"new_style_list"`
	Web          int `yaml:"web"`
}

// Timing holds duration overrides, mainly for tests and operators who need
// a shorter expiration window in a private deployment. `lobbyd serve`
// applies only ServerExpirationSecs; RegistrationThrottleSecs and
// ConnectionTimeoutSecs are loaded but not applied, and the throttle
// window, probe timeout and query connection timeouts keep their
// built-in values.
type Timing struct {
	ServerExpirationSecs     int `yaml:"server_expiration_secs"`
	RegistrationThrottleSecs int `yaml:"registration_throttle_secs"`
	ConnectionTimeoutSecs    int `yaml:"connection_timeout_secs"`
}

// Log configures the zerolog writer.
type Log struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// BannedIPv4Set parses BannedIPs into the 4-byte lookup form the legacy
// and new-style registration handlers key on. Entries that aren't valid
// IPv4 literals are skipped.
func (c *Config) BannedIPv4Set() map[[4]byte]struct{} {
	out := make(map[[4]byte]struct{}, len(c.BannedIPs))
	for _, s := range c.BannedIPs {
		ip := net.ParseIP(s)
		if ip == nil {
			continue
		}
		v4 := ip.To4()
		if v4 == nil {
			continue
		}
		var key [4]byte
		copy(key[:], v4)
		out[key] = struct{}{}
	}
	return out
}
