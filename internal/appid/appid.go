// Package appid holds the static identity of the relay binary: its name,
// config directory, environment prefix and telemetry namespace.
package appid

import "strings"

// Identity describes how the application presents itself.
type Identity struct {
	BinaryName         string
	ConfigName         string
	EnvPrefix          string
	Description        string
	TelemetryNamespace string
}

var identity = Identity{
	BinaryName:         "relay",
	ConfigName:         "relay",
	EnvPrefix:          "RELAY_",
	Description:        "Rate-limit aware dispatcher for bucketed REST APIs",
	TelemetryNamespace: "relay",
}

// Get returns a copy of the application identity.
func Get() Identity {
	return identity
}

// EnvVar returns the prefixed environment variable for a config key,
// e.g. "api.token" becomes RELAY_API_TOKEN.
func EnvVar(key string) string {
	name := strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
	prefix := identity.EnvPrefix
	if !strings.HasSuffix(prefix, "_") {
		prefix += "_"
	}
	return prefix + name
}

// ViperPrefix is the prefix passed to viper.SetEnvPrefix, without the
// trailing underscore viper adds itself.
func ViperPrefix() string {
	return strings.TrimSuffix(identity.EnvPrefix, "_")
}
