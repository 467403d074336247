package appid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGet(t *testing.T) {
	identity := Get()
	assert.Equal(t, "relay", identity.BinaryName)
	assert.Equal(t, "RELAY_", identity.EnvPrefix)
	assert.NotEmpty(t, identity.Description)
}

func TestEnvVar(t *testing.T) {
	assert.Equal(t, "RELAY_API_TOKEN", EnvVar("api.token"))
	assert.Equal(t, "RELAY_RATELIMIT_GLOBAL_RATE", EnvVar("ratelimit.global-rate"))
	assert.Equal(t, "RELAY", ViperPrefix())
}
