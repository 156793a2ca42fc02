package h3mtls

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfig_Clone(t *testing.T) {
	tests := map[string]*Config{
		"full config": {
			SNIHostCheck:      true,
			SendServerVersion: true,
			ServerVersion:     "1.2.3",
			ShutdownTimeout:   time.Second,
		},
		"zero config": {},
	}

	for name, original := range tests {
		t.Run(name, func(t *testing.T) {
			cloned := original.Clone()

			assert.Equal(t, original, cloned)
			assert.NotSame(t, original, cloned)
		})
	}
}

func TestConfig_Clone_Nil(t *testing.T) {
	var c *Config
	assert.Nil(t, c.Clone())
}

func TestConfig_Defaults(t *testing.T) {
	var c *Config

	assert.Empty(t, c.serverHeader())
	assert.False(t, c.sniHostCheck())
	assert.Equal(t, 5*time.Second, c.shutdownTimeout())

	c = &Config{SendServerVersion: true, ShutdownTimeout: time.Second}
	assert.Equal(t, "h3mtls/"+Version, c.serverHeader())
	assert.Equal(t, time.Second, c.shutdownTimeout())
}
