package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/thermux/log2"
)

func TestReadConfig(t *testing.T) {
	t.Parallel()

	type Case struct {
		name      string
		input     string
		check     func(testing.TB, *Config)
		expectErr string
	}
	cases := []Case{
		{"empty", "", func(t testing.TB, c *Config) {
			assert.Equal(t, "tcp://localhost:1883", c.Broker.BrokerURL)
			assert.Equal(t, "thermux", c.Broker.ClientID)
			assert.Equal(t, "spBv1.0", c.Sparkplug.Namespace)
			assert.Equal(t, "VI", c.Sparkplug.Group)
			assert.Equal(t, "THERMISTOR", c.Sparkplug.NodeID)
			assert.Equal(t, 6, c.Sparkplug.NumModules)
			assert.Equal(t, 0, c.Sparkplug.ModuleID)
			assert.Equal(t, 2, c.Sparkplug.CommsVersion)
			assert.Equal(t, "changed", c.Show)
			assert.NoError(t, c.Validate())
		}, ""},

		{"broker", `
broker {
	url = "tcp://10.0.0.5:1883"
	client_id = "bench"
	username = "u"
	password = "p"
	keepalive_sec = 20
	log_debug = true
}`,
			func(t testing.TB, c *Config) {
				assert.Equal(t, "tcp://10.0.0.5:1883", c.Broker.BrokerURL)
				assert.Equal(t, "bench", c.Broker.ClientID)
				assert.Equal(t, "u", c.Broker.Username)
				assert.Equal(t, "p", c.Broker.Password)
				assert.Equal(t, 20, c.Broker.KeepaliveSec)
				assert.True(t, c.Broker.LogDebug)
			}, ""},

		{"sparkplug", `
sparkplug { module_id = 3 comms_version = 3 }
show = "all"
log { enable = true path = "/tmp/x.csv" }
log_debug = true`,
			func(t testing.TB, c *Config) {
				assert.Equal(t, 3, c.Sparkplug.ModuleID)
				opt := c.SessionOptions()
				assert.Equal(t, int64(3), opt.CommsVersion)
				assert.Equal(t, 6, opt.NumModules)
				assert.Equal(t, "all", c.Show)
				assert.True(t, c.Log.Enable)
				assert.Equal(t, "/tmp/x.csv", c.Log.Path)
				assert.True(t, c.LogDebug)
				assert.NoError(t, c.Validate())
			}, ""},

		{"invalid", `
sparkplug { module_id = 6 namespace = "spAv1.0" }
show = "some"`,
			func(t testing.TB, c *Config) {
				err := c.Validate()
				require.Error(t, err)
				assert.Contains(t, err.Error(), "module_id=6 out of range 0-5")
				assert.Contains(t, err.Error(), "namespace=spAv1.0")
				assert.Contains(t, err.Error(), "show mode")
			}, ""},

		{"include-normalize", `
show = "none"
include "./empty" {}`,
			nil, ""},

		{"include-optional", `
include "module-4" {}
include "non-exist" { optional = true }`,
			func(t testing.TB, c *Config) {
				assert.Equal(t, 4, c.Sparkplug.ModuleID)
			}, ""},

		{"include-overwrites", `
sparkplug { module_id = 1 }
include "module-4" {}`,
			func(t testing.TB, c *Config) {
				assert.Equal(t, 4, c.Sparkplug.ModuleID)
			}, ""},

		{"include-required", `include "non-exist" {}`, nil, "config required name=non-exist"},

		{"include-loop", `include "loop" {}`, nil, "config include loop"},

		{"syntax", `broker {`, nil, "config unmarshal source=test-inline"},
	}
	mkCheck := func(c Case) func(*testing.T) {
		return func(t *testing.T) {
			t.Parallel()
			fs := NewMockFullReader(map[string]string{
				"test-inline": c.input,
				"empty":       "",
				"module-4":    "sparkplug { module_id = 4 }",
				"loop":        `include "test-inline" {}`,
			})
			log := log2.NewTest(t, log2.LDebug)
			config, err := ReadConfig(log, fs, "test-inline")
			if c.expectErr == "" {
				require.NoError(t, err)
				if c.check != nil {
					c.check(t, config)
				}
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), c.expectErr)
			}
		}
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, mkCheck(c))
	}
}
