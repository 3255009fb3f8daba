package tele

import "time"

const (
	DefaultBrokerURL      = "tcp://localhost:1883"
	DefaultClientID       = "thermux"
	DefaultKeepalive      = 60 * time.Second
	DefaultPingTimeout    = 30 * time.Second
	DefaultNetworkTimeout = 10 * time.Second
)

type Config struct {
	BrokerURL         string `hcl:"url"`
	ClientID          string `hcl:"client_id"`
	Username          string `hcl:"username"`
	Password          string `hcl:"password"`
	KeepaliveSec      int    `hcl:"keepalive_sec"`
	PingTimeoutSec    int    `hcl:"ping_timeout_sec"`
	NetworkTimeoutSec int    `hcl:"network_timeout_sec"`
	LogDebug          bool   `hcl:"log_debug"`
}
