package tele

import (
	"context"

	"github.com/temoto/thermux/log2"
)

// Transporter contract:
// - Init fails only with invalid config, network errors are logged and retried
// - onConnect is called after every (re)connect, before any message of that connection
// - onMessage is called serially in arrival order, payload is owned by callee
// - Publish is fire-and-forget, error means it was not even queued
type Transporter interface {
	Init(ctx context.Context, log *log2.Log, config Config, onConnect func(), onMessage MessageCallback) error
	Subscribe(topics ...string) error
	Unsubscribe(topics ...string) error
	Publish(topic string, payload []byte) error
	Close()
}

type MessageCallback func(topic string, payload []byte)
