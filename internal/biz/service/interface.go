package service

import (
	"context"
	"encoding/json"
	"time"
)

// Bus is what the HTTP handlers need from a Hub.
type Bus interface {
	Fire(ctx context.Context, name string, payload json.RawMessage) (int, error)
	Wait(ctx context.Context, name string) (time.Duration, error)
	Subscribe(name string, outboxSize int) (*Subscriber, error)
	Stats() []SignalStat
	Done() <-chan struct{}
}

var _ Bus = (*Hub)(nil)
