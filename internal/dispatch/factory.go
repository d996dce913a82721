package dispatch

import (
	"fmt"

	"collab-go/internal/collab"
	"collab-go/internal/config"
)

// NewDispatcherFromConfig selects the dispatcher named by cfg.Type. The hub
// is used directly for type "hub"; for type "redis" the caller is expected
// to run Bridge into the same hub.
func NewDispatcherFromConfig(cfg config.DispatchConfig, hub *Hub, logger collab.Logger) (collab.Dispatcher, error) {
	switch cfg.Type {
	case "", "hub":
		if hub == nil {
			return nil, fmt.Errorf("dispatch type hub requires a hub")
		}
		return hub, nil
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("redis_addr is required for dispatch type redis")
		}
		client := NewRedisClient(RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return NewRedisDispatcher(client, logger), nil
	case "nop":
		return collab.NopDispatcher{}, nil
	default:
		return nil, fmt.Errorf("unknown dispatch type: %s", cfg.Type)
	}
}
