package realtime

import (
	"context"
	"fmt"
	"sort"
)

// Plugin adapts one entity kind to the realtime subsystem: it serializes
// stored entities to JSON-safe maps and produces the initial snapshot a
// new subscription receives.
type Plugin interface {
	Topic() string
	Serialize(entity any) (map[string]any, error)
	InitialSnapshot(ctx context.Context, params SubscriptionParams) (Snapshot, error)
}

// PluginRegistry maps topic names to plugins. Registration happens once at
// startup before any connection is accepted; the registry is read-only
// afterwards, so no locking is needed.
type PluginRegistry struct {
	plugins map[string]Plugin
}

func NewPluginRegistry() *PluginRegistry {
	return &PluginRegistry{
		plugins: make(map[string]Plugin),
	}
}

// Register adds a plugin. A duplicate topic is a startup configuration
// error.
func (r *PluginRegistry) Register(plugin Plugin) error {
	topic := plugin.Topic()
	if _, ok := r.plugins[topic]; ok {
		return fmt.Errorf("topic %q is already registered", topic)
	}

	r.plugins[topic] = plugin

	return nil
}

func (r *PluginRegistry) Get(topic string) (Plugin, bool) {
	plugin, ok := r.plugins[topic]
	return plugin, ok
}

func (r *PluginRegistry) IsValidTopic(topic string) bool {
	_, ok := r.plugins[topic]
	return ok
}

// Topics returns the registered topic names, sorted for stable error
// messages.
func (r *PluginRegistry) Topics() []string {
	topics := make([]string, 0, len(r.plugins))
	for topic := range r.plugins {
		topics = append(topics, topic)
	}
	sort.Strings(topics)

	return topics
}
