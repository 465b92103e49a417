package plugins

import (
	"github.com/jrife/roost/storage/kv"
	"github.com/jrife/roost/storage/kv/plugins/bbolt"
	"github.com/jrife/roost/storage/kv/plugins/memory"
)

// KVPluginManager lets a consumer
// retrieve the KV storage plugin
// by name
type KVPluginManager struct {
	plugins []kv.Plugin
}

// NewKVPluginManager returns a KVPluginManager
// that is loaded with all supported plugins.
func NewKVPluginManager() *KVPluginManager {
	plugins := []kv.Plugin{}

	plugins = append(plugins, memory.Plugins()...)
	plugins = append(plugins, bbolt.Plugins()...)

	return &KVPluginManager{
		plugins: plugins,
	}
}

// Plugin returns the plugin whose name matches the given name.
// It returns nil if no such plugin is found.
func (pluginManager *KVPluginManager) Plugin(name string) kv.Plugin {
	for _, plugin := range pluginManager.plugins {
		if plugin.Name() == name {
			return plugin
		}
	}

	return nil
}

// Plugins lists every plugin the manager knows about
func (pluginManager *KVPluginManager) Plugins() []kv.Plugin {
	return pluginManager.plugins
}

// Names lists the plugin names
func (pluginManager *KVPluginManager) Names() []string {
	names := make([]string, 0, len(pluginManager.plugins))

	for _, plugin := range pluginManager.plugins {
		names = append(names, plugin.Name())
	}

	return names
}
