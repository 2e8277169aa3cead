package plugin

import "fmt"

// Config is the runtime-tunable configuration for one enabled plugin
// entry: which registry name to instantiate, in what order, with which
// provider-specific settings.
type Config struct {
	Name string
	WoT  *WoTConfig
}

// constructors maps a plugin name to its builder. The set of names is
// fixed at compile time — spec.md §9's Design Notes rule out dynamic
// hot-loading — but which names run, in what order, and with what
// settings is fully configuration-driven.
var constructors = map[string]func(Config) (ScoreModifier, error){
	"wot": buildWoTPlugin,
}

func buildWoTPlugin(cfg Config) (ScoreModifier, error) {
	if cfg.WoT == nil {
		return nil, fmt.Errorf("plugin %q: wot config is required", cfg.Name)
	}
	return NewWoTPlugin(*cfg.WoT)
}

// Build instantiates an ordered ScoreModifier list from configs, in the
// order given, erroring on any unregistered plugin name.
func Build(configs []Config) ([]ScoreModifier, error) {
	modifiers := make([]ScoreModifier, 0, len(configs))
	for _, cfg := range configs {
		ctor, ok := constructors[cfg.Name]
		if !ok {
			return nil, fmt.Errorf("plugin: unregistered plugin %q", cfg.Name)
		}
		m, err := ctor(cfg)
		if err != nil {
			return nil, fmt.Errorf("plugin %q: %w", cfg.Name, err)
		}
		modifiers = append(modifiers, m)
	}
	return modifiers, nil
}
