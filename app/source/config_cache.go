package source

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/curatehq/curator/app/curation"
)

// ConfigCache loads and caches source seed configurations from a directory
// of YAML files.
type ConfigCache struct {
	sourcesDir string
	cache      map[string]*Config
	mu         sync.RWMutex
}

func NewConfigCache(sourcesDir string) *ConfigCache {
	return &ConfigCache{
		sourcesDir: sourcesDir,
		cache:      make(map[string]*Config),
	}
}

func (cc *ConfigCache) Run() error {
	if _, err := os.Stat(cc.sourcesDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(cc.sourcesDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	yamlFiles, err := filepath.Glob(filepath.Join(cc.sourcesDir, "*.yaml"))
	if err != nil {
		return fmt.Errorf("failed to find YAML files: %w", err)
	}
	files = append(files, yamlFiles...)

	for _, file := range files {
		name := configName(file)

		config, err := cc.LoadConfig(name, file)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Source configuration loaded",
			"source", name,
			"kind", config.Source.Kind,
			"enabled", config.Settings.Enabled,
			"fetch_interval", config.Settings.FetchInterval)
	}

	return nil
}

func (cc *ConfigCache) LoadConfig(name, path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	config.Name = name
	cc.setDefaults(&config)

	if err := cc.validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.cache[config.Name] = &config

	return &config, nil
}

func (cc *ConfigCache) GetConfig(name string) (*Config, error) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	config, ok := cc.cache[name]
	if !ok {
		return nil, fmt.Errorf("source config with name '%s' not found", name)
	}
	return config, nil
}

// GetConfigByAddress resolves a config by its source address, the key the
// registry deduplicates on.
func (cc *ConfigCache) GetConfigByAddress(address string) (*Config, bool) {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	for _, config := range cc.cache {
		if config.Source.Address == address {
			return config, true
		}
	}
	return nil, false
}

func (cc *ConfigCache) GetConfigs() []*Config {
	cc.mu.RLock()
	defer cc.mu.RUnlock()

	configs := make([]*Config, 0, len(cc.cache))
	for _, config := range cc.cache {
		configs = append(configs, config)
	}

	sort.Slice(configs, func(i, j int) bool {
		return configs[i].Name < configs[j].Name
	})

	return configs
}

func (cc *ConfigCache) GetConfigCount() int {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return len(cc.cache)
}

func (cc *ConfigCache) setDefaults(config *Config) {
	if config.Source.Name == "" {
		config.Source.Name = config.Name
	}
	if config.Settings.FetchInterval == 0 {
		config.Settings.FetchInterval = 3600
	}
	if config.Settings.Timeout == 0 {
		config.Settings.Timeout = 30
	}
	if config.Settings.MaxItems == 0 {
		config.Settings.MaxItems = 50
	}
}

func (cc *ConfigCache) validateConfig(config *Config) error {
	if config.Source.Address == "" {
		return fmt.Errorf("source address is required")
	}
	if _, err := curation.ParseSourceKind(config.Source.Kind); err != nil {
		return err
	}
	return nil
}

func configName(path string) string {
	fileName := filepath.Base(path)
	return strings.TrimSuffix(fileName, filepath.Ext(fileName))
}
