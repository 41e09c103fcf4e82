package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

// FuzzLoadConfig tests configuration loading with malformed inputs
func FuzzLoadConfig(f *testing.F) {
	f.Add(`environments:
  corollary:
    template: "**Corollary {{.counter}}.** {{.body}}"
    counter_id: theorem`)
	f.Add(`workers: "many"`)
	f.Add(`workers: -1`)
	f.Add(`log: {level: loud}`)
	f.Add(`environments: [1, 2, 3]`)
	f.Add(`environments: {x: {template: "{{if"}}}`)
	f.Add(`malformed: yaml: content`)
	f.Add(``)

	f.Fuzz(func(t *testing.T, yamlContent string) {
		if len(yamlContent) > 50000 {
			t.Skip("Config content too large")
		}

		path := filepath.Join(t.TempDir(), ".mdbook-env.yml")
		if err := os.WriteFile(path, []byte(yamlContent), 0o644); err != nil {
			t.Skip("Could not write config file")
		}

		v := viper.New()
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return
		}

		cfg, err := LoadFrom(v)
		if err != nil {
			return
		}

		if cfg.Workers < 1 {
			t.Errorf("validation allowed %d workers", cfg.Workers)
		}

		// Compilation failures are errors, never panics.
		_, _ = BuildRegistry(cfg)
	})
}
