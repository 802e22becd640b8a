/*
Package config loads wireflow configuration.

Config wraps a map[string]any with typed accessors that fall back to a
default on missing keys or type mismatches:

	cfg := config.New(map[string]any{"workers": 4})
	workers := cfg.Int("workers", 1) // 4

Settings is the typed runtime configuration, loaded from YAML or JSON and
validated with struct tags:

	s, err := config.LoadSettings("wireflow.yaml")
	if err != nil {
	    log.Fatal(err)
	}

A minimal settings file:

	log_level: debug
	executor:
	  workers: 8
	storage:
	  backend: sqlite
	  path: ./wireflow.db
*/
package config
