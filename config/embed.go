package config

import _ "embed"

// DefaultConfigYAML built-in defaults, overridden by config.yaml and FINAMILY_* variables
//
//go:embed config.default.yaml
var DefaultConfigYAML []byte
