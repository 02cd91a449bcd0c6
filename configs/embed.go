// Package configs embeds the default configuration templates shipped with
// the axlrator CLI.
//
// Templates are embedded at build time with go:embed so they are available
// in source builds, binary releases, and packaged installs alike.
//
// Configuration precedence (lowest to highest), see internal/config.Load:
//  1. Hardcoded defaults (internal/config.NewConfig)
//  2. User config (~/.config/axlrator/config.yaml)
//  3. Project config (.axlrator.yaml)
//  4. Environment variables (AXLRATOR_*)
package configs

import _ "embed"

// UserConfigTemplate seeds ~/.config/axlrator/config.yaml, written by
// `axlrator config init`. Holds machine-specific settings: embedding
// backend, Ollama/MLX endpoints, thermal tuning.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string

// ProjectConfigTemplate seeds .axlrator.yaml at a project root, written by
// `axlrator config init --project`. Holds version-controlled settings:
// path filters, search weights, artifact toggles.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
