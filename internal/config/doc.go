// Package config loads and watches the climdiff configuration file (config.yaml).
//
// Top-level types:
//   - Config — log_level plus the sections below, parsed from YAML
//   - CatalogueConfig — endpoint, dataset, ensemble_member, format,
//     poll_interval, timeout, cache_dir, directory, parallel_fetch, auth, tls
//   - AuthConfig — mode (mtls|apikey|bearer|basic|none), cert/key/ca files,
//     header, key_env, token_env, username, password_env; Key(), Token() and
//     Password() resolve secrets from environment variables
//   - WindowsConfig — historical and projection calendar windows
//   - RenderConfig, OutputConfig, ServerConfig, HistoryConfig, TelemetryConfig
//
// Load(path) applies defaults, parses the YAML file, overlays CLIMDIFF_*
// environment variables (caarlos0/env), then validates required fields and
// enums. Defaults target the CDS beta API with 20-year windows
// 1960-01..1979-12 and 2030-01..2049-12.
//
// Watch(ctx, path, onChange) uses fsnotify to detect file changes and calls
// onChange with the newly parsed Config. It re-adds the watch after every
// event so atomic-save editors (rename then create) keep working.
package config
