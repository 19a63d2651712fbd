// Package config loads and validates vikisync configuration.
//
// Configuration comes from a TOML file (default ~/.config/vikisync/config.toml
// or ./vikisync.toml), with environment variable fallbacks for API
// credentials. Load applies defaults, expands paths, normalizes values, and
// validates before anything else runs. Tier credentials are optional: a
// missing key disables that matching tier instead of failing the load.
package config
