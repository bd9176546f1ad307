// Package config loads, normalizes, and validates framepipe configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// FRAMEPIPE_POSTGRES_URL and GEMINI_API_KEY. The Config type centralizes every
// knob the worker and CLI need: store backends, retry policy, per-activity
// timeouts, and the fault injector used for resilience drills.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical backend names, and clear validation errors.
package config
