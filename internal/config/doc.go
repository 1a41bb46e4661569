// Package config loads, normalizes, and validates fpmatch configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the FPMATCH_INPUT environment
// fallback. The Config type centralizes every knob the CLI and the resolve
// workflow need: input location and ordering, feature roles, engine policies,
// and output destinations.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical policy names, and clear validation errors.
package config
