// Package config loads, normalizes, and validates tunevision configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads a working-directory .env file, and
// honours the OPENAI_API_KEY environment fallback. The Config type centralizes
// every knob the pipeline, watch loop, and CLI need.
//
// Always obtain settings through this package so downstream code receives
// absolute paths, canonical log formats, and clear validation errors.
package config
