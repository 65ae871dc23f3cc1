// Package config loads typed configuration structs from environment variables,
// optionally seeded from .env files. Parsing is delegated to caarlos0/env and
// file loading to joho/godotenv.
package config
