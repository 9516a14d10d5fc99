// Package config loads configuration structs from YAML files, .env files and
// prefixed environment variables.
//
// It uses Viper for file parsing and key resolution and godotenv for .env
// files. Values are layered in this order, later layers winning:
//
//  1. defaults already present in the target struct
//  2. the YAML config file (explicit, or discovered as <name>.yml)
//  3. the .env file, which only fills variables not already set
//  4. PREFIX_* environment variables
//
// # Usage
//
//	cfg := process.DefaultConfig()
//	err := config.Load("teashell", &cfg, config.WithConfigFile("teashell.yml"))
//
// Environment variables map onto nested keys by splitting on underscores,
// so TEASHELL_LOGGING_LEVEL sets logging.level and TEASHELL_KILL_GRACE sets
// kill_grace.
package config
