// Package config loads bgtask settings from defaults, an optional bgtask.yaml,
// a .env file and BGTASK_* environment variables, in increasing precedence,
// and validates the result.
package config
