package handlers

import "rainyun-autosign/internal/config"

// cfg is the process-wide configuration, set once at router setup so
// handlers never re-read the environment per request.
var cfg *config.Config

func Init(c *config.Config) {
	cfg = c
}
