// Package config provides configuration structures and utilities for sitecrawl.
// It defines the crawl bounds and politeness settings of a single run (Crawl),
// the command line settings around it (Config), and the optional YAML
// configuration file with per-site overrides (File).
package config
