// Package config loads the YAML configuration of a promptmesh deployment:
// the agents with their providers, and the shared retry, search, memory,
// transcript, chain, template, logging and pool settings.
//
// Missing files yield DefaultConfig. API keys and the SearXNG address can be
// supplied through the environment instead of the file.
package config
