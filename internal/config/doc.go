// Package config defines the agentdk configuration model and its layered
// loader. Configuration is read from YAML files: built-in defaults first,
// then ~/.config/agentdk/config.yaml, then ./.agentdk/config.yaml, with
// later layers overriding earlier ones.
//
// The interesting part of the model is the servers list: each ServerSpec
// describes how to launch one MCP tool server as a subprocess. The session
// package consumes these specs as opaque launch instructions.
package config
