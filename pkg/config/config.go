// Package config provides K8s-manifest-style configuration types shared
// across the consensus daemon: structured logging configuration today,
// with room for gateway and cache manifests as they're added.
package config
