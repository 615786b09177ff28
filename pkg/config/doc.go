// Package config holds the configuration to open a repository, and to serve it to remotes.
package config
