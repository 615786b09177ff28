package config

import (
	"time"

	"github.com/docker/go-units"
	"github.com/oneconcern/irmin/pkg/core/status"
)

// Default server settings
const (
	DefaultAddr          = ":8765"
	DefaultMaxObjectSize = "64MB"
	DefaultMaxHeaderSize = "1MB"
	DefaultKeepAlive     = 3 * time.Minute
	DefaultReadTimeout   = 30 * time.Second
	DefaultWriteTimeout  = 30 * time.Second
	DefaultIdleTimeout   = 10 * time.Second
)

// Server is the configuration of the endpoint serving a repository to remotes
type Server struct {
	Addr string `json:"addr" yaml:"addr"`

	// MaxObjectSize is the largest object accepted, as a human readable size (e.g. "64MB")
	MaxObjectSize string `json:"maxObjectSize" yaml:"maxObjectSize"`

	// Basic authentication required by the server when a user is set
	User     string `json:"user,omitempty" yaml:"user,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`

	// ListenLimit caps the number of connections served at once. Zero means no limit.
	ListenLimit int `json:"listenLimit" yaml:"listenLimit"`

	// KeepAlive is the TCP keep-alive period of accepted connections. Zero disables keep-alives.
	KeepAlive time.Duration `json:"keepAlive" yaml:"keepAlive"`

	ReadTimeout  time.Duration `json:"readTimeout" yaml:"readTimeout"`
	WriteTimeout time.Duration `json:"writeTimeout" yaml:"writeTimeout"`
	IdleTimeout  time.Duration `json:"idleTimeout" yaml:"idleTimeout"`

	// MaxHeaderSize limits the size of request headers, as a human readable size
	MaxHeaderSize string `json:"maxHeaderSize" yaml:"maxHeaderSize"`
}

// DefaultServer configuration, without authentication
func DefaultServer() Server {
	return Server{
		Addr:          DefaultAddr,
		MaxObjectSize: DefaultMaxObjectSize,
		KeepAlive:     DefaultKeepAlive,
		ReadTimeout:   DefaultReadTimeout,
		WriteTimeout:  DefaultWriteTimeout,
		IdleTimeout:   DefaultIdleTimeout,
		MaxHeaderSize: DefaultMaxHeaderSize,
	}
}

// MaxObjectBytes is the largest object accepted, in bytes
func (s Server) MaxObjectBytes() (int64, error) {
	size, err := units.RAMInBytes(s.MaxObjectSize)
	if err != nil {
		return 0, status.ErrInvalidConfig.WrapMessage("max object size %q: %v", s.MaxObjectSize, err)
	}
	if size <= 0 {
		return 0, status.ErrInvalidConfig.WrapMessage("max object size must be positive")
	}
	return size, nil
}

// MaxHeaderBytes is the largest request header accepted, in bytes. It defaults to 1MB.
func (s Server) MaxHeaderBytes() (int, error) {
	if s.MaxHeaderSize == "" {
		return 1 << 20, nil
	}
	size, err := units.RAMInBytes(s.MaxHeaderSize)
	if err != nil {
		return 0, status.ErrInvalidConfig.WrapMessage("max header size %q: %v", s.MaxHeaderSize, err)
	}
	if size <= 0 || size > int64(^uint32(0)>>1) {
		return 0, status.ErrInvalidConfig.WrapMessage("max header size %q is out of range", s.MaxHeaderSize)
	}
	return int(size), nil
}

// Validate a server configuration
func (s Server) Validate() error {
	if s.Addr == "" {
		return status.ErrInvalidConfig.WrapMessage("server requires an address")
	}
	if s.Password != "" && s.User == "" {
		return status.ErrInvalidConfig.WrapMessage("a password requires a user")
	}
	if s.ListenLimit < 0 {
		return status.ErrInvalidConfig.WrapMessage("negative listen limit")
	}
	if s.KeepAlive < 0 || s.ReadTimeout < 0 || s.WriteTimeout < 0 || s.IdleTimeout < 0 {
		return status.ErrInvalidConfig.WrapMessage("negative server timeout")
	}
	if _, err := s.MaxHeaderBytes(); err != nil {
		return err
	}
	_, err := s.MaxObjectBytes()
	return err
}
