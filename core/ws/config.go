package ws

import "time"

const (
	DefaultFragmentSize      = 16 << 10
	DefaultFragmentThreshold = 32 << 10
	DefaultMaxQueuedMessages = 1024
	DefaultReadLimit         = 1 << 20
	DefaultBufferSize        = 4096
)

// Config holds WebSocket session settings.
type Config struct {
	// Messages of at least FragmentThreshold bytes are written in
	// FragmentSize pieces, one frame each. FragmentSize also sizes the
	// connection write buffer, and is kept below FragmentThreshold.
	FragmentSize      int `env:"WS_FRAGMENT_SIZE" envDefault:"16384"`
	FragmentThreshold int `env:"WS_FRAGMENT_THRESHOLD" envDefault:"32768"`

	WriteTimeout time.Duration `env:"WS_WRITE_TIMEOUT" envDefault:"10s"`
	// PongWait is how long a silent peer is tolerated. Zero disables the
	// read deadline and pings.
	PongWait     time.Duration `env:"WS_PONG_WAIT" envDefault:"60s"`
	PingInterval time.Duration `env:"WS_PING_INTERVAL" envDefault:"54s"`

	ReadLimit         int64 `env:"WS_READ_LIMIT" envDefault:"1048576"`
	MaxQueuedMessages int   `env:"WS_MAX_QUEUED_MESSAGES" envDefault:"1024"`

	ReadBufferSize   int           `env:"WS_READ_BUFFER_SIZE" envDefault:"4096"`
	HandshakeTimeout time.Duration `env:"WS_HANDSHAKE_TIMEOUT" envDefault:"10s"`
	// AllowedOrigins restricts the Origin header. Empty means same-origin
	// only, "*" allows any origin.
	AllowedOrigins []string `env:"WS_ALLOWED_ORIGINS" envSeparator:","`
}

// DefaultConfig returns the settings used when no Config is supplied.
func DefaultConfig() Config {
	return Config{
		FragmentSize:      DefaultFragmentSize,
		FragmentThreshold: DefaultFragmentThreshold,
		WriteTimeout:      10 * time.Second,
		PongWait:          60 * time.Second,
		PingInterval:      54 * time.Second,
		ReadLimit:         DefaultReadLimit,
		MaxQueuedMessages: DefaultMaxQueuedMessages,
		ReadBufferSize:    DefaultBufferSize,
		HandshakeTimeout:  10 * time.Second,
	}
}

// withDefaults fills unset sizes. Durations are left alone so zero can
// disable a timer.
func (c Config) withDefaults() Config {
	if c.FragmentSize <= 0 {
		c.FragmentSize = DefaultFragmentSize
	}
	if c.FragmentThreshold <= 0 {
		c.FragmentThreshold = DefaultFragmentThreshold
	}
	if c.FragmentSize >= c.FragmentThreshold {
		c.FragmentSize = max(c.FragmentThreshold/2, 1)
	}
	if c.MaxQueuedMessages <= 0 {
		c.MaxQueuedMessages = DefaultMaxQueuedMessages
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = DefaultReadLimit
	}
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = DefaultBufferSize
	}
	if c.PingInterval <= 0 || (c.PongWait > 0 && c.PingInterval >= c.PongWait) {
		c.PingInterval = c.PongWait * 9 / 10
	}
	return c
}
