package sqlite

import "fmt"

const (
	defaultBusyTimeout = 5000
	defaultDBFile      = "memory.db"
)

// Config for the transcript store.
type Config struct {
	// Path to the database file. Empty means {DataDir}/memory.db.
	Path string `yaml:"path"`

	// WAL switches the journal mode. Left unset it is on, which keeps
	// reads from blocking behind the single writer.
	WAL *bool `yaml:"wal"`

	// BusyTimeout in milliseconds before a locked database errors out.
	BusyTimeout int `yaml:"busy_timeout"`
}

func (c *Config) defaults() {
	if c.WAL == nil {
		on := true
		c.WAL = &on
	}
	if c.BusyTimeout == 0 {
		c.BusyTimeout = defaultBusyTimeout
	}
}

func (c *Config) walEnabled() bool {
	return c.WAL == nil || *c.WAL
}

func (c *Config) validate() error {
	if c.BusyTimeout < 0 {
		return fmt.Errorf("sqlite: busy_timeout must be non-negative, got %d", c.BusyTimeout)
	}
	return nil
}
