package shm

import (
	"path/filepath"
	"strings"

	"github.com/FerroO2000/shmring/internal/config"
)

const (
	// DefaultName is the well-known name of the segment shared by the writer and the reader.
	DefaultName = "osimhen"
	// DefaultDir is the directory where POSIX shared memory objects live on Linux.
	DefaultDir = "/dev/shm"

	maxNameLen = 255
)

var _ config.Config = (*Config)(nil)

// Config is the configuration of a shared memory segment.
type Config struct {
	// Name is the name of the segment. A leading slash is accepted and ignored.
	Name string
	// Dir is the directory backing the shared memory objects.
	Dir string
}

// DefaultConfig returns the default configuration of the segment.
func DefaultConfig() *Config {
	return &Config{
		Name: DefaultName,
		Dir:  DefaultDir,
	}
}

// Validate checks the configuration.
func (c *Config) Validate(ac *config.AnomalyCollector) {
	c.Name = strings.TrimPrefix(c.Name, "/")
	if strings.ContainsRune(c.Name, '/') {
		c.Name = ""
	}

	config.CheckNotEmpty(ac, "Name", &c.Name, DefaultName)
	config.CheckMaxLen(ac, "Name", &c.Name, maxNameLen)
	config.CheckNotEmpty(ac, "Dir", &c.Dir, DefaultDir)
}

// Path returns the path of the object backing the segment.
func (c *Config) Path() string {
	return filepath.Join(c.Dir, strings.TrimPrefix(c.Name, "/"))
}
