package cache

import (
	"time"

	"github.com/vporoshin/evisearch/internal/model"
)

// Layered checks memory first, then disk, promoting disk hits to memory
type Layered struct {
	memory Cache
	disk   Cache
}

// NewLayered creates a memory+disk cache
func NewLayered(memoryTTL time.Duration, diskDir string, diskTTL time.Duration) *Layered {
	return &Layered{
		memory: NewMemory(memoryTTL),
		disk:   NewDisk(diskDir, diskTTL),
	}
}

// FromConfig builds the cache the configuration asks for: nop when disabled,
// memory-only when no disk dir is set, layered otherwise.
func FromConfig(cfg model.CacheConfig) Cache {
	if !cfg.Enabled {
		return Nop{}
	}
	memTTL := time.Duration(cfg.MemoryTTLMinutes) * time.Minute
	if cfg.Dir == "" {
		return NewMemory(memTTL)
	}
	return NewLayered(memTTL, cfg.Dir, time.Duration(cfg.DiskTTLHours)*time.Hour)
}

// Get checks memory, then disk
func (c *Layered) Get(key string) ([]byte, bool) {
	if val, found := c.memory.Get(key); found {
		return val, true
	}

	if val, found := c.disk.Get(key); found {
		c.memory.Set(key, val, 0)
		return val, true
	}

	return nil, false
}

// Set stores in both layers
func (c *Layered) Set(key string, value []byte, ttl time.Duration) {
	c.memory.Set(key, value, ttl)
	c.disk.Set(key, value, ttl)
}
