package sqlite

import (
	"fmt"
	"time"
)

// Defaults for the engine configuration surface.
const (
	DefaultPageSize    = 4096
	DefaultCacheSize   = 2000
	DefaultMmapSize    = int64(30000000000)
	DefaultBusyTimeout = 5000 * time.Millisecond
	DefaultName        = "waypoint"
)

// MemoryName opens a private in-memory database instead of a file.
const MemoryName = ":memory:"

type JournalMode string

const (
	JournalDelete   JournalMode = "DELETE"
	JournalTruncate JournalMode = "TRUNCATE"
	JournalPersist  JournalMode = "PERSIST"
	JournalMemory   JournalMode = "MEMORY"
	JournalWAL      JournalMode = "WAL"
	JournalOff      JournalMode = "OFF"
)

type Synchronous string

const (
	SyncOff    Synchronous = "OFF"
	SyncNormal Synchronous = "NORMAL"
	SyncFull   Synchronous = "FULL"
	SyncExtra  Synchronous = "EXTRA"
)

type TempStore string

const (
	TempStoreDefault TempStore = "DEFAULT"
	TempStoreFile    TempStore = "FILE"
	TempStoreMemory  TempStore = "MEMORY"
)

type LockingMode string

const (
	LockingNormal    LockingMode = "NORMAL"
	LockingExclusive LockingMode = "EXCLUSIVE"
)

type AutoVacuum string

const (
	AutoVacuumNone        AutoVacuum = "NONE"
	AutoVacuumFull        AutoVacuum = "FULL"
	AutoVacuumIncremental AutoVacuum = "INCREMENTAL"
)

// Config selects the database file and its durability pragmas.
type Config struct {
	BaseDir     string
	Name        string
	JournalMode JournalMode
	Synchronous Synchronous
	TempStore   TempStore
	LockingMode LockingMode
	AutoVacuum  AutoVacuum
	PageSize    int
	CacheSize   int
	MmapSize    int64
	BusyTimeout time.Duration
}

// DefaultConfig returns the documented defaults rooted at baseDir.
func DefaultConfig(baseDir string) Config {
	return Config{
		BaseDir:     baseDir,
		Name:        DefaultName,
		JournalMode: JournalWAL,
		Synchronous: SyncNormal,
		TempStore:   TempStoreMemory,
		LockingMode: LockingNormal,
		AutoVacuum:  AutoVacuumNone,
		PageSize:    DefaultPageSize,
		CacheSize:   DefaultCacheSize,
		MmapSize:    DefaultMmapSize,
		BusyTimeout: DefaultBusyTimeout,
	}
}

// withDefaults fills zero values from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig(c.BaseDir)
	if c.Name == "" {
		c.Name = d.Name
	}
	if c.JournalMode == "" {
		c.JournalMode = d.JournalMode
	}
	if c.Synchronous == "" {
		c.Synchronous = d.Synchronous
	}
	if c.TempStore == "" {
		c.TempStore = d.TempStore
	}
	if c.LockingMode == "" {
		c.LockingMode = d.LockingMode
	}
	if c.AutoVacuum == "" {
		c.AutoVacuum = d.AutoVacuum
	}
	if c.PageSize == 0 {
		c.PageSize = d.PageSize
	}
	if c.CacheSize == 0 {
		c.CacheSize = d.CacheSize
	}
	if c.MmapSize == 0 {
		c.MmapSize = d.MmapSize
	}
	if c.BusyTimeout == 0 {
		c.BusyTimeout = d.BusyTimeout
	}
	return c
}

// Validate rejects values outside the engine's accepted sets.
func (c Config) Validate() error {
	switch c.JournalMode {
	case JournalDelete, JournalTruncate, JournalPersist, JournalMemory, JournalWAL, JournalOff:
	default:
		return fmt.Errorf("invalid journal mode %q", c.JournalMode)
	}
	switch c.Synchronous {
	case SyncOff, SyncNormal, SyncFull, SyncExtra:
	default:
		return fmt.Errorf("invalid synchronous level %q", c.Synchronous)
	}
	switch c.TempStore {
	case TempStoreDefault, TempStoreFile, TempStoreMemory:
	default:
		return fmt.Errorf("invalid temp store %q", c.TempStore)
	}
	switch c.LockingMode {
	case LockingNormal, LockingExclusive:
	default:
		return fmt.Errorf("invalid locking mode %q", c.LockingMode)
	}
	switch c.AutoVacuum {
	case AutoVacuumNone, AutoVacuumFull, AutoVacuumIncremental:
	default:
		return fmt.Errorf("invalid auto vacuum mode %q", c.AutoVacuum)
	}
	if c.PageSize < 512 || c.PageSize > 65536 || c.PageSize&(c.PageSize-1) != 0 {
		return fmt.Errorf("page size %d must be a power of two between 512 and 65536", c.PageSize)
	}
	if c.MmapSize < 0 {
		return fmt.Errorf("mmap size cannot be negative")
	}
	if c.BusyTimeout < 0 {
		return fmt.Errorf("busy timeout cannot be negative")
	}
	return nil
}

// pragmas returns the configuration batch applied once at initialization.
// page_size and auto_vacuum only take effect before the first table exists,
// so they run ahead of the journal switch.
func (c Config) pragmas() []string {
	return []string{
		fmt.Sprintf("PRAGMA busy_timeout=%d", c.BusyTimeout.Milliseconds()),
		fmt.Sprintf("PRAGMA page_size=%d", c.PageSize),
		fmt.Sprintf("PRAGMA auto_vacuum=%s", c.AutoVacuum),
		fmt.Sprintf("PRAGMA journal_mode=%s", c.JournalMode),
		fmt.Sprintf("PRAGMA synchronous=%s", c.Synchronous),
		fmt.Sprintf("PRAGMA temp_store=%s", c.TempStore),
		fmt.Sprintf("PRAGMA locking_mode=%s", c.LockingMode),
		fmt.Sprintf("PRAGMA cache_size=%d", c.CacheSize),
		fmt.Sprintf("PRAGMA mmap_size=%d", c.MmapSize),
	}
}
