package database

// SynchronousMode represents the available synchronous settings for SQLite
type SynchronousMode string

const (
	SynchronousOff    SynchronousMode = "OFF"
	SynchronousNormal SynchronousMode = "NORMAL"
	SynchronousFull   SynchronousMode = "FULL"
	SynchronousExtra  SynchronousMode = "EXTRA"
)

// JournalMode represents the available journal modes for SQLite
type JournalMode string

const (
	JournalDelete   JournalMode = "DELETE"
	JournalTruncate JournalMode = "TRUNCATE"
	JournalPersist  JournalMode = "PERSIST"
	JournalMemory   JournalMode = "MEMORY"
	JournalWAL      JournalMode = "WAL"
	JournalOff      JournalMode = "OFF"
)

// LockingMode represents the available locking modes for SQLite
type LockingMode string

const (
	LockingNormal    LockingMode = "NORMAL"
	LockingExclusive LockingMode = "EXCLUSIVE"
)

// CacheMode represents the available cache modes for SQLite
type CacheMode string

const (
	CacheShared  CacheMode = "shared"
	CachePrivate CacheMode = "private"
)

// TxLock is the lock taken by BEGIN
type TxLock string

const (
	TxLockDeferred  TxLock = "deferred"
	TxLockImmediate TxLock = "immediate"
	TxLockExclusive TxLock = "exclusive"
)

// SQLiteOptions contains configuration options for SQLite connection.
// Pragmas are passed through the DSN so every pooled connection gets them.
type SQLiteOptions struct {
	// Path to the SQLite database file
	Path string

	// Core Options
	Mode        string          // ro, rw, rwc, memory
	Journal     JournalMode     // journal_mode
	ForeignKeys bool            // foreign_keys
	BusyTimeout int             // busy_timeout (milliseconds)
	CacheSize   int             // cache_size (in KB when negative per SQLite, pages when positive)
	Synchronous SynchronousMode // synchronous
	Cache       CacheMode       // shared, private
	Immutable   bool            // immutable

	// Transaction & Locking
	LockingMode LockingMode // locking_mode
	TxLock      TxLock      // _txlock

	// Advanced Options
	AutoVacuum        string // auto_vacuum: none, full, incremental
	RecursiveTriggers bool   // recursive_triggers
	SecureDelete      string // secure_delete: boolean or "FAST"
	QueryOnly         bool   // query_only
}

// NewDefaultOptions creates SQLiteOptions with recommended defaults
func NewDefaultOptions(path string) SQLiteOptions {
	return SQLiteOptions{
		Path:        path,
		Mode:        "rwc",
		Journal:     JournalWAL, // WAL lets the status API read while the gate writes
		ForeignKeys: true,
		BusyTimeout: 5000,
		CacheSize:   2000,
		Synchronous: SynchronousNormal,
		Cache:       CachePrivate,
		TxLock:      TxLockImmediate,
	}
}
