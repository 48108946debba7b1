package database

import (
	"fmt"
	"net/url"
	"strings"
)

// buildConnectionString generates a modernc.org/sqlite DSN from options.
// URI parameters understood by SQLite itself (mode, cache, immutable) are passed as is,
// everything else becomes a _pragma parameter applied on each new connection.
func (opts *SQLiteOptions) buildConnectionString() string {
	params := url.Values{}

	if opts.Mode != "" {
		params.Set("mode", opts.Mode)
	}
	if opts.Cache != "" {
		params.Set("cache", string(opts.Cache))
	}
	if opts.Immutable {
		params.Set("immutable", "1")
	}
	if opts.TxLock != "" {
		params.Set("_txlock", string(opts.TxLock))
	}

	// busy_timeout goes first so the remaining pragmas wait on a locked database
	if opts.BusyTimeout > 0 {
		params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", opts.BusyTimeout))
	}
	if opts.Journal != "" {
		params.Add("_pragma", fmt.Sprintf("journal_mode(%s)", opts.Journal))
	}
	params.Add("_pragma", fmt.Sprintf("foreign_keys(%d)", boolToInt(opts.ForeignKeys)))
	if opts.Synchronous != "" {
		params.Add("_pragma", fmt.Sprintf("synchronous(%s)", opts.Synchronous))
	}
	if opts.CacheSize != 0 {
		params.Add("_pragma", fmt.Sprintf("cache_size(%d)", opts.CacheSize))
	}
	if opts.LockingMode != "" {
		params.Add("_pragma", fmt.Sprintf("locking_mode(%s)", opts.LockingMode))
	}
	if opts.AutoVacuum != "" {
		params.Add("_pragma", fmt.Sprintf("auto_vacuum(%s)", opts.AutoVacuum))
	}
	if opts.RecursiveTriggers {
		params.Add("_pragma", "recursive_triggers(1)")
	}
	if opts.SecureDelete != "" {
		params.Add("_pragma", fmt.Sprintf("secure_delete(%s)", opts.SecureDelete))
	}
	if opts.QueryOnly {
		params.Add("_pragma", "query_only(1)")
	}

	// Build the final connection string
	connStr := opts.Path
	if !strings.HasPrefix(connStr, "file:") {
		connStr = "file:" + connStr
	}
	if encoded := params.Encode(); encoded != "" {
		connStr += "?" + encoded
	}

	return connStr
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
