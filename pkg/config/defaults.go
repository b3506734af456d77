package config

// Store defaults.
const (
	DefaultStoreDSN = "blockaudit.db"
)

// Cursor backends.
const (
	CursorBackendFile   = "file"
	CursorBackendSQLite = "sqlite"
)

// Cursor defaults. An empty directory resolves to the per-user default.
const (
	DefaultCursorBackend = CursorBackendFile
	DefaultCursorDir     = ""
)

// Scan defaults.
const (
	DefaultScanBatchSize     = 100
	DefaultScanDefaultStatus = "publish"
)

// DefaultExcludedCategories returns the categories left out of the effective
// query when no category filter is given.
func DefaultExcludedCategories() []string {
	return []string{"revision"}
}

// Logging formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Logging defaults.
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = LogFormatText
)
