// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

import "time"

// Upload constants
const (
	// MaxUploadSize is the maximum accepted image upload in bytes (20MB)
	MaxUploadSize = 20 << 20

	// MaxMultipartMemory is how much of a multipart form is kept in memory before spilling to disk
	MaxMultipartMemory = 8 << 20
)

// HTTP server constants
const (
	// RequestTimeout bounds a single API request, inference included
	RequestTimeout = 2 * time.Minute

	// ShutdownTimeout is how long serve waits for in-flight requests on shutdown
	ShutdownTimeout = 15 * time.Second
)

// Stats constants
const (
	// DefaultStatsWindowHours is the default look-back window for identification stats
	DefaultStatsWindowHours = 24

	// MaxStatsWindowHours caps the look-back window (90 days)
	MaxStatsWindowHours = 90 * 24

	// StatsCacheTTL is how long a computed stats response is reused
	StatsCacheTTL = 30 * time.Second
)

// Batch constants
const (
	// DefaultConcurrency is the default number of parallel workers for batch enrollment
	DefaultConcurrency = 4
)
