// Package glimpse contains the version number and shared defaults of Glimpse.
package glimpse

import "time"

// Version is the current version of Glimpse.
//
// This variable is set at build time using the -X linker flag. If not set,
// it defaults to "devel".
var Version = "devel"

// BasePrefix is a global prefix for all Glimpse endpoints. Set from the
// command line flag or options at startup.
var BasePrefix = ""

// APIPrefix is the path prefix for all challenge API calls.
const APIPrefix = "/api/"

// Default time-to-live values per challenge kind. Drawing challenges get a
// longer window so that the user has time to upload an image.
const (
	DefaultFlashLagTTL = 20 * time.Second
	DefaultIllusionTTL = 20 * time.Second
	DefaultDrawingTTL  = 2 * time.Minute
)

// MaxDifficulty is the highest difficulty level a client can reach.
const MaxDifficulty = 4

// DefaultInactivityWindow is how long a client must be idle before its
// history is reset.
const DefaultInactivityWindow = 24 * time.Hour

// Flash-lag presentation defaults.
const (
	DefaultGridSize      = 3
	DefaultFrameBaseMS   = 400
	DefaultFrameStepMS   = 50
	DefaultFrameFloorMS  = 200
	DefaultMaxUploadSize = 2 << 20
)

// PassTokenExpiration is how long a pass token minted after a successful
// validation stays valid.
const PassTokenExpiration = 30 * time.Minute
