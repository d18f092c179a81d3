// Package all registers every store backend so that configuration
// validation can resolve any backend name.
package all

import (
	_ "github.com/TecharoHQ/glimpse/lib/store/bbolt"
	_ "github.com/TecharoHQ/glimpse/lib/store/memory"
	_ "github.com/TecharoHQ/glimpse/lib/store/valkey"
)
