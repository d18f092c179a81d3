// Package data holds files embedded into the Glimpse binary.
package data

import "embed"

var (
	// DefaultPolicy is the engine policy used when no -policy-fname is given.
	//go:embed glimpse.yaml
	DefaultPolicy embed.FS
)
