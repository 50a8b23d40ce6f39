package duet

import _ "embed"

// StarterConfig is the annotated persona file written by `duet init`.
//
//go:embed config/duet.yaml
var StarterConfig []byte
