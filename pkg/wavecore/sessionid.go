package wavecore

import (
	"crypto/md5"
	"encoding/json"

	"github.com/google/uuid"
)

// SessionParams is the subset of an encode/decode call's configuration
// that determines its session correlation ID: a deterministic stand-in
// for a trace ID, content-derived so the same call made twice (same
// dims, same transform, same targets) reports the same ID rather than
// a fresh random one. It is never written to the bitstream; its only
// purpose is tying together the log lines one encode/decode session
// emits.
type SessionParams struct {
	Dims      Dims
	Transform string
	Levels    int
	Quant     float64
	Budget    int
}

// SessionID derives a stable correlation UUID from params by hashing
// its canonical JSON encoding (md5-derived, content-addressed): never
// crypto/rand, so the same parameters always log under the same ID.
func SessionID(params SessionParams) string {
	raw, err := json.Marshal(params)
	if err != nil {
		return ""
	}
	sum := md5.Sum(raw)
	id, err := uuid.FromBytes(sum[:16])
	if err != nil {
		return ""
	}
	return id.String()
}
