package pagestore

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Encode serializes the stats snapshot as MessagePack. This is
// diagnostic data only; it is never read back into a live Store and has
// no bearing on page bytes, which stay opaque to this layer.
func (s Stats) Encode() ([]byte, error) {
	data, err := msgpack.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("pagestore: encode stats: %w", err)
	}
	return data, nil
}

// DecodeStats decodes a MessagePack-encoded Stats snapshot produced by
// Stats.Encode.
func DecodeStats(data []byte) (Stats, error) {
	var s Stats
	if err := msgpack.Unmarshal(data, &s); err != nil {
		return Stats{}, fmt.Errorf("pagestore: decode stats: %w", err)
	}
	return s, nil
}
