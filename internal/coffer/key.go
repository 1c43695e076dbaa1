package coffer

import "github.com/fxamacker/cbor/v2"

// Key addresses a single value by (shard, key). Shard is the hex encoding
// of a client's public key, compared case-insensitively after normalizing
// to lower case.
type Key struct {
	Shard string
	Key   string
}

func (k Key) normalized() Key {
	return Key{Shard: normalizeShard(k.Shard), Key: k.Key}
}

// Pair is one (key, value) entry of a shard. It encodes to CBOR as a
// two-element array, [key, value], so a shard's wire form is an ordered
// array of pairs rather than an unordered map.
type Pair struct {
	_     struct{} `cbor:",toarray"`
	Key   string
	Value Value
}

// Shard is an ordered sequence of (key, value) pairs representing one
// client's bundle at serialization time.
type Shard struct {
	pairs []Pair
}

// Pairs returns the shard's entries in their snapshot order.
func (s Shard) Pairs() []Pair {
	return s.pairs
}

// MarshalCBOR implements cbor.Marshaler.
func (s Shard) MarshalCBOR() ([]byte, error) {
	if s.pairs == nil {
		return cbor.Marshal([]Pair{})
	}
	return cbor.Marshal(s.pairs)
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (s *Shard) UnmarshalCBOR(data []byte) error {
	var pairs []Pair
	if err := cbor.Unmarshal(data, &pairs); err != nil {
		return err
	}
	s.pairs = pairs
	return nil
}
