package bsontype

import (
	"encoding/hex"

	"github.com/google/uuid"
)

// ObjectID is the 12-byte document identifier variant. Real drivers derive
// it from a timestamp + machine/process/counter triple; this implementation
// derives it from a random UUIDv4, which keeps the same uniqueness guarantee
// without pulling in the wire-format codec's own ObjectID type (see
// DESIGN.md's note on keeping the document model independent of the driver
// codec).
type ObjectID [12]byte

// NewObjectID generates a fresh, effectively-unique ObjectID.
func NewObjectID() ObjectID {
	u := uuid.New()
	var id ObjectID
	copy(id[:], u[:12])
	return id
}

// Hex renders the canonical 24-character lowercase hex form.
func (id ObjectID) Hex() string {
	return hex.EncodeToString(id[:])
}

// ObjectIDFromHex parses a 24-character hex string back into an ObjectID.
func ObjectIDFromHex(s string) (ObjectID, bool) {
	var id ObjectID
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 12 {
		return id, false
	}
	copy(id[:], b)
	return id, true
}
