package operation

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"

	"github.com/pixanchor/pixanchor/model/provenance"
)

const (

	// codes for special database markers

	codeImageSequence = 1 // id allocation of image records

	// codes for entities

	codeImage      = 10
	codeAuditEntry = 11

	// codes for indexes

	codeFingerprintIndex = 20 // fingerprint -> image id, unique
)

// SequenceKey is the key of the badger sequence that allocates image ids.
func SequenceKey() []byte {
	return makePrefix(codeImageSequence)
}

func makePrefix(code byte, keys ...interface{}) []byte {
	prefix := make([]byte, 1)
	prefix[0] = code
	for _, key := range keys {
		prefix = append(prefix, b(key)...)
	}
	return prefix
}

func b(v interface{}) []byte {
	switch i := v.(type) {
	case uint8:
		return []byte{i}
	case uint64:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, i)
		return b
	case provenance.ImageID:
		return b(uint64(i))
	case provenance.Fingerprint:
		return []byte(i)
	case uuid.UUID:
		return i[:]
	case []byte:
		return i
	default:
		panic(fmt.Sprintf("unsupported type to convert (%T)", v))
	}
}
