package operation

import (
	"github.com/golang/snappy"
	"github.com/vmihailenco/msgpack"

	"github.com/pixanchor/pixanchor/module/irrecoverable"
)

// Values are stored as snappy compressed msgpack.

// encodeEntity serializes the entity for storage.
// No errors are expected during normal operation.
func encodeEntity(entity interface{}) ([]byte, error) {
	raw, err := msgpack.Marshal(entity)
	if err != nil {
		return nil, irrecoverable.NewExceptionf("could not encode entity: %w", err)
	}
	return snappy.Encode(nil, raw), nil
}

// decodeValue decodes a stored value into the entity, which must be a
// pointer. A value that does not decode means the database is corrupt.
// No errors are expected during normal operation.
func decodeValue(val []byte, entity interface{}) error {
	raw, err := snappy.Decode(nil, val)
	if err != nil {
		return irrecoverable.NewExceptionf("could not uncompress value: %w", err)
	}
	err = msgpack.Unmarshal(raw, entity)
	if err != nil {
		return irrecoverable.NewExceptionf("could not decode entity: %w", err)
	}
	return nil
}
