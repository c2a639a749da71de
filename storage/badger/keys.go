package badger

import (
	"encoding/binary"

	"github.com/poiesic/glyph/core"
)

// Key prefixes for different data types
const (
	documentPrefix  = "d/"
	pathIndexPrefix = "p/"
	taskPrefix      = "t/"
	documentIDSeq   = "seq/document"
	taskIDSeq       = "seq/task"
)

// makeIDKey builds prefix + big-endian ID so that prefix iteration yields
// records in allocation order, which is creation order.
func makeIDKey(prefix string, id core.ID) []byte {
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

func makeDocumentKey(id core.ID) []byte {
	return makeIDKey(documentPrefix, id)
}

func makeTaskKey(id core.ID) []byte {
	return makeIDKey(taskPrefix, id)
}

// makePathKey generates a key for the path index.
// Format: prefix + absolute path
func makePathKey(path string) []byte {
	return []byte(pathIndexPrefix + path)
}
