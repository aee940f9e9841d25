package vectors

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/deidaraiorek/spidey/internal/core"
)

// Version tags the encoded layout:
//
//	[version u8][dim u32][nnz u32] then nnz times [index u32][float64 bits u64]
//
// little-endian, zero components omitted.
const Version byte = 1

const headerSize = 1 + 4 + 4

func Encode(v Vector) []byte {
	nnz := 0
	for _, x := range v {
		if x != 0 {
			nnz++
		}
	}

	buf := make([]byte, headerSize, headerSize+nnz*12)
	buf[0] = Version
	binary.LittleEndian.PutUint32(buf[1:], uint32(len(v)))
	binary.LittleEndian.PutUint32(buf[5:], uint32(nnz))
	for i, x := range v {
		if x == 0 {
			continue
		}
		buf = binary.LittleEndian.AppendUint32(buf, uint32(i))
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(x))
	}
	return buf
}

// Decode restores a vector encoded for a dictionary of dim terms. A vector
// encoded under a different version or dimension returns core.ErrStaleVector.
func Decode(data []byte, dim int) (Vector, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("vector of %d bytes: %w", len(data), core.ErrDataIntegrity)
	}
	if data[0] != Version {
		return nil, fmt.Errorf("vector version %d, want %d: %w", data[0], Version, core.ErrStaleVector)
	}

	stored := int(binary.LittleEndian.Uint32(data[1:]))
	if stored != dim {
		return nil, fmt.Errorf("vector dimension %d, dictionary has %d terms: %w", stored, dim, core.ErrStaleVector)
	}

	nnz := int(binary.LittleEndian.Uint32(data[5:]))
	if len(data) != headerSize+nnz*12 {
		return nil, fmt.Errorf("vector body of %d bytes for %d entries: %w", len(data)-headerSize, nnz, core.ErrDataIntegrity)
	}

	v := make(Vector, dim)
	body := data[headerSize:]
	for k := 0; k < nnz; k++ {
		entry := body[k*12:]
		i := int(binary.LittleEndian.Uint32(entry))
		if i >= dim {
			return nil, fmt.Errorf("vector index %d out of range %d: %w", i, dim, core.ErrDataIntegrity)
		}
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(entry[4:]))
	}
	return v, nil
}
