package delta

import (
	"encoding/binary"

	"miniblob/pkg/helper/errors"
)

const (
	opCopy   byte = 0
	opInsert byte = 1
)

// DefaultMinMatchLength is the minimum run length the encoder will emit as a
// COPY instead of folding it into a literal INSERT.
const DefaultMinMatchLength = 8

// Options configures the encoder's heuristic matcher.
type Options struct {
	// MinMatchLength is the shortest match the encoder will emit as a COPY.
	// Zero or negative falls back to DefaultMinMatchLength.
	MinMatchLength int
}

// DefaultOptions returns the encoder defaults.
func DefaultOptions() Options {
	return Options{MinMatchLength: DefaultMinMatchLength}
}

// Encode produces a delta that decodes original into newData using the
// default matcher options.
func Encode(original, newData []byte) []byte {
	return EncodeWithOptions(original, newData, DefaultOptions())
}

// EncodeWithOptions is Encode with an explicit matcher configuration.
func EncodeWithOptions(original, newData []byte, opts Options) []byte {
	minMatch := opts.MinMatchLength
	if minMatch <= 0 {
		minMatch = DefaultMinMatchLength
	}

	m := newMatcher(original, minMatch)

	var out []byte
	literalStart := -1

	flushLiteral := func(end int) {
		if literalStart < 0 {
			return
		}
		out = appendInsert(out, newData[literalStart:end])
		literalStart = -1
	}

	i := 0
	for i < len(newData) {
		pos, length := m.longestMatch(newData, i)
		if length >= minMatch {
			flushLiteral(i)
			out = appendCopy(out, pos, length)
			i += length
			continue
		}

		if literalStart < 0 {
			literalStart = i
		}
		i++
	}
	flushLiteral(len(newData))

	return out
}

// Decode applies delta to original, reproducing the encoder's newData
// bit-exactly. It is a pure function: the same (original, delta) pair always
// yields the same output or the same error.
func Decode(original, delta []byte) ([]byte, error) {
	var out []byte

	i := 0
	for i < len(delta) {
		op := delta[i]
		i++

		switch op {
		case opCopy:
			if i+8 > len(delta) {
				return nil, errors.CorruptDeltaf("delta ends mid-COPY operation")
			}
			offset := binary.LittleEndian.Uint32(delta[i : i+4])
			length := binary.LittleEndian.Uint32(delta[i+4 : i+8])
			i += 8

			end := uint64(offset) + uint64(length)
			if end > uint64(len(original)) {
				return nil, errors.CorruptDeltaf("COPY[%d:%d] exceeds original length %d", offset, end, len(original))
			}
			out = append(out, original[offset:end]...)

		case opInsert:
			if i+4 > len(delta) {
				return nil, errors.CorruptDeltaf("delta ends mid-INSERT operation")
			}
			length := binary.LittleEndian.Uint32(delta[i : i+4])
			i += 4

			if uint64(i)+uint64(length) > uint64(len(delta)) {
				return nil, errors.CorruptDeltaf("INSERT length %d exceeds remaining delta bytes", length)
			}
			out = append(out, delta[i:i+int(length)]...)
			i += int(length)

		default:
			return nil, errors.CorruptDeltaf("unknown delta opcode %d", op)
		}
	}

	return out, nil
}

func appendCopy(out []byte, pos, length int) []byte {
	out = append(out, opCopy)
	out = appendU32(out, uint32(pos))
	out = appendU32(out, uint32(length))
	return out
}

func appendInsert(out []byte, literal []byte) []byte {
	out = append(out, opInsert)
	out = appendU32(out, uint32(len(literal)))
	out = append(out, literal...)
	return out
}

func appendU32(out []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(out, b[:]...)
}
