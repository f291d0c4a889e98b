package sqlstore

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// SerializeFloat32 packs a vector as little-endian float32s, the layout used
// by sqlite-vec and libsql vector columns.
func SerializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// DeserializeFloat32 unpacks little-endian float32s.
func DeserializeFloat32(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of 4", len(buf))
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v, nil
}

// VectorText renders a vector as "[x,y,...]", the text form accepted by
// pgvector and libsql's vector32().
func VectorText(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// DecodeEmbedding reads a scanned embedding column: text is parsed as
// "[x,y,...]", bytes as packed float32s. NULL decodes to nil.
func DecodeEmbedding(raw any) ([]float32, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case string:
		return parseVectorText(v)
	case []byte:
		if len(v) == 0 {
			return nil, nil
		}
		return DeserializeFloat32(v)
	default:
		return nil, fmt.Errorf("unsupported embedding column type %T", raw)
	}
}

func parseVectorText(s string) ([]float32, error) {
	var v []float32
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, fmt.Errorf("parsing vector text: %w", err)
	}
	return v, nil
}
