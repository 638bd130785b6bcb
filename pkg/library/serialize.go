package library

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ulikunitz/xz"
	"github.com/zeebo/blake3"
)

// encodeValue marshals v to JSON and compresses it with xz. The digest is
// the BLAKE3 hash of the uncompressed JSON, so it only changes when the
// content does.
func encodeValue(v any) (blob []byte, digest string, err error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal value: %w", err)
	}
	sum := blake3.Sum256(data)

	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create xz writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, "", fmt.Errorf("failed to compress value: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to compress value: %w", err)
	}
	return buf.Bytes(), hex.EncodeToString(sum[:]), nil
}

// decodeValue reverses encodeValue into v.
func decodeValue(blob []byte, v any) error {
	if len(blob) == 0 {
		return fmt.Errorf("empty data")
	}
	r, err := xz.NewReader(bytes.NewReader(blob))
	if err != nil {
		return fmt.Errorf("failed to open xz stream: %w", err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to decompress value: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal value: %w", err)
	}
	return nil
}

// Digest returns the BLAKE3 digest a value would be stored under.
func Digest(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal value: %w", err)
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
