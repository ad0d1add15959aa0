package resultstore

import (
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Blob columns hold zstd-compressed JSON. JSON map keys marshal in
// sorted order, so the encoding is deterministic and round-trips
// exactly.

var (
	blobEncoder *zstd.Encoder
	blobDecoder *zstd.Decoder
)

func init() {
	var err error
	blobEncoder, err = zstd.NewWriter(nil)
	if err != nil {
		panic(fmt.Errorf("failed to create zstd encoder: %w", err))
	}
	blobDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic(fmt.Errorf("failed to create zstd decoder: %w", err))
	}
}

func encodeBlob(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode blob: %w", err)
	}
	return blobEncoder.EncodeAll(raw, nil), nil
}

func decodeBlob(data []byte, v any) error {
	raw, err := blobDecoder.DecodeAll(data, nil)
	if err != nil {
		return fmt.Errorf("failed to decompress blob: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode blob: %w", err)
	}
	return nil
}
