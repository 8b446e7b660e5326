package processor

import (
	"github.com/golang/snappy"
)

// CompressSnapshot compresses an encoded snapshot with snappy block format
func CompressSnapshot(data []byte) []byte {
	return snappy.Encode(nil, data)
}

// DecompressSnapshot reverses CompressSnapshot
func DecompressSnapshot(data []byte) ([]byte, error) {
	decompressed, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, err
	}
	return decompressed, nil
}
