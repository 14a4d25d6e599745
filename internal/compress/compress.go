// Package compress holds the codecs for compressed BinaryMetadata payloads.
package compress

// Codec encodes and decodes payloads.
type Codec interface {
	Encode(data []byte) ([]byte, error)
	Decode(data []byte) ([]byte, error)
}
