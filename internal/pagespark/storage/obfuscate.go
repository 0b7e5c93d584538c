package storage

import (
	"encoding/base64"
	"fmt"
)

// obfuscationKey keys the XOR transform. It is compiled into every client, so
// obfuscated values only resist casual inspection; they are not encrypted.
const obfuscationKey = "page_spark_secret_key_2026"

// Obfuscate XORs the UTF-8 bytes of text with the embedded key and encodes the
// result as standard base64. Operating on bytes keeps multi-byte characters
// intact through the round trip.
func Obfuscate(text string) string {
	if text == "" {
		return ""
	}
	return base64.StdEncoding.EncodeToString(xorKey([]byte(text)))
}

// Deobfuscate reverses Obfuscate.
func Deobfuscate(encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("storage: decode obfuscated value: %w", err)
	}
	return string(xorKey(raw)), nil
}

func xorKey(data []byte) []byte {
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ obfuscationKey[i%len(obfuscationKey)]
	}
	return out
}
