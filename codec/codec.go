// Package codec centralizes the JSON encoding of id mappings, vector dumps and
// embedding API bodies.
//
// Both codecs leave HTML-sensitive characters unescaped, so chunk text in
// id_mapping.json reads the same as the source document.
package codec

// Codec encodes and decodes the JSON blobs of a build. Implementations are
// safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// ByName resolves the codec named in configuration: "json" or "go-json".
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "go-json":
		return GoJSON{}, true
	default:
		return nil, false
	}
}
