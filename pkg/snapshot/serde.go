package snapshot

// Serializer encodes one record. Supplied by the state machine owner.
type Serializer[T any] interface {
	Serialize(record T) ([]byte, error)
}

// Deserializer decodes one record previously produced by the matching
// Serializer.
type Deserializer[T any] interface {
	Deserialize(data []byte) (T, error)
}

// Serde bundles both directions of a record codec.
type Serde[T any] interface {
	Serializer[T]
	Deserializer[T]
}

// StringSerde round-trips records as raw UTF-8 bytes.
type StringSerde struct{}

func (StringSerde) Serialize(record string) ([]byte, error) {
	return []byte(record), nil
}

func (StringSerde) Deserialize(data []byte) (string, error) {
	return string(data), nil
}
