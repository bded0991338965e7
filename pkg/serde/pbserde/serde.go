// Package pbserde adapts protobuf messages to the snapshot record codec.
package pbserde

import (
	"google.golang.org/protobuf/proto"
)

// Serde round-trips protobuf message records. newMessage must return a
// fresh message for every decoded record.
type Serde[M proto.Message] struct {
	newMessage func() M
}

func New[M proto.Message](newMessage func() M) Serde[M] {
	return Serde[M]{newMessage: newMessage}
}

func (s Serde[M]) Serialize(record M) ([]byte, error) {
	return proto.Marshal(record)
}

func (s Serde[M]) Deserialize(data []byte) (M, error) {
	record := s.newMessage()
	if err := proto.Unmarshal(data, record); err != nil {
		var zero M
		return zero, err
	}
	return record, nil
}
