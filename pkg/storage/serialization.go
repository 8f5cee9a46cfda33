// Package storage - value serialization for BadgerDB.
package storage

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Serialized values are framed so the on-disk format can evolve:
// 4-byte magic, 1-byte version, 1-byte codec ID, then the payload.
const (
	serializationMagic   = "\xffVDB"
	serializationVersion = byte(1)
	codecIDMsgpack       = byte(1)
)

func encodeNode(node *Node) ([]byte, error) {
	payload, err := msgpack.Marshal(node)
	if err != nil {
		return nil, fmt.Errorf("failed to encode node %s: %w", node.ID, err)
	}
	out := make([]byte, 0, len(serializationMagic)+2+len(payload))
	out = append(out, serializationMagic...)
	out = append(out, serializationVersion, codecIDMsgpack)
	out = append(out, payload...)
	return out, nil
}

func decodeNode(data []byte) (*Node, error) {
	payload, err := unframe(data)
	if err != nil {
		return nil, err
	}
	var node Node
	if err := msgpack.Unmarshal(payload, &node); err != nil {
		return nil, fmt.Errorf("failed to decode node: %w", err)
	}
	return &node, nil
}

func unframe(data []byte) ([]byte, error) {
	headerLen := len(serializationMagic) + 2
	if len(data) < headerLen || string(data[:len(serializationMagic)]) != serializationMagic {
		return nil, fmt.Errorf("unrecognized storage record header")
	}
	version := data[len(serializationMagic)]
	if version != serializationVersion {
		return nil, fmt.Errorf("unsupported storage record version: %d", version)
	}
	codec := data[len(serializationMagic)+1]
	if codec != codecIDMsgpack {
		return nil, fmt.Errorf("unsupported storage codec id: %d", codec)
	}
	return data[headerLen:], nil
}
