package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// BlockMap is an id -> block mapping that remembers definition order.
// The first block of a survey depends on that order.
type BlockMap struct {
	keys   []string
	blocks map[string]*Block
}

// NewBlockMap builds a BlockMap from blocks in the given order
func NewBlockMap(blocks ...*Block) BlockMap {
	var m BlockMap
	for _, b := range blocks {
		m.Set(b.ID, b)
	}
	return m
}

// Set inserts or replaces a block. Replacing keeps the original position.
func (m *BlockMap) Set(id string, b *Block) {
	if m.blocks == nil {
		m.blocks = make(map[string]*Block)
	}
	if _, exists := m.blocks[id]; !exists {
		m.keys = append(m.keys, id)
	}
	if b.ID == "" {
		b.ID = id
	}
	m.blocks[id] = b
}

func (m BlockMap) Get(id string) (*Block, bool) {
	b, ok := m.blocks[id]
	return b, ok
}

// Keys returns block ids in definition order
func (m BlockMap) Keys() []string {
	return m.keys
}

func (m BlockMap) Len() int {
	return len(m.keys)
}

func (m *BlockMap) UnmarshalJSON(data []byte) error {
	*m = BlockMap{}
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("blocks must be an object keyed by block id")
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		id, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected block key %v", tok)
		}
		var b Block
		if err := dec.Decode(&b); err != nil {
			return fmt.Errorf("block %s: %w", id, err)
		}
		if b.ID == "" {
			b.ID = id
		}
		m.Set(id, &b)
	}
	_, err = dec.Token()
	return err
}

func (m BlockMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		block, err := json.Marshal(m.blocks[id])
		if err != nil {
			return nil, err
		}
		buf.Write(block)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
