// Copyright 2025 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package nvs

import "sync"

// memStore keeps namespaces in memory. Useful in tests and on boards
// without persistent storage.
type memStore struct {
	mu sync.Mutex
	ns map[string]*memNamespace
}

// NewMem returns an in-memory Store.
func NewMem() Store {
	return &memStore{ns: map[string]*memNamespace{}}
}

func (s *memStore) Open(name string) (Namespace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.ns[name]; ok {
		return n, nil
	}
	n := &memNamespace{
		str:  map[string]string{},
		num:  map[string]int64{},
		blob: map[string][]byte{},
	}
	s.ns[name] = n
	return n, nil
}

type memNamespace struct {
	mu   sync.Mutex
	str  map[string]string
	num  map[string]int64
	blob map[string][]byte
}

func (n *memNamespace) GetString(key string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	v, ok := n.str[key]
	if !ok {
		return "", ErrNoKey
	}
	return v, nil
}

func (n *memNamespace) SetString(key, value string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.str[key] = value
	return nil
}

func (n *memNamespace) getInt(key string) (int64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	v, ok := n.num[key]
	if !ok {
		return 0, ErrNoKey
	}
	return v, nil
}

func (n *memNamespace) setInt(key string, value int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.num[key] = value
	return nil
}

func (n *memNamespace) GetU8(key string) (uint8, error) {
	v, err := n.getInt(key)
	return uint8(v), err
}

func (n *memNamespace) SetU8(key string, value uint8) error {
	return n.setInt(key, int64(value))
}

func (n *memNamespace) GetI32(key string) (int32, error) {
	v, err := n.getInt(key)
	return int32(v), err
}

func (n *memNamespace) SetI32(key string, value int32) error {
	return n.setInt(key, int64(value))
}

func (n *memNamespace) GetI64(key string) (int64, error) {
	return n.getInt(key)
}

func (n *memNamespace) SetI64(key string, value int64) error {
	return n.setInt(key, value)
}

func (n *memNamespace) GetBlob(key string) ([]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	v, ok := n.blob[key]
	if !ok {
		return nil, ErrNoKey
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (n *memNamespace) SetBlob(key string, value []byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	n.blob[key] = v
	return nil
}

func (n *memNamespace) Erase(key string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.str, key)
	delete(n.num, key)
	delete(n.blob, key)
	return nil
}

func (n *memNamespace) EraseAll() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.str = map[string]string{}
	n.num = map[string]int64{}
	n.blob = map[string][]byte{}
	return nil
}
