package store

import (
	"context"
	"sort"
	"sync"

	"github.com/Mindburn-Labs/shadowlock/pkg/receipts"
)

// MemoryReceiptStore keeps receipts for the life of the process.
type MemoryReceiptStore struct {
	mu       sync.RWMutex
	receipts map[string]*receipts.Receipt
}

func NewMemoryReceiptStore() *MemoryReceiptStore {
	return &MemoryReceiptStore{receipts: make(map[string]*receipts.Receipt)}
}

func (s *MemoryReceiptStore) Store(_ context.Context, r *receipts.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.receipts[r.ReceiptID]; ok {
		return nil
	}
	cp := *r
	s.receipts[r.ReceiptID] = &cp
	return nil
}

func (s *MemoryReceiptStore) Get(_ context.Context, receiptID string) (*receipts.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.receipts[receiptID]
	if !ok {
		return nil, ErrReceiptNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryReceiptStore) List(_ context.Context, limit int) ([]*receipts.Receipt, error) {
	s.mu.RLock()
	out := make([]*receipts.Receipt, 0, len(s.receipts))
	for _, r := range s.receipts {
		cp := *r
		out = append(out, &cp)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryReceiptStore) Close() error {
	return nil
}
