package chainadapter

import (
	"context"
	"fmt"
	"sync"

	"synnergy-registrar/internal/keys"
)

// MockClient is an in-memory Client double for issuer and worker tests. It
// has no notion of real consensus: registered names, confirmations and
// block height are whatever the test sets them to.
type MockClient struct {
	mu sync.Mutex

	Height      int64
	Registered  map[string]NameRecord
	Confirms    map[string]int
	CurrentHash map[string]string // fqu -> current on-chain value_hash

	txCounter int
	Broadcasts []string // recorded tx hashes, in call order

	// FailBroadcast, if set, is returned by every Broadcast* call.
	FailBroadcast error
}

// NewMockClient returns an empty MockClient ready for use.
func NewMockClient() *MockClient {
	return &MockClient{
		Registered:  make(map[string]NameRecord),
		Confirms:    make(map[string]int),
		CurrentHash: make(map[string]string),
	}
}

func (m *MockClient) nextTxHash() string {
	m.txCounter++
	return fmt.Sprintf("0xmocktx%04d", m.txCounter)
}

func (m *MockClient) IsNameRegistered(_ context.Context, fqu string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.Registered[fqu]
	return ok, nil
}

func (m *MockClient) GetNameRecord(_ context.Context, fqu string) (NameRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.Registered[fqu]
	if !ok {
		return NameRecord{}, fmt.Errorf("chainadapter: mock: %s not registered", fqu)
	}
	return rec, nil
}

func (m *MockClient) IsZonefileHashCurrent(_ context.Context, fqu, hash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CurrentHash[fqu] == hash, nil
}

func (m *MockClient) Confirmations(_ context.Context, txHash string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Confirms[txHash], nil
}

func (m *MockClient) BlockHeight(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Height, nil
}

func (m *MockClient) BroadcastPreorder(_ context.Context, fqu string, _ int64, _, _ keys.KeyInfo, _ int) (string, error) {
	return m.broadcast(fqu)
}

func (m *MockClient) BroadcastRegister(_ context.Context, fqu string, _, _ keys.KeyInfo, _ []byte) (string, error) {
	m.mu.Lock()
	if m.FailBroadcast == nil {
		m.Registered[fqu] = NameRecord{Address: "mock-owner"}
	}
	m.mu.Unlock()
	return m.broadcast(fqu)
}

func (m *MockClient) BroadcastUpdate(_ context.Context, fqu, zoneHash string, _, _ keys.KeyInfo) (string, error) {
	m.mu.Lock()
	if m.FailBroadcast == nil {
		m.CurrentHash[fqu] = zoneHash
	}
	m.mu.Unlock()
	return m.broadcast(fqu)
}

func (m *MockClient) BroadcastTransfer(_ context.Context, fqu, newAddr string, _, _ keys.KeyInfo) (string, error) {
	m.mu.Lock()
	if m.FailBroadcast == nil {
		if rec, ok := m.Registered[fqu]; ok {
			rec.Address = newAddr
			m.Registered[fqu] = rec
		}
	}
	m.mu.Unlock()
	return m.broadcast(fqu)
}

func (m *MockClient) BroadcastRenew(_ context.Context, fqu string, _ int64, _, _ keys.KeyInfo) (string, error) {
	return m.broadcast(fqu)
}

func (m *MockClient) BroadcastRevoke(_ context.Context, fqu string, _, _ keys.KeyInfo) (string, error) {
	m.mu.Lock()
	if m.FailBroadcast == nil {
		delete(m.Registered, fqu)
	}
	m.mu.Unlock()
	return m.broadcast(fqu)
}

func (m *MockClient) broadcast(fqu string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailBroadcast != nil {
		return "", m.FailBroadcast
	}
	tx := m.nextTxHash()
	m.Broadcasts = append(m.Broadcasts, tx)
	m.Confirms[tx] = 0
	return tx, nil
}

var _ Client = (*MockClient)(nil)
