// Package chainadapter is the thin façade over the blockchain client named
// in spec.md §4.5. It is deliberately a narrow interface: the blockchain
// client itself is out of scope (spec.md §1), so this package only exposes
// exactly the operations the pipeline worker and issuers call, plus an
// implementation that speaks to a node over JSON-RPC using
// github.com/ethereum/go-ethereum/rpc — the same transport go-ethereum's own
// ethclient uses, which keeps the registrar's "chain client" dependency-free
// of any particular consensus implementation.
package chainadapter

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"

	"synnergy-registrar/internal/keys"
	"synnergy-registrar/internal/regerrors"
)

// NameRecord is the on-chain record for a registered name, per spec.md §3/§4.5.
type NameRecord struct {
	Address   string `json:"address"`
	ValueHash string `json:"value_hash"`
}

// Client is the chain adapter surface consumed by issuers and the worker.
// Every method maps 1:1 onto an operation named in spec.md §4.5.
type Client interface {
	IsNameRegistered(ctx context.Context, fqu string) (bool, error)
	GetNameRecord(ctx context.Context, fqu string) (NameRecord, error)
	IsZonefileHashCurrent(ctx context.Context, fqu, hash string) (bool, error)
	Confirmations(ctx context.Context, txHash string) (int, error)
	BlockHeight(ctx context.Context) (int64, error)

	BroadcastPreorder(ctx context.Context, fqu string, costSats int64, payment, owner keys.KeyInfo, minConfs int) (txHash string, err error)
	BroadcastRegister(ctx context.Context, fqu string, payment, owner keys.KeyInfo, nameData []byte) (txHash string, err error)
	BroadcastUpdate(ctx context.Context, fqu, zoneHash string, owner, payment keys.KeyInfo) (txHash string, err error)
	BroadcastTransfer(ctx context.Context, fqu, newAddr string, owner, payment keys.KeyInfo) (txHash string, err error)
	BroadcastRenew(ctx context.Context, fqu string, feeSats int64, owner, payment keys.KeyInfo) (txHash string, err error)
	BroadcastRevoke(ctx context.Context, fqu string, owner, payment keys.KeyInfo) (txHash string, err error)
}

// RPCClient implements Client by calling a remote chain node's JSON-RPC
// surface under a "registrar_" namespace. The blockchain client itself
// (consensus rules, mempool, mining) is an external collaborator per
// spec.md §1; this is only the wire adapter to it.
type RPCClient struct {
	rpc *rpc.Client
}

// Dial connects to a chain node's JSON-RPC endpoint (e.g. "http://host:port"
// or a unix socket path, anything rpc.DialContext accepts).
func Dial(ctx context.Context, endpoint string) (*RPCClient, error) {
	c, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", regerrors.ErrTransientChain, endpoint, err)
	}
	return &RPCClient{rpc: c}, nil
}

func (c *RPCClient) call(ctx context.Context, out interface{}, method string, args ...interface{}) error {
	if err := c.rpc.CallContext(ctx, out, method, args...); err != nil {
		return fmt.Errorf("%w: %s: %v", regerrors.ErrTransientChain, method, err)
	}
	return nil
}

func (c *RPCClient) IsNameRegistered(ctx context.Context, fqu string) (bool, error) {
	var out bool
	err := c.call(ctx, &out, "registrar_isNameRegistered", fqu)
	return out, err
}

func (c *RPCClient) GetNameRecord(ctx context.Context, fqu string) (NameRecord, error) {
	var out NameRecord
	err := c.call(ctx, &out, "registrar_getNameRecord", fqu)
	return out, err
}

func (c *RPCClient) IsZonefileHashCurrent(ctx context.Context, fqu, hash string) (bool, error) {
	var out bool
	err := c.call(ctx, &out, "registrar_isZonefileHashCurrent", fqu, hash)
	return out, err
}

func (c *RPCClient) Confirmations(ctx context.Context, txHash string) (int, error) {
	var out int
	err := c.call(ctx, &out, "registrar_confirmations", txHash)
	return out, err
}

func (c *RPCClient) BlockHeight(ctx context.Context) (int64, error) {
	var out int64
	err := c.call(ctx, &out, "registrar_blockHeight")
	return out, err
}

func (c *RPCClient) BroadcastPreorder(ctx context.Context, fqu string, costSats int64, payment, owner keys.KeyInfo, minConfs int) (string, error) {
	var out string
	err := c.call(ctx, &out, "registrar_broadcastPreorder", fqu, costSats, payment, owner, minConfs)
	return out, wrapBroadcast(err)
}

func (c *RPCClient) BroadcastRegister(ctx context.Context, fqu string, payment, owner keys.KeyInfo, nameData []byte) (string, error) {
	var out string
	err := c.call(ctx, &out, "registrar_broadcastRegister", fqu, payment, owner, nameData)
	return out, wrapBroadcast(err)
}

func (c *RPCClient) BroadcastUpdate(ctx context.Context, fqu, zoneHash string, owner, payment keys.KeyInfo) (string, error) {
	var out string
	err := c.call(ctx, &out, "registrar_broadcastUpdate", fqu, zoneHash, owner, payment)
	return out, wrapBroadcast(err)
}

func (c *RPCClient) BroadcastTransfer(ctx context.Context, fqu, newAddr string, owner, payment keys.KeyInfo) (string, error) {
	var out string
	err := c.call(ctx, &out, "registrar_broadcastTransfer", fqu, newAddr, owner, payment)
	return out, wrapBroadcast(err)
}

func (c *RPCClient) BroadcastRenew(ctx context.Context, fqu string, feeSats int64, owner, payment keys.KeyInfo) (string, error) {
	var out string
	err := c.call(ctx, &out, "registrar_broadcastRenew", fqu, feeSats, owner, payment)
	return out, wrapBroadcast(err)
}

func (c *RPCClient) BroadcastRevoke(ctx context.Context, fqu string, owner, payment keys.KeyInfo) (string, error) {
	var out string
	err := c.call(ctx, &out, "registrar_broadcastRevoke", fqu, owner, payment)
	return out, wrapBroadcast(err)
}

func wrapBroadcast(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", regerrors.ErrBroadcastFailed, err)
}

// Close releases the underlying RPC connection.
func (c *RPCClient) Close() { c.rpc.Close() }

var _ Client = (*RPCClient)(nil)
