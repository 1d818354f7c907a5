// Package issuer implements the six name-operation issuers named in
// spec.md §4.3, ported from registrar.py's preorder/register_preordered_name/
// update/transfer/renew/revoke functions. Every issuer shares the same
// pre-flight shape: resolve the unlocked wallet, refuse a second queue entry
// for the same (category, fqu), broadcast through the chain adapter, then
// append the accepted transaction to the durable queue for the pipeline
// worker to pick up later.
package issuer

import (
	"context"
	"fmt"

	"synnergy-registrar/internal/chainadapter"
	"synnergy-registrar/internal/queue"
	"synnergy-registrar/internal/regerrors"
	"synnergy-registrar/internal/replicator"
	"synnergy-registrar/internal/walletcache"
)

// Issuer issues name operations against the chain adapter and records them
// in the durable queue.
type Issuer struct {
	queue *queue.Queue
	chain chainadapter.Client
	wallet *walletcache.Cache

	minPaymentConfs int
}

// New builds an Issuer. minPaymentConfs is passed through to
// BroadcastPreorder (spec.md §4.5: "minimum payment confirmations").
func New(q *queue.Queue, chain chainadapter.Client, wallet *walletcache.Cache, minPaymentConfs int) *Issuer {
	return &Issuer{queue: q, chain: chain, wallet: wallet, minPaymentConfs: minPaymentConfs}
}

// unlockedWallet resolves the cached wallet or returns regerrors.ErrWalletLocked.
func (iss *Issuer) unlockedWallet() (walletcache.Wallet, error) {
	w, err := iss.wallet.GetWallet()
	if err != nil {
		return walletcache.Wallet{}, fmt.Errorf("%w: %v", regerrors.ErrWalletLocked, err)
	}
	return w, nil
}

func (iss *Issuer) rejectIfQueued(category queue.Category, fqu string) error {
	ok, err := iss.queue.Contains(category, fqu)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("%w: %s already queued under %s", regerrors.ErrAlreadyQueued, fqu, category)
	}
	return nil
}

func (iss *Issuer) append(category queue.Category, fqu, txHash string, extra queue.Entry) error {
	height, err := iss.chain.BlockHeight(context.Background())
	if err != nil {
		return fmt.Errorf("%w: block height: %v", regerrors.ErrTransientChain, err)
	}
	extra.Category = category
	extra.FQU = fqu
	extra.TxHash = txHash
	extra.BlockHeightBroadcast = height
	return iss.queue.Append(extra)
}

// Preorder issues a name preorder transaction (spec.md §4.3: costSats is the
// preorder burn amount in satoshis). zonefileData, tokenFile and
// transferAddress are not used by the preorder broadcast itself, but are
// carried forward on the queued preorder row so the pipeline worker's later
// steps (register, SetZonefiles, TransferNames) have them without the caller
// re-submitting the same payload at every stage. minConfirmations overrides
// the issuer's configured minimum payment confirmations for this preorder
// when positive; zero (or negative) falls back to that default.
func (iss *Issuer) Preorder(ctx context.Context, fqu string, costSats int64, zonefileData, tokenFile []byte, transferAddress string, minConfirmations int) (txHash string, err error) {
	w, err := iss.unlockedWallet()
	if err != nil {
		return "", err
	}
	if err := iss.rejectIfQueued(queue.CategoryPreorder, fqu); err != nil {
		return "", err
	}
	registered, err := iss.chain.IsNameRegistered(ctx, fqu)
	if err != nil {
		return "", fmt.Errorf("%w: %v", regerrors.ErrTransientChain, err)
	}
	if registered {
		return "", fmt.Errorf("%w: %s", regerrors.ErrAlreadyRegistered, fqu)
	}

	confs := minConfirmations
	if confs <= 0 {
		confs = iss.minPaymentConfs
	}

	txHash, err = iss.chain.BroadcastPreorder(ctx, fqu, costSats, w.PaymentPrivkey, w.OwnerPrivkey, confs)
	if err != nil {
		return "", err
	}
	if err := iss.append(queue.CategoryPreorder, fqu, txHash, queue.Entry{
		Payload:         zonefileData,
		TokenFile:       tokenFile,
		TransferAddress: transferAddress,
	}); err != nil {
		return "", err
	}
	return txHash, nil
}

// Register issues the register_preordered_name transaction for an fqu whose
// preorder has already reached the required confirmations. It is not a
// direct user-facing operation (spec.md §4.3): only the pipeline worker's
// RegisterPreorders step (§4.7 step 1) calls it, after confirming the
// matching preorder entry itself. zonefileData, tokenFile and
// transferAddress are the same values carried forward from the preorder row,
// so the worker's SetZonefiles and TransferNames steps can find them on the
// register row once the preorder row is gone.
func (iss *Issuer) Register(ctx context.Context, fqu string, preorderAccepted bool, zonefileData, tokenFile []byte, transferAddress string) (txHash string, err error) {
	w, err := iss.unlockedWallet()
	if err != nil {
		return "", err
	}
	if !preorderAccepted {
		return "", fmt.Errorf("%w: %s", regerrors.ErrNotPreordered, fqu)
	}
	if err := iss.rejectIfQueued(queue.CategoryRegister, fqu); err != nil {
		return "", err
	}
	registered, err := iss.chain.IsNameRegistered(ctx, fqu)
	if err != nil {
		return "", fmt.Errorf("%w: %v", regerrors.ErrTransientChain, err)
	}
	if registered {
		return "", fmt.Errorf("%w: %s", regerrors.ErrAlreadyRegistered, fqu)
	}

	txHash, err = iss.chain.BroadcastRegister(ctx, fqu, w.PaymentPrivkey, w.OwnerPrivkey, zonefileData)
	if err != nil {
		return "", err
	}
	if err := iss.append(queue.CategoryRegister, fqu, txHash, queue.Entry{
		Payload:         zonefileData,
		TokenFile:       tokenFile,
		TransferAddress: transferAddress,
	}); err != nil {
		return "", err
	}
	return txHash, nil
}

// Update issues a name_update transaction for a new zone file, queuing
// zonefile's bytes in Payload so the pipeline worker's ReplicateUpdates step
// (spec.md §4.7 step 3) can replicate it once the update confirms.
// zonefileHash may be empty, in which case it is derived from zonefileText
// (spec.md §4.3: "hash derived from text if absent"). If the chain already
// reports this exact hash as current, Update returns without broadcasting
// anything, with warning set to "unchanged" (spec.md §4.3/§8 scenario 6).
// transferAddress, when set, is carried onto the queued update row so the
// worker's TransferNames step (§4.7 step 4) can promote this update into a
// transfer once it confirms.
func (iss *Issuer) Update(ctx context.Context, fqu string, zonefileText, tokenFile []byte, zonefileHash, transferAddress string) (txHash string, warning string, err error) {
	w, err := iss.unlockedWallet()
	if err != nil {
		return "", "", err
	}
	if err := iss.rejectIfQueued(queue.CategoryUpdate, fqu); err != nil {
		return "", "", err
	}

	hash := zonefileHash
	if hash == "" {
		hash = replicator.ZonefileHash(zonefileText)
	}

	current, err := iss.chain.IsZonefileHashCurrent(ctx, fqu, hash)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", regerrors.ErrTransientChain, err)
	}
	if current {
		return "", "unchanged", nil
	}

	txHash, err = iss.chain.BroadcastUpdate(ctx, fqu, hash, w.OwnerPrivkey, w.PaymentPrivkey)
	if err != nil {
		return "", "", err
	}
	if err := iss.append(queue.CategoryUpdate, fqu, txHash, queue.Entry{
		Payload:         zonefileText,
		ZonefileHash:    hash,
		TokenFile:       tokenFile,
		TransferAddress: transferAddress,
	}); err != nil {
		return "", "", err
	}
	return txHash, "", nil
}

// Transfer issues a name_transfer transaction moving fqu to newOwnerAddress.
// keepZonefile mirrors registrar.py's transfer keep_zonefile flag, but it is
// not used: BroadcastTransfer takes no such option, so the broadcast
// transaction is the same whether keepZonefile is true or false.
func (iss *Issuer) Transfer(ctx context.Context, fqu, newOwnerAddress string, keepZonefile bool) (txHash string, err error) {
	w, err := iss.unlockedWallet()
	if err != nil {
		return "", err
	}
	if err := iss.rejectIfQueued(queue.CategoryTransfer, fqu); err != nil {
		return "", err
	}

	txHash, err = iss.chain.BroadcastTransfer(ctx, fqu, newOwnerAddress, w.OwnerPrivkey, w.PaymentPrivkey)
	if err != nil {
		return "", err
	}
	if err := iss.append(queue.CategoryTransfer, fqu, txHash, queue.Entry{
		TransferAddress: newOwnerAddress,
	}); err != nil {
		return "", err
	}
	return txHash, nil
}

// Renew issues a name_renewal transaction, paying feeSats to extend fqu's
// registration.
func (iss *Issuer) Renew(ctx context.Context, fqu string, feeSats int64) (txHash string, err error) {
	w, err := iss.unlockedWallet()
	if err != nil {
		return "", err
	}
	if err := iss.rejectIfQueued(queue.CategoryRenew, fqu); err != nil {
		return "", err
	}

	txHash, err = iss.chain.BroadcastRenew(ctx, fqu, feeSats, w.OwnerPrivkey, w.PaymentPrivkey)
	if err != nil {
		return "", err
	}
	if err := iss.append(queue.CategoryRenew, fqu, txHash, queue.Entry{}); err != nil {
		return "", err
	}
	return txHash, nil
}

// Revoke issues a name_revoke transaction, permanently disabling fqu.
func (iss *Issuer) Revoke(ctx context.Context, fqu string) (txHash string, err error) {
	w, err := iss.unlockedWallet()
	if err != nil {
		return "", err
	}
	if err := iss.rejectIfQueued(queue.CategoryRevoke, fqu); err != nil {
		return "", err
	}

	txHash, err = iss.chain.BroadcastRevoke(ctx, fqu, w.OwnerPrivkey, w.PaymentPrivkey)
	if err != nil {
		return "", err
	}
	if err := iss.append(queue.CategoryRevoke, fqu, txHash, queue.Entry{}); err != nil {
		return "", err
	}
	return txHash, nil
}
