// Package replicator implements the zone-file and token-file dissemination
// step named in spec.md §4.6. It pushes zone-file bytes to atlas peers,
// persists token files through the pluggable storage drivers, and
// deduplicates repeat pushes for the same (fqu, hash) pair within a single
// worker lifetime using a bounded LRU set, the same dedup idiom
// core/network.go uses for its seen-message gossipsub cache.
package replicator

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/miekg/dns"
	sha256 "github.com/minio/sha256-simd"

	"synnergy-registrar/internal/chainadapter"
	"synnergy-registrar/internal/storage"
)

const dedupCacheSize = 4096

// AtlasPeers is the subset of atlas.Node the replicator needs.
type AtlasPeers interface {
	GetPeers(host string) ([]string, error)
	PushZonefile(ctx context.Context, fqu string, zonefile []byte) (int, error)
}

// Replicator pushes zone files to the peer network and token files to the
// configured off-chain storage drivers.
type Replicator struct {
	atlas           AtlasPeers
	chain           chainadapter.Client
	storage         *storage.Router
	requiredDrivers []string
	seen            *lru.Cache[string, struct{}]
}

// New builds a Replicator. requiredDrivers names the storage drivers a
// token-file Put must succeed against (spec.md §4.6/§6 storage_drivers).
func New(atlasNode AtlasPeers, chain chainadapter.Client, router *storage.Router, requiredDrivers []string) (*Replicator, error) {
	cache, err := lru.New[string, struct{}](dedupCacheSize)
	if err != nil {
		return nil, fmt.Errorf("replicator: new dedup cache: %w", err)
	}
	return &Replicator{
		atlas:           atlasNode,
		chain:           chain,
		storage:         router,
		requiredDrivers: requiredDrivers,
		seen:            cache,
	}, nil
}

// ZonefileHash returns sha256(zonefile) hex-encoded, the value stored on
// chain as the name's value_hash (spec.md §3).
func ZonefileHash(zonefile []byte) string {
	sum := sha256.Sum256(zonefile)
	return fmt.Sprintf("%x", sum)
}

// TokenFileID computes sha256(fqu || zonefileHash || tokenFile), the storage
// key spec.md §4.6 mandates for a name's token file.
func TokenFileID(fqu, zonefileHash string, tokenFile []byte) string {
	h := sha256.New()
	h.Write([]byte(fqu))
	h.Write([]byte(zonefileHash))
	h.Write(tokenFile)
	return fmt.Sprintf("%x", h.Sum(nil))
}

// IsDeletion reports whether an empty zone file represents the "unset zone
// file" deletion sentinel described in spec.md §4.6, rather than a real
// zone file payload.
func IsDeletion(zonefile []byte) bool {
	return len(bytes.TrimSpace(zonefile)) == 0
}

// looksLikeZonefile reports whether data parses as a well-formed DNS zone,
// gating token-file replication on "recognized zone-file format" (spec.md
// §4.6): a token file is only replicated alongside a zone file the registrar
// can actually parse, since an unparseable zone file means the name's
// record is malformed and nothing should be derived from it yet.
func looksLikeZonefile(data []byte) bool {
	zp := dns.NewZoneParser(strings.NewReader(string(data)), "", "")
	count := 0
	for _, ok := zp.Next(); ok; _, ok = zp.Next() {
		count++
	}
	return zp.Err() == nil && count > 0
}

// ReplicateZonefile pushes zonefile to atlas peers for fqu, but only once the
// chain already reflects this exact hash as the name's value_hash (spec.md
// §4.6 step 3: "consult the blockchain: if the on-chain value_hash doesn't
// match yet, return NOT_YET_CONFIRMED — the pipeline will retry"; §8
// invariant 5: replication must not run ahead of the chain's own
// confirmation of the hash). A deletion zone file has no value_hash to wait
// on and is pushed unconditionally. Repeat calls for the same (fqu, hash)
// this lifetime are deduped.
func (r *Replicator) ReplicateZonefile(ctx context.Context, fqu string, zonefile []byte) (pushed bool, err error) {
	hash := ZonefileHash(zonefile)
	dedupKey := "zf:" + fqu + ":" + hash
	if _, ok := r.seen.Get(dedupKey); ok {
		return false, nil
	}

	if !IsDeletion(zonefile) {
		current, err := r.chain.IsZonefileHashCurrent(ctx, fqu, hash)
		if err != nil {
			return false, fmt.Errorf("replicator: check zonefile hash for %s: %w", fqu, err)
		}
		if !current {
			return false, nil
		}
	}

	if _, err := r.atlas.PushZonefile(ctx, fqu, zonefile); err != nil {
		return false, fmt.Errorf("replicator: push zonefile for %s: %w", fqu, err)
	}
	r.seen.Add(dedupKey, struct{}{})
	return true, nil
}

// ReplicateTokenFile persists tokenFile through the storage router, keyed by
// TokenFileID, provided zonefile parses as a recognized zone file. It is a
// no-op (not an error) when the zone file can't be parsed yet, since the
// token file has nothing valid to attach to.
func (r *Replicator) ReplicateTokenFile(ctx context.Context, fqu, zonefileHash string, zonefile, tokenFile []byte) (stored bool, err error) {
	if len(tokenFile) == 0 {
		return false, nil
	}
	if !looksLikeZonefile(zonefile) {
		return false, nil
	}

	key := TokenFileID(fqu, zonefileHash, tokenFile)
	dedupKey := "tf:" + key
	if _, ok := r.seen.Get(dedupKey); ok {
		return false, nil
	}

	if err := r.storage.Put(ctx, key, tokenFile, r.requiredDrivers); err != nil {
		return false, fmt.Errorf("replicator: store token file for %s: %w", fqu, err)
	}
	r.seen.Add(dedupKey, struct{}{})
	return true, nil
}
