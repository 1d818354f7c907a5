// Package storage implements the pluggable off-chain blob storage named in
// spec.md §1/§4.6: Put(key, bytes, requiredDrivers) -> {ok|err}. ContentID
// derives a CIDv1 content address with github.com/ipfs/go-cid +
// go-multihash, already indirect teacher dependencies. Keys passed to Put
// are whatever the caller chooses; the replicator stores token files under
// the hex TokenFileID, not under a CID.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
)

// Driver is one named off-chain storage backend.
type Driver interface {
	Name() string
	Put(ctx context.Context, key string, data []byte) error
}

// Router fans a Put out to every driver named in requiredDrivers
// (spec.md: "storage.Put(...) against the required drivers").
type Router struct {
	drivers map[string]Driver
}

// NewRouter builds a router over the given drivers, keyed by Driver.Name().
func NewRouter(drivers ...Driver) *Router {
	r := &Router{drivers: make(map[string]Driver, len(drivers))}
	for _, d := range drivers {
		r.drivers[d.Name()] = d
	}
	return r
}

// Put writes data under key to every driver named in requiredDrivers. It
// attempts all drivers and returns only the first error encountered, which
// names the first driver that failed; later failures are not reported.
func (r *Router) Put(ctx context.Context, key string, data []byte, requiredDrivers []string) error {
	if len(requiredDrivers) == 0 {
		return fmt.Errorf("storage: no required drivers configured")
	}
	var firstErr error
	for _, name := range requiredDrivers {
		d, ok := r.drivers[name]
		if !ok {
			if firstErr == nil {
				firstErr = fmt.Errorf("storage: unknown driver %q", name)
			}
			continue
		}
		if err := d.Put(ctx, key, data); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("storage: driver %q: %w", name, err)
		}
	}
	return firstErr
}

// ContentID derives a CIDv1 (raw codec, sha2-256 multihash) for data. The
// replicator does not call it; token files are keyed by the
// sha256(fqu||zonefileHash||tokenFile) TokenFileID.
func ContentID(data []byte) (string, error) {
	sum, err := mh.Sum(data, mh.SHA2_256, -1)
	if err != nil {
		return "", fmt.Errorf("storage: multihash sum: %w", err)
	}
	c := cid.NewCidV1(cid.Raw, sum)
	return c.String(), nil
}

// DiskDriver persists blobs to a local directory, one file per key. It is
// the default "storage_drivers" entry for single-node or development setups.
type DiskDriver struct {
	root string
}

// NewDiskDriver returns a Driver rooted at dir, creating it if necessary.
func NewDiskDriver(name, dir string) (*DiskDriver, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: disk driver: %w", err)
	}
	return &DiskDriver{root: dir}, nil
}

func (d *DiskDriver) Name() string { return "disk" }

func (d *DiskDriver) Put(_ context.Context, key string, data []byte) error {
	path := filepath.Join(d.root, safeFilename(key))
	return os.WriteFile(path, data, 0o644)
}

func safeFilename(key string) string {
	out := make([]byte, 0, len(key))
	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_', c == '.':
			out = append(out, c)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
