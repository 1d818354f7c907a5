// Package atlas is the peer-directory and zone-file dissemination adapter
// named in spec.md §4.5/§4.6. It is adapted from core/network.go's Node
// (libp2p host + gossipsub + mDNS discovery): the orphan-block/VM-specific
// broadcast helpers are gone, and Broadcast is repointed at a per-name
// "zonefiles.<fqu>" topic so zone-file pushes are multiplexed by name
// instead of sharing one global topic.
package atlas

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	"github.com/sirupsen/logrus"
)

// defaultBootstrapPeer mirrors registrar.py's get_atlas_server_list, which
// always folds in a well-known fallback node so a freshly started registrar
// has somewhere to replicate to even before mDNS/gossipsub discovery has
// found anyone. SkipDefaultPeer (test-only) disables this, matching the
// Python original's BLOCKSTACK_TEST guard.
const defaultBootstrapPeer = "atlas.synnergy.network:6264"

// Config configures a Node.
type Config struct {
	ListenAddr       string
	BootstrapPeers   []string
	DiscoveryTag     string
	SkipDefaultPeer  bool
}

// Node is a libp2p-backed atlas peer. It discovers peers via mDNS and
// explicit bootstrap dialing, and disseminates zone-file bytes over
// gossipsub topics scoped per name.
type Node struct {
	host   hostCloser
	pubsub *pubsub.PubSub
	cfg    Config

	topicLock sync.Mutex
	topics    map[string]*pubsub.Topic

	peerLock sync.RWMutex
	peers    map[string]string // peer id -> bootstrap multiaddr, or AddrInfo text for mDNS-found peers

	ctx    context.Context
	cancel context.CancelFunc
}

// hostCloser is the subset of libp2p's host.Host this package uses.
type hostCloser interface {
	Connect(ctx context.Context, pi peer.AddrInfo) error
	Close() error
	ID() peer.ID
}

// NewNode bootstraps an atlas peer: it opens a libp2p host, joins gossipsub,
// dials any configured bootstrap peers and starts mDNS discovery.
func NewNode(cfg Config) (*Node, error) {
	ctx, cancel := context.WithCancel(context.Background())

	h, err := libp2p.New(libp2p.ListenAddrStrings(cfg.ListenAddr))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("atlas: create host: %w", err)
	}

	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		h.Close()
		cancel()
		return nil, fmt.Errorf("atlas: create pubsub: %w", err)
	}

	n := &Node{
		host:   h,
		pubsub: ps,
		cfg:    cfg,
		topics: make(map[string]*pubsub.Topic),
		peers:  make(map[string]string),
		ctx:    ctx,
		cancel: cancel,
	}

	if err := n.dialSeeds(cfg.BootstrapPeers); err != nil {
		logrus.Warnf("atlas: bootstrap dial warning: %v", err)
	}

	mdns.NewMdnsService(h, cfg.DiscoveryTag, n)
	return n, nil
}

var _ mdns.Notifee = (*Node)(nil)

// HandlePeerFound implements mdns.Notifee.
func (n *Node) HandlePeerFound(info peer.AddrInfo) {
	if info.ID == n.host.ID() {
		return
	}
	n.peerLock.RLock()
	_, known := n.peers[info.ID.String()]
	n.peerLock.RUnlock()
	if known {
		return
	}
	if err := n.host.Connect(n.ctx, info); err != nil {
		logrus.Warnf("atlas: connect to discovered peer %s: %v", info.ID, err)
		return
	}
	n.peerLock.Lock()
	n.peers[info.ID.String()] = info.String()
	n.peerLock.Unlock()
}

func (n *Node) dialSeeds(seeds []string) error {
	var errs []string
	for _, addr := range seeds {
		pi, err := peer.AddrInfoFromString(addr)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid addr %s: %v", addr, err))
			continue
		}
		if err := n.host.Connect(n.ctx, *pi); err != nil {
			errs = append(errs, fmt.Sprintf("connect %s: %v", addr, err))
			continue
		}
		n.peerLock.Lock()
		n.peers[pi.ID.String()] = addr
		n.peerLock.Unlock()
	}
	if len(errs) > 0 {
		return fmt.Errorf("atlas: %s", strings.Join(errs, "; "))
	}
	return nil
}

// GetPeers returns the union of discovered peers plus the hardcoded default
// bootstrap node (unless SkipDefaultPeer is set), matching
// get_atlas_server_list's behaviour in spec.md §4.6 step 4. host and the
// default node are in host:port form; discovered peers are returned as
// stored (multiaddr or AddrInfo text), not converted to host:port.
func (n *Node) GetPeers(host string) ([]string, error) {
	n.peerLock.RLock()
	defer n.peerLock.RUnlock()

	seen := map[string]bool{host: true}
	out := []string{host}
	for _, hp := range n.peers {
		if !seen[hp] {
			seen[hp] = true
			out = append(out, hp)
		}
	}
	if !n.cfg.SkipDefaultPeer && !seen[defaultBootstrapPeer] {
		out = append(out, defaultBootstrapPeer)
	}
	return out, nil
}

// PushZonefile disseminates zonefile bytes for fqu over the
// "zonefiles.<fqu>" gossipsub topic, returning the number of peers reached
// (best-effort: gossipsub has no per-peer delivery ack, so this reports the
// topic's current known-peer count).
func (n *Node) PushZonefile(ctx context.Context, fqu string, zonefile []byte) (peersReached int, err error) {
	topicName := "zonefiles." + fqu
	n.topicLock.Lock()
	t, ok := n.topics[topicName]
	if !ok {
		var err error
		t, err = n.pubsub.Join(topicName)
		if err != nil {
			n.topicLock.Unlock()
			return 0, fmt.Errorf("atlas: join topic %s: %w", topicName, err)
		}
		n.topics[topicName] = t
	}
	n.topicLock.Unlock()

	if err := t.Publish(ctx, zonefile); err != nil {
		return 0, fmt.Errorf("atlas: publish %s: %w", topicName, err)
	}
	return len(t.ListPeers()), nil
}

// Close tears the node down.
func (n *Node) Close() error {
	n.cancel()
	return n.host.Close()
}
