// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wsrpc

import "sync"

// busSet is the subscriber set behind one interface. It is mutated by
// connection events and iterated during broadcast, so every access holds
// the lock and broadcast works over a snapshot, never the live map.
type busSet struct {
	mu    sync.Mutex
	peers map[Peer]struct{}
}

func newBusSet() *busSet {
	return &busSet{peers: make(map[Peer]struct{})}
}

func (b *busSet) add(p Peer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.peers[p] = struct{}{}
}

func (b *busSet) remove(p Peer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.peers, p)
}

func (b *busSet) contains(p Peer) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.peers[p]
	return ok
}

func (b *busSet) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.peers)
}

// snapshot returns a stable copy of the current membership.
func (b *busSet) snapshot() []Peer {
	b.mu.Lock()
	defer b.mu.Unlock()
	peers := make([]Peer, 0, len(b.peers))
	for p := range b.peers {
		peers = append(peers, p)
	}
	return peers
}
