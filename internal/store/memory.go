package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/structharvest/harvester/internal/capsule"
)

// Memory is an in-memory Store for tests and local development. It honors
// the same idempotency contract as Postgres.
type Memory struct {
	mu       sync.Mutex
	nodes    map[string]*capsule.Node // keyed by owner|domain
	capsules map[string]storedCapsule // keyed by nodeID|fingerprint
	clock    capsule.Clock
}

type storedCapsule struct {
	Envelope capsule.Envelope
	Status   capsule.Status
}

// NewMemory builds an empty in-memory store.
func NewMemory(clock capsule.Clock) *Memory {
	return &Memory{
		nodes:    make(map[string]*capsule.Node),
		capsules: make(map[string]storedCapsule),
		clock:    clock,
	}
}

// UpsertNode implements capsule.Store.
func (m *Memory) UpsertNode(_ context.Context, ownerSlug, sourceURL string) (string, error) {
	domain, err := capsule.DeriveDomain(sourceURL)
	if err != nil {
		return "", err
	}
	key := ownerSlug + "|" + domain

	m.mu.Lock()
	defer m.mu.Unlock()
	if node, ok := m.nodes[key]; ok {
		node.SourceURL = sourceURL
		node.LastHarvested = m.clock.Now()
		return node.ID, nil
	}
	node := &capsule.Node{
		ID:            uuid.NewString(),
		OwnerSlug:     ownerSlug,
		SourceURL:     sourceURL,
		Domain:        domain,
		LastHarvested: m.clock.Now(),
	}
	m.nodes[key] = node
	return node.ID, nil
}

// InsertCapsule implements capsule.Store.
func (m *Memory) InsertCapsule(_ context.Context, nodeID string, env capsule.Envelope, status capsule.Status) (bool, error) {
	if env.Fingerprint == "" {
		return false, fmt.Errorf("capsule for %s has no fingerprint", env.SourceURL)
	}
	key := nodeID + "|" + env.Fingerprint

	m.mu.Lock()
	defer m.mu.Unlock()
	_, exists := m.capsules[key]
	m.capsules[key] = storedCapsule{Envelope: env, Status: status}
	return !exists, nil
}

// UpdateNodeCategory implements capsule.Store.
func (m *Memory) UpdateNodeCategory(_ context.Context, nodeID string, category capsule.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, node := range m.nodes {
		if node.ID == nodeID {
			node.Category = category
			return nil
		}
	}
	return fmt.Errorf("node %s not found", nodeID)
}

// Node returns the stored node for an (owner, sourceURL) pair, if any.
func (m *Memory) Node(ownerSlug, sourceURL string) (capsule.Node, bool) {
	domain, err := capsule.DeriveDomain(sourceURL)
	if err != nil {
		return capsule.Node{}, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	node, ok := m.nodes[ownerSlug+"|"+domain]
	if !ok {
		return capsule.Node{}, false
	}
	return *node, true
}

// Capsules returns every capsule stored for a node, in insertion-map order.
func (m *Memory) Capsules(nodeID string) []capsule.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []capsule.Envelope
	for key, stored := range m.capsules {
		if len(key) > len(nodeID) && key[:len(nodeID)] == nodeID {
			out = append(out, stored.Envelope)
		}
	}
	return out
}

// CapsuleStatus reports the status stored for (node, fingerprint).
func (m *Memory) CapsuleStatus(nodeID, fp string) (capsule.Status, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.capsules[nodeID+"|"+fp]
	if !ok {
		return "", false
	}
	return stored.Status, true
}
