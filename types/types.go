// Package types provides common type definitions for kad-telemetry.
package types

import (
	"fmt"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
)

// Contact identifies a remote (or the local) node of the overlay.
// Addr may be nil for transports that do not dial, such as the in-memory hub.
type Contact struct {
	ID   peer.ID
	Addr multiaddr.Multiaddr
}

// NewContact creates a contact from a peer ID and a multiaddr string.
// An empty address yields a contact without an address.
func NewContact(id peer.ID, addr string) (Contact, error) {
	c := Contact{ID: id}
	if addr == "" {
		return c, nil
	}
	maddr, err := multiaddr.NewMultiaddr(addr)
	if err != nil {
		return Contact{}, fmt.Errorf("parsing contact address: %w", err)
	}
	c.Addr = maddr
	return c, nil
}

// Key returns the string form of the contact ID, used as the contact
// component of persisted samples.
func (c Contact) Key() string {
	if c.ID == "" {
		return ""
	}
	return c.ID.String()
}

// IsEmpty returns true if the contact has no ID.
func (c Contact) IsEmpty() bool {
	return c.ID == ""
}

// Equal returns true if both contacts have the same ID and address.
func (c Contact) Equal(other Contact) bool {
	if c.ID != other.ID {
		return false
	}
	if c.Addr == nil || other.Addr == nil {
		return c.Addr == nil && other.Addr == nil
	}
	return c.Addr.Equal(other.Addr)
}

// String returns a short human-readable form of the contact.
func (c Contact) String() string {
	if c.Addr == nil {
		return c.Key()
	}
	return c.Key() + "@" + c.Addr.String()
}

// Sample is one recorded observation of a metric at a point in time.
type Sample struct {
	// Metric is the name of the metric that produced the sample.
	Metric string

	// Timestamp is when the observation was made.
	Timestamp time.Time

	// Value is the observed value. Units are defined by the metric.
	Value float64

	// ContactID is the key of the contact the observation is about.
	// Empty for observations about the local node.
	ContactID string
}

// NewSample creates a sample for the given contact.
func NewSample(metric string, at time.Time, value float64, contact Contact) Sample {
	return Sample{
		Metric:    metric,
		Timestamp: at,
		Value:     value,
		ContactID: contact.Key(),
	}
}
