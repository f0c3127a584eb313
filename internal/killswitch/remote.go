package killswitch

import (
	"context"
	"time"
)

// RemoteRecord is the shared kill-switch record in the remote store.
type RemoteRecord struct {
	IsActive    bool      `json:"is_active"`
	Reason      string    `json:"reason,omitempty"`
	ActivatedBy string    `json:"activated_by,omitempty"`
	ActivatedAt time.Time `json:"activated_at,omitempty"`
}

// RemoteStore mirrors kill-switch state across hosts.
//
// Fetch returns (nil, nil) when no record exists; "no active record" and
// "query error" both degrade to inactive-for-now, but callers log the
// distinction. Publish and Clear are best-effort from the coordinator's
// point of view: local state is authoritative.
type RemoteStore interface {
	Fetch(ctx context.Context) (*RemoteRecord, error)
	Publish(ctx context.Context, record RemoteRecord) error
	Clear(ctx context.Context) error
}
