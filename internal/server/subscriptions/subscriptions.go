// Package subscriptions delivers graph mutation events to standing
// subscriptions via webhooks.
package subscriptions

import (
	"time"

	"github.com/systemshift/weave/internal/graph"
)

// Pattern defines which events a subscription matches. Empty fields
// match everything.
type Pattern struct {
	EventTypes  []string `json:"event_types,omitempty"`  // e.g. node.created
	NodeSources []string `json:"node_sources,omitempty"` // node provenance tags
	EdgeTypes   []string `json:"edge_types,omitempty"`   // edge classifications
}

// Matches evaluates an event against the pattern.
func (p Pattern) Matches(event graph.Event) bool {
	if len(p.EventTypes) > 0 && !contains(p.EventTypes, event.Type) {
		return false
	}
	if len(p.NodeSources) > 0 && event.NodeSource != "" && !contains(p.NodeSources, event.NodeSource) {
		return false
	}
	if len(p.EdgeTypes) > 0 && event.EdgeType != "" && !contains(p.EdgeTypes, event.EdgeType) {
		return false
	}
	return true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Subscription is a standing query that fires when its pattern matches
// a mutation event.
type Subscription struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Pattern     Pattern `json:"pattern"`
	Webhook     string  `json:"webhook"`

	Enabled   bool       `json:"enabled"`
	Created   time.Time  `json:"created"`
	Modified  time.Time  `json:"modified"`
	LastFired *time.Time `json:"last_fired,omitempty"`
	FireCount int        `json:"fire_count"`
}

// Notification is the webhook payload sent when a subscription fires.
type Notification struct {
	SubscriptionID   string      `json:"subscription_id"`
	SubscriptionName string      `json:"subscription_name"`
	Event            graph.Event `json:"event"`
	MatchedAt        time.Time   `json:"matched_at"`
}
