// Package service implements the aggregation engine: bounded upstream
// fan-out, per-entity record assembly, problem filtering and the
// management zone selection state.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
)

// NotSpecified is the placeholder rendered when a value cannot be resolved.
const NotSpecified = "Non spécifié"

// ErrMissingZone is returned by aggregators when no management zone is
// selected and no default is configured.
var ErrMissingZone = errors.New("no management zone selected")

// Upstream is the read surface of the observability upstream consumed by
// the engine. *dynatrace.Client implements it.
type Upstream interface {
	// Get issues a GET against the v2 API.
	Get(ctx context.Context, path string, params url.Values) (json.RawMessage, error)
	// GetConfig issues a GET against the config v1 API.
	GetConfig(ctx context.Context, path string, params url.Values) (json.RawMessage, error)
	// RequestCount reports the total number of requests issued so far.
	RequestCount() int64
}
