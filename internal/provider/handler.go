// Package provider defines the capability set every upstream catalog
// handler implements, plus the registry that maps a provider's type to its
// handler constructor. Jobs depend only on the Handler interface; the
// protocol-specific packages (agtv, xtream) live underneath.
package provider

import (
	"context"
	"time"

	"github.com/glefebvre/streamhub/internal/docstore"
	"github.com/glefebvre/streamhub/internal/fetcher"
	"github.com/glefebvre/streamhub/internal/models"
)

// Category is one upstream catalog grouping.
type Category struct {
	ID   string             `json:"id"`
	Name string             `json:"name"`
	Type models.ContentType `json:"type"`
}

// Handler is the capability set shared by all provider variants.
type Handler interface {
	// Provider returns the configuration this handler was built for.
	Provider() *models.Provider

	// FetchCategories lists the upstream categories for a content type.
	FetchCategories(ctx context.Context, ct models.ContentType) ([]Category, error)

	// FetchMetadata performs a full catalog scan of the content type,
	// filtered to the provider's enabled categories, persists the
	// resulting entries and returns how many were written. A failure on
	// one page loses only that page; the scan fails outright only when
	// authentication is rejected before any page succeeds.
	FetchMetadata(ctx context.Context, ct models.ContentType) (int, error)

	// LoadProviderTitles populates the in-memory working set from the
	// store. A nil since loads everything for the provider.
	LoadProviderTitles(ctx context.Context, since *time.Time, includeIgnored bool) error

	// GetAllTitles returns the current working set.
	GetAllTitles() []models.ProviderTitle

	// UnloadTitles drops the working set.
	UnloadTitles()

	// StreamURL derives the proxy playback URL for one stream of an
	// entry. The derivation is deterministic over the provider's
	// credentials, the entry's item id and the stream id.
	StreamURL(pt *models.ProviderTitle, streamID string) string
}

// TitleStore is the slice of the provider title repository handlers need.
type TitleStore interface {
	GetByProvider(ctx context.Context, providerID string, ct models.ContentType, since *time.Time, includeIgnored bool) ([]models.ProviderTitle, error)
	BulkUpsert(ctx context.Context, titles []models.ProviderTitle) (*docstore.BulkResult, error)
}

// Deps carries the shared collaborators handed to every handler.
type Deps struct {
	Fetcher *fetcher.Fetcher
	Titles  TitleStore
	// CacheTTL bounds how long fetched catalog payloads stay fresh.
	// Zero selects a default shorter than the sync interval.
	CacheTTL time.Duration
}

// DefaultCacheTTL is used when Deps.CacheTTL is zero.
const DefaultCacheTTL = 30 * time.Minute

// TTL returns the effective cache TTL.
func (d Deps) TTL() time.Duration {
	if d.CacheTTL > 0 {
		return d.CacheTTL
	}
	return DefaultCacheTTL
}
