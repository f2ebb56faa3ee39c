package models

import "time"

// ProviderType identifies the upstream catalog protocol
type ProviderType string

const (
	ProviderTypeAGTV   ProviderType = "agtv"
	ProviderTypeXtream ProviderType = "xtream"
)

// APIRate describes the request budget of an upstream provider:
// at most Concurrent requests per DurationSeconds window
type APIRate struct {
	Concurrent      int `bson:"concurrent" json:"concurrent"`
	DurationSeconds int `bson:"duration_seconds" json:"duration_seconds"`
}

// EnabledCategories lists the upstream category keys that are ingested,
// per content type
type EnabledCategories struct {
	Movies  []string `bson:"movies" json:"movies"`
	TVShows []string `bson:"tvshows" json:"tvshows"`
}

// ForType returns the enabled category keys for the given content type
func (ec EnabledCategories) ForType(ct ContentType) []string {
	if ct == ContentTypeMovies {
		return ec.Movies
	}
	return ec.TVShows
}

// Provider is the configuration of one upstream IPTV source. The core only
// reads providers; creation and mutation belong to the admin surface.
type Provider struct {
	ID                string            `bson:"id" json:"id"`
	Type              ProviderType      `bson:"type" json:"type"`
	Name              string            `bson:"name" json:"name"`
	BaseURL           string            `bson:"base_url" json:"base_url"`
	Username          string            `bson:"username" json:"-"`
	Password          string            `bson:"password" json:"-"`
	Priority          int               `bson:"priority" json:"priority"`
	Enabled           bool              `bson:"enabled" json:"enabled"`
	Deleted           bool              `bson:"deleted" json:"deleted"`
	EnabledCategories EnabledCategories `bson:"enabled_categories" json:"enabled_categories"`
	APIRate           APIRate           `bson:"api_rate" json:"api_rate"`
	CreatedAt         time.Time         `bson:"created_at" json:"created_at"`
	LastUpdated       time.Time         `bson:"last_updated" json:"last_updated"`
}

// CollectionName specifies the document collection for Provider
func (Provider) CollectionName() string {
	return "providers"
}

// Active reports whether the provider participates in sync and merge runs
func (p *Provider) Active() bool {
	return p.Enabled && !p.Deleted
}
