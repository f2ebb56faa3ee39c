package models

import "time"

// TitleStream is the per-(title, stream, provider) routing record. ProxyURL
// is derived deterministically from the provider credentials, the provider
// item id and the stream id.
type TitleStream struct {
	Key         string    `bson:"stream_key" json:"stream_key"`
	TitleKey    string    `bson:"title_key" json:"title_key"`
	StreamID    string    `bson:"stream_id" json:"stream_id"`
	ProviderID  string    `bson:"provider_id" json:"provider_id"`
	ProxyURL    string    `bson:"proxy_url" json:"proxy_url"`
	CreatedAt   time.Time `bson:"created_at" json:"created_at"`
	LastUpdated time.Time `bson:"last_updated" json:"last_updated"`
}

// CollectionName specifies the document collection for TitleStream
func (TitleStream) CollectionName() string {
	return "title_streams"
}
