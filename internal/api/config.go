package api

// Config holds server configuration.
type Config struct {
	Port int
	// AllowedOrigins lists CORS origins; empty allows all.
	AllowedOrigins []string
	// APIKey, when set, is required in the X-API-Key header.
	APIKey string
	// ChunkSize bounds the text of one /batches batch.
	ChunkSize int
}
