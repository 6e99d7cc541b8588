package domain

import "errors"

var (
	// ErrConfiguration means a required setting is absent or invalid.
	ErrConfiguration = errors.New("configuration error")
	// ErrIngestion means the wiki could not be fetched or read.
	ErrIngestion = errors.New("ingestion failure")
	// ErrEmbedding means the embedding service call failed.
	ErrEmbedding = errors.New("embedding service failure")
	// ErrGeneration means the generation service call failed.
	ErrGeneration = errors.New("generation service failure")
)
