package util

import "errors"

var (
	ErrNoExtractableText = errors.New("no extractable text found")

	ErrNoDocuments = errors.New("no documents found")
	ErrAllFailed   = errors.New("all documents failed to load")

	ErrIngestion  = errors.New("ingestion failed")
	ErrIndexWrite = errors.New("index write failed")
	ErrRetrieval  = errors.New("retrieval failed")
	ErrGeneration = errors.New("generation failed")

	ErrUnsupportedFormat = errors.New("unsupported file format")
)
