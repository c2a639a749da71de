// Package reembed rebuilds the embeddings of stored documents.
//
// It is used after switching embedding provider or model, when stored
// vectors have the wrong dimension or come from an incompatible space.
// Documents are processed in batches with retry and exponential backoff,
// and progress is reported to a writer.
package reembed
