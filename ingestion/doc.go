// Package ingestion provides pipeline orchestration for turning files into documents.
//
// The Pipeline type manages the ingestion workflow, including:
//   - Walking directories and filtering files by extension
//   - Extracting text from plain files and PDFs
//   - Upserting documents by path and content hash
//   - Scheduling understanding and embedding jobs
//
// Enrichment runs on the job queue. Its failures are recorded there and
// logged but do not fail the ingestion operation.
package ingestion
