// Package api defines the core types shared by the askdoc service: chunks
// and their metadata, retrieval queries and strategies, document status
// summaries, answers, and the structured error envelope returned by the
// front ends.
//
// Apart from github.com/google/uuid for document IDs the package depends
// only on the standard library and performs no I/O.
//
// Core types:
//   - [Chunk]: a bounded slice of document text with metadata and embedding
//   - [Query]: question text plus a [Strategy] (SIMILAR or MMR)
//   - [Document]: summary of the currently indexed document
//   - [Answer]: generated answer with the chunk texts it was grounded on
//   - [APIError]: structured error with type, code, param, and message
package api
