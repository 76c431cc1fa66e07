// Package simpleingest provides the ingestion and preview pipeline for
// user-supplied binary content stored in a content-addressed object store.
//
// A single Service orchestrates the flow for every upload: media type
// detection, format-aware pre-transforms (video transcoding, archive
// expansion), quota enforcement while the bytes stream through, the object
// store write, deduplication against earlier uploads by the same owner, and
// preview generation in small, medium and large variants.
//
// Drivers
//
// Processing backends are Drivers. A driver declares which input modes
// (stream, content, source, path) and which output sizes it supports, and
// implements one processing interface per declared mode. Drivers are
// registered once in an immutable Registry split into preview, metadata,
// upload and convert pools. Concrete drivers live in the drivers subpackage.
//
// Collaborators
//
// Content records and quota counters are persisted through Repository and
// QuotaStore (memory and Postgres implementations under repo/). Blobs go
// through ObjectStore (the content-addressed store in objectstore/ layered
// over the memory, filesystem and S3 backends in storage/).
package simpleingest
