// Package domain contains the core business entities of the voice note
// pipeline: the WorkItem that tracks one submitted recording through its
// lifecycle, the closed set of semantic categories a transcript can be
// classified into, and the languages the transcription backends accept.
// It is independent of any storage, transport or model provider.
package domain
