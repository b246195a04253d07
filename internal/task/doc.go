// Package task manages the background processing of work items.
// It provides a Runner that admits queued items up to a concurrency ceiling
// and moves each one through transcription, classification and extraction,
// so submits never block on the pipeline and interrupted items are
// recovered after a restart.
package task
