// Package watcher watches a document corpus and triggers incremental
// re-indexing after changes settle.
//
// fsnotify is used when available, with directory polling as a fallback.
// Rapid events are coalesced by a Debouncer before they reach the caller.
package watcher
