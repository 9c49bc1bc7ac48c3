// Package watcher reloads on configuration file changes.
//
// A FileWatcher coalesces the burst of filesystem events a single save
// produces (truncate, write, chmod, or write-temp-then-rename) into one
// callback after the file has been quiet for the debounce interval.
package watcher
