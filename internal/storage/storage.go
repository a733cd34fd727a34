// Package storage holds the backends a cart can be persisted to. Each value
// stores exactly one encoded cart, the way a browser keeps one local storage
// entry per site.
package storage

import "errors"

var ErrNotFound = errors.New("no saved cart")
