// Package file provides a JSON file backend for the connection cache.
//
// The cache is written to a temporary file in the same directory and renamed
// over the target, so readers see either the old or the new cache.
package file
