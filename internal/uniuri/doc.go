// Package uniuri generates cryptographically secure random strings suitable
// for use as unique identifiers and tokens. Character selection uses
// rejection sampling, so every character of the allowed set is equally
// likely regardless of the set's size.
package uniuri
