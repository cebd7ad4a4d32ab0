// Package domain holds the addon aggregate and its derivations.
//
// An Addon is the in-memory representation of a catalog entry plus its
// pending versions and dependencies, independent of how it is persisted.
// Addons are either manually authored or repository-linked; a non-empty
// RepositoryURL marks the latter.
package domain
