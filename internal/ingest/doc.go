// Package ingest loads resolution input from delimited text files.
//
// Files ending in .gz or .zst are decompressed transparently. Read keeps the
// requested columns, turns empty cells into missing values, and orders rows
// by the timestamp column so the resolver sees events in time order.
// DiscoverRoles derives feature roles from column-name prefixes.
package ingest
