// Package mmap maps index blobs read-only so LocalStore can hand their
// bytes to the decoder without a copy.
//
// Unix uses mmap(2) with a sequential read-ahead hint; Windows uses
// CreateFileMapping and MapViewOfFile. Slices returned by Bytes must not be
// used after Close.
package mmap
