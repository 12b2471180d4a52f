// Package conv provides checked integer conversions for values read from
// index files (counts, dimensions, list sizes) before they are used to
// size allocations.
package conv
