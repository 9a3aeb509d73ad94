// Package grid defines the in-memory model of a gridded-data file: ordered
// attributes, dimensions, typed variables and flat data arrays, plus the
// Backend, Reader and Writer interfaces that concrete storage formats
// implement.
//
// The reshaping engine only ever talks to these interfaces. A Reader exposes
// one input file's schema and lets callers pull whole variables out of it; a
// Writer is created per output file, defined once, and then grown along its
// unlimited dimension with Append calls.
package grid
