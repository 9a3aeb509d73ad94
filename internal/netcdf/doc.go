// Package netcdf is the file-system grid.Backend for NetCDF classic files.
//
// Inputs are decoded with github.com/batchatco/go-native-netcdf, which reads
// CDF-1, CDF-2 and CDF-5 headers and hands back typed (possibly nested) Go
// slices that are flattened into grid.Array values here.
//
// Outputs are produced by a small record-oriented encoder for the CDF-1 and
// CDF-2 layouts. The header is written once by Define, fixed-size variables are
// written in place, and record variables grow one record slab at a time; the
// record count in the header is rewritten after every Append so that a file
// interrupted mid-run still describes the records it actually holds.
package netcdf
