// Package spec defines the Interval Spec: the flat stream, tag and link
// records a stream diagram is built from, and loaders for the formats those
// records arrive in.
//
// Fields are forgiving on input. Times and sizes are [Number] values that
// accept numbers or numeric strings and remember when a value was missing
// or not numeric, so the builder can apply its skip and default rules
// instead of the decoder failing the whole file. Stream sizes over time are
// [Keyframes], written either as a table or in the compact textual form
//
//	1900/10-1950/20
//
// (or 1900:10/1950:20 as used by CSV exports).
//
// # Formats
//
//   - TOML (.toml): [[streams]], [[tags]], [[links]] arrays of tables
//   - YAML (.yaml, .yml): streams, tags, links sequences
//   - JSON (.json): {"streams": [...], "tags": [...], "links": [...]}
//   - CSV: a directory with streams.csv, tags.csv and links.csv, or a single
//     .csv file holding only streams (name,start,end,values)
package spec
