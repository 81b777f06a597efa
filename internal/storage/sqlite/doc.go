// Package sqlite is the dataset catalog: a SQLite record of the
// ground-truth database entries and prediction evaluations produced by
// the info tools.
//
// The schema is managed by golang-migrate from migrations embedded in the
// binary, so a catalog file can be created anywhere without a checkout.
package sqlite
