// Package datasetstats profiles input columns before resolution.
//
// For every feature it reports how selective the values are, how often the
// value is missing, and how much of the column the most frequent values
// cover. Selectivity drives the recommendation shown to operators choosing
// reducers and identification features.
package datasetstats
