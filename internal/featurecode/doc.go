// Package featurecode turns raw device attribute values into compact
// per-feature integer codes.
//
// Two dictionary flavours share the same equality semantics:
//   - Encode builds a batch dictionary once over a full column. Categories
//     are sorted, so codes are stable for a given batch regardless of row
//     order.
//   - Dictionary assigns codes lazily on first sight of each distinct value
//     and suits streaming input where the batch is not known up front.
//
// Present values are coded exactly as delivered, so equal codes always mean
// equal raw strings. Empty equivalents ("", "null", "none", "nan", "[]", "{}"
// in any case, surrounding whitespace ignored) and missing values map to
// Absent. Nothing in this package returns an
// error for a malformed value; it degrades to Absent instead.
package featurecode
