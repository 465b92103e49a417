// Package codec maps Go types to tagged encoders and decoders
// so values can cross the boundary between a unit and the
// owner, and be written to a storage engine in a form both
// sides agree on.
//
// Every Registry starts with a set of built-in adapters
// (primitives, date/time with and without a zone, arbitrary
// precision integers). Applications add their own through
// Init, which takes effect once and then seals the registry.
package codec
