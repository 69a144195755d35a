// Package internaldefs exposes stable metric name and bucket definitions for
// exporter implementations.
//
// Counter and histogram definitions live here so every exporter renders
// identical metric names and bucket boundaries. Changes to definitions in this
// package affect all exporters simultaneously.
package internaldefs
