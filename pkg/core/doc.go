// Package core defines the shared language of the tabmap system.
//
// This package contains:
//   - Domain entities (NormalizedTable, MappedColumn, ValidationIssue)
//   - The field catalog and manifest types
//   - Run identity and failure types
//   - Summary snapshots for every aggregation scope
//
// The Golden Rule: pkg/core imports ONLY the stdlib.
// All other packages depend on core, not the reverse.
package core
