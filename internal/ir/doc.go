// Package ir provides the field-type algebra consumed by the layout compiler.
//
// This package contains the data model only. All other internal packages
// import ir; ir imports nothing internal. This keeps the type algebra the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - A field type is a single tagged variant (*FieldType with a Kind);
//     signedness and enumeration mappings are orthogonal attributes
//   - Graphs are built, then frozen by Resolve; a resolved graph is never
//     mutated afterwards
//   - Sizes and alignments are in bits
//   - NO float types in canonical JSON; unknown values are omitted, never null
//   - All JSON keys use snake_case
package ir
