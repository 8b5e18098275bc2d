// Package harness runs layout scenarios: small trace descriptions paired
// with expectations about the operation trees they compile to.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: aligned_members
//	description: "A byte followed by a word"
//	spec: |
//	  trace: {
//	    byte_order: "le"
//	    ...
//	  }
//	policy: always
//	assertions:
//	  - type: operation
//	    stream: default
//	    record: hello
//	    scope: event-record-payload
//	    path: _p_b
//	    kind: write
//	    writer: integer
//	    offset: 0
//	  - type: children
//	    stream: default
//	    record: hello
//	    scope: event-record-payload
//	    ops: ["align _p", "write _p_a", "write _p_b"]
//
// A scenario either carries its description inline (spec) or lists files
// (specs) resolved against the scenario directory or a base path. A
// scenario that must not compile names the error code instead:
//
//	expect_error: E206
//
// # Assertion Types
//
//   - operation: an operation with the given path and kind exists; writer,
//     offset ("?" when unknown) and alignment are checked when given
//   - children: the child list of the compound at path (the scope root by
//     default), rendered as "kind name"
//   - static_size: the scope's static size in bits, "?" when dynamic
//   - count: the number of operations in the scope
//
// # Golden Files
//
// RunWithGolden compares the text listing of the compiled program with
// testdata/golden/<name>.golden. The listing leaves out fingerprints and the
// trace UUID, so "auto" UUIDs keep golden files stable.
package harness
