// Package scope assembles the operation trees of every root scope of a
// resolved trace type.
//
// Per data stream type, the packet header and packet context trees are built
// once. The event record header and common context trees form a prefix that
// is also built once per stream; each event record type gets its own copy of
// that prefix extended with its specific context and payload trees.
package scope
