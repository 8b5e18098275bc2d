package ir

// Version constants for the layout format and compiler.
const (
	// LayoutVersion is the operation-tree schema version. Bump it when the
	// exported tree shape changes so stored fingerprints are not compared
	// across incompatible versions.
	LayoutVersion = "1"

	// CompilerVersion is the tracelayout compiler version.
	CompilerVersion = "0.1.0"
)
