package scope

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/roach88/tracelayout/internal/ir"
	"github.com/roach88/tracelayout/internal/layout"
)

// Program holds the operation trees of every root scope of a trace.
type Program struct {
	Trace   *ir.TraceType
	Policy  layout.AlignPolicy
	Streams []*StreamOps
}

// Stream returns the data stream type named name.
func (p *Program) Stream(name string) (*StreamOps, bool) {
	for _, s := range p.Streams {
		if s.Type.Name == name {
			return s, true
		}
	}
	return nil, false
}

// StreamOps holds the packet trees of one data stream type and the
// per-record trees of its event record types.
type StreamOps struct {
	Type *ir.DataStreamType
	// PacketHeader is the trace packet header compiled for this stream, nil
	// when the trace has none.
	PacketHeader  *layout.Compound
	PacketContext *layout.Compound
	Records       []*RecordOps
}

// Record returns the event record type named name.
func (s *StreamOps) Record(name string) (*RecordOps, bool) {
	for _, r := range s.Records {
		if r.Type.Name == name {
			return r, true
		}
	}
	return nil, false
}

// Packet returns the present packet scopes in emission order.
func (s *StreamOps) Packet() []ScopedTree {
	var out []ScopedTree
	if s.PacketHeader != nil {
		out = append(out, ScopedTree{PacketHeader, s.PacketHeader})
	}
	if s.PacketContext != nil {
		out = append(out, ScopedTree{PacketContext, s.PacketContext})
	}
	return out
}

// ScopedTree is a root scope with its compiled tree.
type ScopedTree struct {
	Scope RootScope
	Tree  *layout.Compound
}

// RecordOps holds the ordered event record trees of one event record type:
// the stream's shared prefix followed by the record's own scopes.
type RecordOps struct {
	Type    *ir.EventRecordType
	actions []ScopedTree
}

// Scope returns the tree compiled for scope, if present.
func (r *RecordOps) Scope(scope RootScope) (*layout.Compound, bool) {
	for _, a := range r.actions {
		if a.Scope == scope {
			return a.Tree, true
		}
	}
	return nil, false
}

// Scopes returns the present scopes keyed by root scope. The map is a copy.
func (r *RecordOps) Scopes() map[RootScope]*layout.Compound {
	out := make(map[RootScope]*layout.Compound, len(r.actions))
	for _, a := range r.actions {
		out[a.Scope] = a.Tree
	}
	return out
}

// Actions returns the present scopes in emission order. The slice is a copy.
func (r *RecordOps) Actions() []ScopedTree {
	return slices.Clone(r.actions)
}

// Option configures Assemble.
type Option func(*assembler)

// WithOverrides replaces the default override table of one root scope.
// A nil table disables overrides for that scope.
func WithOverrides(scope RootScope, table map[string]layout.WriteKind) Option {
	table = maps.Clone(table)
	return func(a *assembler) {
		a.overrides[scope] = table
	}
}

// WithAlignPolicy sets the alignment policy of every built tree.
func WithAlignPolicy(p layout.AlignPolicy) Option {
	return func(a *assembler) {
		a.policy = p
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *assembler) {
		a.logger = logger
	}
}

type assembler struct {
	overrides map[RootScope]map[string]layout.WriteKind
	policy    layout.AlignPolicy
	logger    *slog.Logger
}

// Assemble compiles every present root scope of the resolved trace tt.
func Assemble(tt *ir.TraceType, opts ...Option) (*Program, error) {
	a := &assembler{
		overrides: make(map[RootScope]map[string]layout.WriteKind),
		logger:    slog.Default(),
	}
	for _, s := range RootScopes() {
		a.overrides[s] = DefaultOverrides(s)
	}
	for _, opt := range opts {
		opt(a)
	}

	if tt == nil || !tt.Resolved() {
		return nil, &ir.ContractError{Code: ir.ErrUnresolved, Message: "trace type is not resolved"}
	}

	prog := &Program{Trace: tt, Policy: a.policy}
	for _, dst := range tt.DataStreamTypes {
		stream, err := a.assembleStream(tt, dst)
		if err != nil {
			return nil, fmt.Errorf("data stream type %q: %w", dst.Name, err)
		}
		prog.Streams = append(prog.Streams, stream)
	}
	return prog, nil
}

func (a *assembler) assembleStream(tt *ir.TraceType, dst *ir.DataStreamType) (*StreamOps, error) {
	stream := &StreamOps{Type: dst}

	var err error
	if stream.PacketHeader, err = a.build(PacketHeader, tt.PacketHeader); err != nil {
		return nil, err
	}
	if stream.PacketContext, err = a.build(PacketContext, dst.PacketContext); err != nil {
		return nil, err
	}

	prefix, err := a.buildAll([]scopeInput{
		{EventRecordHeader, dst.EventRecordHeader},
		{EventRecordCommonContext, dst.EventRecordCommonContext},
	})
	if err != nil {
		return nil, err
	}

	for _, ert := range dst.EventRecordTypes {
		own, err := a.buildAll([]scopeInput{
			{EventRecordSpecificContext, ert.SpecificContext},
			{EventRecordPayload, ert.Payload},
		})
		if err != nil {
			return nil, fmt.Errorf("event record type %q: %w", ert.Name, err)
		}

		actions := make([]ScopedTree, 0, len(prefix)+len(own))
		actions = append(actions, prefix...)
		actions = append(actions, own...)
		stream.Records = append(stream.Records, &RecordOps{Type: ert, actions: actions})

		a.logger.Debug("assembled event record type",
			"stream", dst.Name,
			"record", ert.Name,
			"id", ert.EventRecordTypeID(),
			"scopes", len(actions),
		)
	}

	a.logger.Debug("assembled data stream type",
		"stream", dst.Name,
		"id", dst.DataStreamTypeID(),
		"records", len(stream.Records),
		"policy", a.policy.String(),
	)
	return stream, nil
}

type scopeInput struct {
	scope RootScope
	ft    *ir.FieldType
}

func (a *assembler) buildAll(inputs []scopeInput) ([]ScopedTree, error) {
	var out []ScopedTree
	for _, in := range inputs {
		tree, err := a.build(in.scope, in.ft)
		if err != nil {
			return nil, err
		}
		if tree != nil {
			out = append(out, ScopedTree{in.scope, tree})
		}
	}
	return out, nil
}

// build compiles one root scope; an absent scope yields a nil tree.
func (a *assembler) build(scope RootScope, ft *ir.FieldType) (*layout.Compound, error) {
	if ft == nil {
		return nil, nil
	}
	tree, err := layout.Build(ft, scope.Prefix(),
		layout.WithOverrides(a.overrides[scope]),
		layout.WithAlignPolicy(a.policy),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", scope, err)
	}
	return tree, nil
}
