package decoder

import (
	"fmt"
	"sort"

	"solana-copy-trader/internal/domain"
)

// Registry maps program IDs to decoders. It is read-only after construction
// and safe for concurrent use.
type Registry struct {
	decoders map[string]Decoder // programID -> decoder
}

// NewRegistry creates a registry with the four supported protocols registered.
func NewRegistry() *Registry {
	r := &Registry{
		decoders: make(map[string]Decoder),
	}

	r.Register(NewRaydiumCPMM())
	r.Register(NewRaydiumAMMV4())
	r.Register(NewRaydiumCLMM())
	r.Register(NewPumpFun())

	return r
}

// Register adds a decoder keyed by its program ID, replacing any previous one.
// Registration must happen before the registry is shared.
func (r *Registry) Register(d Decoder) {
	r.decoders[d.ProgramID()] = d
}

// Lookup returns the decoder for a program ID.
func (r *Registry) Lookup(programID string) (Decoder, bool) {
	d, ok := r.decoders[programID]
	return d, ok
}

// Decode decodes one instruction. Returns ErrUnknownProgram for unregistered programs.
func (r *Registry) Decode(ix domain.Instruction) (*Fragment, error) {
	d, ok := r.decoders[ix.ProgramID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProgram, ix.ProgramID)
	}
	return d.Decode(ix.Data, ix.Accounts)
}

// Programs returns registered program IDs, sorted.
func (r *Registry) Programs() []string {
	ids := make([]string, 0, len(r.decoders))
	for id := range r.decoders {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ProgramFor returns the program ID registered for a protocol.
func (r *Registry) ProgramFor(p domain.ProtocolKind) (string, bool) {
	for id, d := range r.decoders {
		if d.Protocol() == p {
			return id, true
		}
	}
	return "", false
}
