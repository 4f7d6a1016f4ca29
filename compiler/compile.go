package compiler

import (
	"fmt"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Driver glue: composes the three stages and tags each run with a request
// id, so diagnostics logged by nitroc and nitro-lsp in the same process
// can be correlated across concurrent compiles.
// ---------------------------------------------------------------------------

// SupportedTargets is the fixed set of target tags the generator accepts.
var SupportedTargets = map[string]bool{"debug": true}

// Compile runs the lexer, parser, and code generator in sequence over
// source, returning the produced artifact or the first InputError raised
// by any stage. target must be a member of SupportedTargets.
func Compile(filename, source, target string, sink Sink) (*Artifact, error) {
	if !SupportedTargets[target] {
		return nil, fmt.Errorf("unsupported target %q", target)
	}

	requestID := uuid.New()
	if sink != nil {
		sink.Emit(Diagnostic{
			Severity: SeverityInfo,
			Message:  Textf("compiling %s (request %s)", filename, requestID),
		})
	}

	tokens, err := Tokenize(filename, source, sink)
	if err != nil {
		return nil, err
	}

	stmts, err := Parse(tokens)
	if err != nil {
		return nil, err
	}

	artifact, err := Generate(stmts, sink)
	if err != nil {
		return nil, err
	}

	return artifact, nil
}
