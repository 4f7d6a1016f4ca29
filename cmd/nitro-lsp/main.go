// Command nitro-lsp runs a Language Server Protocol front end that
// publishes the diagnostics produced by the Nitro compiler as editor
// diagnostics.
package main

import (
	"sync"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/Mirrrek/nitrogen/compiler"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "nitro-lsp"

// server bridges LSP document events to the compiler pipeline.
type server struct {
	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	glsp    *glspserver.Server
	version string
}

func newServer() *server {
	s := &server{
		docs:    make(map[string]string),
		version: "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,
	}

	s.glsp = glspserver.NewServer(&s.handler, lspName, false)
	return s
}

func (s *server) run() error {
	return s.glsp.RunStdio()
}

func (s *server) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	commonlog.NewInfoMessage(0, "nitro-lsp initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *server) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *server) shutdown(ctx *glsp.Context) error {
	return nil
}

func (s *server) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

func (s *server) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()

	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *server) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.mu.Lock()
			s.docs[string(uri)] = whole.Text
			text := whole.Text
			s.mu.Unlock()

			s.publishDiagnostics(ctx, uri, text)
		}
	}
	return nil
}

func (s *server) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

func (s *server) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	sink := compiler.NewCommonLogSink()
	_, compileErr := compiler.Compile(string(uri), text, "debug", sink)

	var diagnostics []protocol.Diagnostic
	for _, d := range sink.Diagnostics {
		diagnostics = append(diagnostics, toLSPDiagnostic(d))
	}
	if compileErr != nil {
		if ie, ok := compileErr.(*compiler.InputError); ok {
			diagnostics = append(diagnostics, toLSPDiagnostic(compiler.Diagnostic{
				Severity: compiler.SeverityError,
				Message:  ie.Message,
				Pos:      &ie.Pos,
			}))
		}
	}

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

func toLSPDiagnostic(d compiler.Diagnostic) protocol.Diagnostic {
	severity := lspSeverity(d.Severity)
	source := lspName

	line, col := 0, 0
	if d.Pos != nil {
		line = d.Pos.Line - 1
		col = d.Pos.Column - 1
	}

	return protocol.Diagnostic{
		Range: protocol.Range{
			Start: protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(col)},
			End:   protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(col)},
		},
		Severity: &severity,
		Source:   &source,
		Message:  d.Message.String(),
	}
}

func lspSeverity(sev compiler.Severity) protocol.DiagnosticSeverity {
	switch sev {
	case compiler.SeverityError:
		return protocol.DiagnosticSeverityError
	case compiler.SeverityWarn:
		return protocol.DiagnosticSeverityWarning
	default:
		return protocol.DiagnosticSeverityInformation
	}
}

func boolPtr(b bool) *bool {
	return &b
}

func main() {
	s := newServer()
	if err := s.run(); err != nil {
		commonlog.NewErrorMessage(0, err.Error())
	}
}
