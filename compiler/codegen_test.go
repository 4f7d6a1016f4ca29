package compiler

import (
	"strings"
	"testing"
)

func compileSource(t *testing.T, source string) (*Artifact, []Diagnostic) {
	t.Helper()
	sink := NewCommonLogSink()
	toks, err := Tokenize("test.ni", source, sink)
	if err != nil {
		t.Fatalf("Tokenize(%q): %v", source, err)
	}
	stmts, err := Parse(toks)
	if err != nil {
		t.Fatalf("Parse(%q): %v", source, err)
	}
	artifact, err := Generate(stmts, sink)
	if err != nil {
		t.Fatalf("Generate(%q): %v", source, err)
	}
	return artifact, sink.Diagnostics
}

func compileSourceExpectError(t *testing.T, source string) error {
	t.Helper()
	sink := NewCommonLogSink()
	toks, err := Tokenize("test.ni", source, sink)
	if err != nil {
		return err
	}
	stmts, err := Parse(toks)
	if err != nil {
		return err
	}
	_, err = Generate(stmts, sink)
	return err
}

func TestGeneratorOffsetPacking(t *testing.T) {
	g := NewGenerator(nil)
	scope := &genScope{}

	a, err := g.declare(scope, "i8", "a", false, Position{})
	if err != nil {
		t.Fatalf("declare a: %v", err)
	}
	b, err := g.declare(scope, "i16", "b", false, Position{})
	if err != nil {
		t.Fatalf("declare b: %v", err)
	}
	c, err := g.declare(scope, "i32", "c", false, Position{})
	if err != nil {
		t.Fatalf("declare c: %v", err)
	}

	if a.offset != 0 || b.offset != 1 || c.offset != 3 {
		t.Errorf("offsets = %d, %d, %d, want 0, 1, 3", a.offset, b.offset, c.offset)
	}
}

func TestGeneratorDeclarationWithAssignment(t *testing.T) {
	artifact, _ := compileSource(t, "i32 x = 1 + 2;")
	code := string(artifact.Code)

	if !strings.Contains(code, "< LITERAL INT 1\n") {
		t.Errorf("code missing literal 1:\n%s", code)
	}
	if !strings.Contains(code, "< LITERAL INT 2\n") {
		t.Errorf("code missing literal 2:\n%s", code)
	}
	if !strings.Contains(code, "< A {addition} B\n") {
		t.Errorf("code missing addition combine:\n%s", code)
	}
	if !strings.HasSuffix(code, "> STACK[0]\n") {
		t.Errorf("code tail = %q, want suffix \"> STACK[0]\\n\"", code)
	}
}

func TestGeneratorScopeVisibility(t *testing.T) {
	if err := compileSourceExpectError(t, "{ i32 x = 1; } x = 2;"); err == nil {
		t.Fatal("expected an error referencing x outside its scope")
	}

	artifact, _ := compileSource(t, "i32 x = 1; { x = 2; }")
	code := string(artifact.Code)
	if strings.Count(code, "STACK[0]") < 2 {
		t.Errorf("expected both statements to reference STACK[0]:\n%s", code)
	}
}

func TestGeneratorShadowWarns(t *testing.T) {
	_, diags := compileSource(t, "i32 x = 1; { i32 x = 2; }")
	found := false
	for _, d := range diags {
		if d.Severity == SeverityWarn && strings.Contains(d.Message.String(), "shadows") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a shadow warning, got %v", diags)
	}
}

func TestGeneratorConstAssignmentFails(t *testing.T) {
	err := compileSourceExpectError(t, "const i32 x = 1; x = 2;")
	if err == nil {
		t.Fatal("expected an error assigning to a constant")
	}
	ie, ok := err.(*InputError)
	if !ok {
		t.Fatalf("error = %T, want *InputError", err)
	}
	if !strings.Contains(ie.Message.String(), "constant") {
		t.Errorf("error message = %q, want mention of constant", ie.Message)
	}
}

func TestGeneratorConstWithoutAssignmentFails(t *testing.T) {
	if err := compileSourceExpectError(t, "const i32 x;"); err == nil {
		t.Fatal("expected an error declaring a constant without an assignment")
	}
}

func TestGeneratorInvalidTypeIdentifier(t *testing.T) {
	if err := compileSourceExpectError(t, "notAType x = 1;"); err == nil {
		t.Fatal("expected an error for an unknown type identifier")
	}
}

func TestGeneratorWhileJumpsRoundTrip(t *testing.T) {
	artifact, _ := compileSource(t, "i32 i = 0; while (i < 10) { i++; }")
	code := string(artifact.Code)

	// loopEnter.set() happens immediately before the condition's "; EVAL A",
	// so its resolved offset must equal that substring's byte position.
	loopEnterOffset := strings.Index(code, "; EVAL A\n< STACK[0]\n; EVAL B")
	if loopEnterOffset < 0 {
		t.Fatalf("could not locate loop condition in:\n%s", code)
	}

	// loopExit.set() happens right after the body, at the buffer's end.
	loopExitOffset := len(code)

	jmpIfFalseIdx := strings.Index(code, ") JMP IF FALSE ")
	if jmpIfFalseIdx < 0 {
		t.Fatalf("missing JMP IF FALSE in:\n%s", code)
	}
	if target := parsePaddedOffset(code[jmpIfFalseIdx+len(") JMP IF FALSE "):]); target != loopExitOffset {
		t.Errorf("JMP IF FALSE target = %d, want loopExit offset %d", target, loopExitOffset)
	}

	jmpIdx := strings.LastIndex(code, "JMP ")
	if jmpIdx < 0 {
		t.Fatalf("missing trailing JMP in:\n%s", code)
	}
	if target := parsePaddedOffset(code[jmpIdx+len("JMP "):]); target != loopEnterOffset {
		t.Errorf("trailing JMP target = %d, want loopEnter offset %d", target, loopEnterOffset)
	}
}

func parsePaddedOffset(s string) int {
	field := s[:6]
	field = strings.TrimLeft(field, ".")
	n := 0
	for _, r := range field {
		n = n*10 + int(r-'0')
	}
	return n
}

func TestGeneratorForLoopScoping(t *testing.T) {
	artifact, _ := compileSource(t, "for (i32 i = 0; i < 3; i++) { }")
	if len(artifact.Code) == 0 {
		t.Fatal("expected non-empty generated code")
	}

	if err := compileSourceExpectError(t, "for (i32 i = 0; i < 3; i++) { } i = 1;"); err == nil {
		t.Fatal("expected i to be out of scope after the for loop")
	}
}

func TestGeneratorFunctionCallNotImplemented(t *testing.T) {
	err := compileSourceExpectError(t, "foo();")
	if err == nil {
		t.Fatal("expected a not-implemented error")
	}
	if !strings.Contains(err.Error(), "not implemented") {
		t.Errorf("error = %v, want mention of not implemented", err)
	}
}

func TestGeneratorIfElseIfChainMarkers(t *testing.T) {
	artifact, _ := compileSource(t, `
		i32 a = 1;
		if (a == 1) { i32 b = 1; } else if (a == 2) { i32 c = 2; } else { i32 d = 3; }
	`)
	code := string(artifact.Code)
	if strings.Count(code, ") JMP IF TRUE ") != 2 {
		t.Errorf("expected 2 JMP IF TRUE instructions, code:\n%s", code)
	}
}

func TestGeneratorUnknownControlCharacterLocation(t *testing.T) {
	_, err := Tokenize("test.ni", "i32 x\x07= 1;", nil)
	if err == nil {
		t.Fatal("expected a lexer error")
	}
	ie, ok := err.(*InputError)
	if !ok {
		t.Fatalf("error = %T, want *InputError", err)
	}
	if ie.Pos.Line != 1 {
		t.Errorf("error line = %d, want 1", ie.Pos.Line)
	}
}
