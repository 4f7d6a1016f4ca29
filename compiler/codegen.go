package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Code generator: walks the AST depth-first, emitting a line-oriented
// textual IR into a Buffer and resolving every control-flow jump through
// markers. Scope discipline (declaration, shadowing, const, primitive
// type existence) is enforced inline as each statement is visited; there
// is no separate semantic-analysis pass.
// ---------------------------------------------------------------------------

// primitiveSizes is the fixed primitive-type table driving stack offsets.
var primitiveSizes = map[string]int{
	"i8": 1, "u8": 1,
	"i16": 2, "u16": 2,
	"i32": 4, "u32": 4,
}

// variable is the generator-internal record of a declared binding.
type variable struct {
	typeName string
	name     string
	constant bool
	offset   int
}

// genScope is one lexical level's declarations, plus the flattened view
// of everything visible from enclosing levels. current holds only this
// level's own declarations (collision detection); inherited holds every
// outer level's (shadow-warning detection, and fallback lookup).
type genScope struct {
	current   []variable
	inherited []variable
}

func (s *genScope) lookup(name string) (*variable, bool) {
	for i := range s.current {
		if s.current[i].name == name {
			return &s.current[i], true
		}
	}
	for i := range s.inherited {
		if s.inherited[i].name == name {
			return &s.inherited[i], true
		}
	}
	return nil, false
}

// child returns a fresh scope for a nested block: its inherited list is
// this scope's current and inherited declarations combined, and it
// starts with no declarations of its own.
func (s *genScope) child() *genScope {
	combined := make([]variable, 0, len(s.inherited)+len(s.current))
	combined = append(combined, s.inherited...)
	combined = append(combined, s.current...)
	return &genScope{inherited: combined}
}

// Artifact is the result of a successful code generation pass.
type Artifact struct {
	Code []byte
}

// Generator holds the state threaded through one code-generation pass:
// the output buffer, the diagnostic sink, the running stack offset, and
// a counter used to keep generated marker names unique in diagnostics.
type Generator struct {
	buf          *Buffer
	sink         Sink
	stackOffset  int
	nextMarkerID int
}

// NewGenerator returns a fresh Generator writing into an empty Buffer.
func NewGenerator(sink Sink) *Generator {
	return &Generator{buf: NewBuffer(), sink: sink}
}

// Generate walks stmts as a complete program and returns the resolved
// artifact, or the first InputError raised by a semantic violation.
func Generate(stmts []Statement, sink Sink) (*Artifact, error) {
	g := NewGenerator(sink)
	if err := g.generateStatements(stmts, &genScope{}); err != nil {
		return nil, err
	}
	return &Artifact{Code: g.buf.Resolve(sink)}, nil
}

func (g *Generator) newMarker(label string) *Marker {
	g.nextMarkerID++
	return NewMarker(fmt.Sprintf("%s#%d", label, g.nextMarkerID))
}

func (g *Generator) warn(pos Position, format string, args ...interface{}) {
	if g.sink == nil {
		return
	}
	p := pos
	g.sink.Emit(Diagnostic{Severity: SeverityWarn, Message: Textf(format, args...), Pos: &p})
}

// declare registers a new binding in scope.current, enforcing the
// collision, shadow, and primitive-type-existence rules.
func (g *Generator) declare(scope *genScope, typeName, name string, constant bool, pos Position) (*variable, error) {
	size, ok := primitiveSizes[typeName]
	if !ok {
		return nil, NewInputError(pos, "Invalid type identifier %q", typeName)
	}

	for _, v := range scope.current {
		if v.name == name {
			return nil, NewInputError(pos, "Variable %s is already declared", name)
		}
	}
	for _, v := range scope.inherited {
		if v.name == name {
			g.warn(pos, "Variable %s shadows an outer declaration", name)
			break
		}
	}

	v := variable{typeName: typeName, name: name, constant: constant, offset: g.stackOffset}
	g.stackOffset += size
	scope.current = append(scope.current, v)
	return &scope.current[len(scope.current)-1], nil
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (g *Generator) generateStatements(stmts []Statement, scope *genScope) error {
	for _, st := range stmts {
		if err := g.generateStatement(st, scope); err != nil {
			return err
		}
	}
	return nil
}

func (g *Generator) generateStatement(st Statement, scope *genScope) error {
	switch st := st.(type) {

	case *Declaration:
		if st.Const {
			return NewInputError(st.Pos, "Cannot declare a constant without an assignment")
		}
		_, err := g.declare(scope, st.TypeName, st.Name, false, st.Pos)
		return err

	case *DeclarationWithAssignment:
		if err := g.generateExpression(st.Assignment, scope); err != nil {
			return err
		}
		v, err := g.declare(scope, st.TypeName, st.Name, st.Const, st.Pos)
		if err != nil {
			return err
		}
		g.buf.WriteString(fmt.Sprintf("> STACK[%d]\n", v.offset))
		return nil

	case *Assignment:
		v, ok := scope.lookup(st.Name)
		if !ok {
			return NewInputError(st.Pos, "Variable %s is not declared", st.Name)
		}
		if v.constant {
			return NewInputError(st.Pos, "Cannot assign to a constant variable")
		}
		if err := g.generateExpression(st.Assignment, scope); err != nil {
			return err
		}
		g.buf.WriteString(fmt.Sprintf("> STACK[%d]\n", v.offset))
		return nil

	case *IncrementStatement:
		v, err := g.lookupMutable(st.Name, st.Pos, scope)
		if err != nil {
			return err
		}
		g.buf.WriteString(fmt.Sprintf("STACK[%d]++\n", v.offset))
		return nil

	case *DecrementStatement:
		v, err := g.lookupMutable(st.Name, st.Pos, scope)
		if err != nil {
			return err
		}
		g.buf.WriteString(fmt.Sprintf("STACK[%d]--\n", v.offset))
		return nil

	case *FunctionCallStatement:
		return NewInputError(st.Pos, "Function calls are not implemented")

	case *Scope:
		child := scope.child()
		g.buf.WriteString("; BEGIN SCOPE\n")
		if err := g.generateStatements(st.Statements, child); err != nil {
			return err
		}
		g.buf.WriteString("; END SCOPE\n")
		return nil

	case *If:
		return g.generateIf(st, scope)

	case *While:
		return g.generateWhile(st, scope)

	case *For:
		return g.generateFor(st, scope)

	case *Break:
		return NewInputError(st.Pos, "break is not implemented")

	case *FunctionDeclaration:
		return NewInputError(st.Pos, "Function declarations are not implemented")

	case *Return:
		return NewInputError(st.Pos, "return is not implemented")

	default:
		return fmt.Errorf("compiler: unhandled statement type %T", st)
	}
}

// lookupMutable resolves name for an increment/decrement target, applying
// the "not declared"/"constant variable" checks shared by both operators.
func (g *Generator) lookupMutable(name string, pos Position, scope *genScope) (*variable, error) {
	v, ok := scope.lookup(name)
	if !ok {
		return nil, NewInputError(pos, "Variable %s is not declared", name)
	}
	if v.constant {
		return nil, NewInputError(pos, "Cannot modify a constant variable")
	}
	return v, nil
}

func (g *Generator) generateIf(st *If, scope *genScope) error {
	ifEnter := make([]*Marker, len(st.Blocks))
	for i := range st.Blocks {
		ifEnter[i] = g.newMarker("ifEnter")
	}
	elseEnter := g.newMarker("elseEnter")
	ifExit := g.newMarker("ifExit")

	for i, block := range st.Blocks {
		if err := g.generateExpression(block.Condition, scope); err != nil {
			return err
		}
		g.buf.Use(ifEnter[i], 21, jmpIfTrue)
	}
	g.buf.Use(elseEnter, 11, jmpTo)

	for i, block := range st.Blocks {
		g.buf.Set(ifEnter[i])
		child := scope.child()
		g.buf.WriteString("{\n")
		if err := g.generateStatements(block.Statements, child); err != nil {
			return err
		}
		g.buf.WriteString("}\n")
		g.buf.Use(ifExit, 11, jmpTo)
	}

	g.buf.Set(elseEnter)
	if st.ElseBlock != nil {
		child := scope.child()
		g.buf.WriteString("{\n")
		if err := g.generateStatements(st.ElseBlock, child); err != nil {
			return err
		}
		g.buf.WriteString("}\n")
	}

	g.buf.Set(ifExit)
	return nil
}

func (g *Generator) generateWhile(st *While, scope *genScope) error {
	if st.DoWhile {
		loopEnter := g.newMarker("loopEnter")
		g.buf.Set(loopEnter)
		child := scope.child()
		if err := g.generateStatements(st.Statements, child); err != nil {
			return err
		}
		if err := g.generateExpression(st.Condition, scope); err != nil {
			return err
		}
		g.buf.Use(loopEnter, 21, jmpIfTrue)
		return nil
	}

	loopEnter := g.newMarker("loopEnter")
	loopExit := g.newMarker("loopExit")
	g.buf.Set(loopEnter)
	if err := g.generateExpression(st.Condition, scope); err != nil {
		return err
	}
	g.buf.Use(loopExit, 22, jmpIfFalse)
	child := scope.child()
	if err := g.generateStatements(st.Statements, child); err != nil {
		return err
	}
	g.buf.Use(loopEnter, 11, jmpTo)
	g.buf.Set(loopExit)
	return nil
}

func (g *Generator) generateFor(st *For, scope *genScope) error {
	actionMarker := g.newMarker("actionMarker")
	conditionMarker := g.newMarker("conditionMarker")
	loopExitMarker := g.newMarker("loopExitMarker")

	forScope := scope.child()
	if st.Initialization != nil {
		if err := g.generateStatement(st.Initialization, forScope); err != nil {
			return err
		}
	}

	g.buf.Use(conditionMarker, 11, jmpTo)

	g.buf.Set(actionMarker)
	if st.Action != nil {
		if err := g.generateStatement(st.Action, forScope); err != nil {
			return err
		}
	}

	g.buf.Set(conditionMarker)
	if st.Condition != nil {
		if err := g.generateExpression(st.Condition, forScope); err != nil {
			return err
		}
		g.buf.Use(loopExitMarker, 22, jmpIfFalse)
	}

	bodyScope := forScope.child()
	if err := g.generateStatements(st.Statements, bodyScope); err != nil {
		return err
	}

	g.buf.Use(actionMarker, 11, jmpTo)

	if st.Condition != nil {
		g.buf.Set(loopExitMarker)
	}

	return nil
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (g *Generator) generateExpression(expr Expression, scope *genScope) error {
	switch e := expr.(type) {

	case *IntegerLiteral:
		g.buf.WriteString(fmt.Sprintf("< LITERAL INT %d\n", e.Value))
		return nil

	case *FloatLiteral:
		g.buf.WriteString(fmt.Sprintf("< LITERAL FLOAT %v\n", e.Value))
		return nil

	case *StringLiteral:
		g.buf.WriteString(fmt.Sprintf("< LITERAL STRING %s\n", e.Value))
		return nil

	case *Variable:
		v, ok := scope.lookup(e.Name)
		if !ok {
			return NewInputError(e.Pos, "Variable %s is not declared", e.Name)
		}
		g.buf.WriteString(fmt.Sprintf("< STACK[%d]\n", v.offset))
		return nil

	case *Increment:
		v, err := g.lookupMutable(e.Name, e.Pos, scope)
		if err != nil {
			return err
		}
		g.buf.WriteString(fmt.Sprintf("STACK[%d]++\n", v.offset))
		return nil

	case *Decrement:
		v, err := g.lookupMutable(e.Name, e.Pos, scope)
		if err != nil {
			return err
		}
		g.buf.WriteString(fmt.Sprintf("STACK[%d]--\n", v.offset))
		return nil

	case *SubExpression:
		return g.generateExpression(e.Inner, scope)

	case *FunctionCall:
		return NewInputError(e.Pos, "Function calls are not implemented")

	case *BinaryExpression:
		g.buf.WriteString("; EVAL A\n")
		if err := g.generateExpression(e.Left, scope); err != nil {
			return err
		}
		g.buf.WriteString("; EVAL B\n")
		if err := g.generateExpression(e.Right, scope); err != nil {
			return err
		}
		g.buf.WriteString(fmt.Sprintf("< A {%s} B\n", e.Op))
		return nil

	default:
		return fmt.Errorf("compiler: unhandled expression type %T", e)
	}
}
