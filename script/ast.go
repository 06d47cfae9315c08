package script

// ---------------------------------------------------------------------------
// AST: Abstract syntax tree for state scripts
// ---------------------------------------------------------------------------

// Position represents a source location.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

// Span represents a range in source code.
type Span struct {
	Start Position
	End   Position
}

// Node is the interface implemented by all AST nodes.
type Node interface {
	Span() Span
	node() // marker method
}

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

// UnaryOp identifies a unary operator.
type UnaryOp int

const (
	OpNeg UnaryOp = iota // -x
	OpNot                // not x
)

func (op UnaryOp) String() string {
	switch op {
	case OpNeg:
		return "-"
	case OpNot:
		return "not"
	}
	return "?"
}

// LogicalOp identifies a logical chain operator.
type LogicalOp int

const (
	OpAnd LogicalOp = iota
	OpOr
)

func (op LogicalOp) String() string {
	if op == OpAnd {
		return "and"
	}
	return "or"
}

// BinaryOp identifies an arithmetic operator.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
)

var binaryOpNames = [...]string{"+", "-", "*", "/", "%"}

func (op BinaryOp) String() string {
	if int(op) < len(binaryOpNames) {
		return binaryOpNames[op]
	}
	return "?"
}

// CompareOp identifies a comparison operator.
type CompareOp int

const (
	OpEq CompareOp = iota
	OpNotEq
	OpLt
	OpGt
	OpLtEq
	OpGtEq
)

var compareOpNames = [...]string{"==", "!=", "<", ">", "<=", ">="}

func (op CompareOp) String() string {
	if int(op) < len(compareOpNames) {
		return compareOpNames[op]
	}
	return "?"
}

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

// Expr is the interface for expression nodes.
type Expr interface {
	Node
	expr() // marker method
}

// IntLiteral represents an integer literal.
type IntLiteral struct {
	SpanVal Span
	Value   int64
}

func (n *IntLiteral) Span() Span { return n.SpanVal }
func (n *IntLiteral) node()      {}
func (n *IntLiteral) expr()      {}

// FloatLiteral represents a floating-point literal.
type FloatLiteral struct {
	SpanVal Span
	Value   float64
}

func (n *FloatLiteral) Span() Span { return n.SpanVal }
func (n *FloatLiteral) node()      {}
func (n *FloatLiteral) expr()      {}

// StringLiteral represents a string literal.
type StringLiteral struct {
	SpanVal Span
	Value   string
}

func (n *StringLiteral) Span() Span { return n.SpanVal }
func (n *StringLiteral) node()      {}
func (n *StringLiteral) expr()      {}

// BoolLiteral represents true or false.
type BoolLiteral struct {
	SpanVal Span
	Value   bool
}

func (n *BoolLiteral) Span() Span { return n.SpanVal }
func (n *BoolLiteral) node()      {}
func (n *BoolLiteral) expr()      {}

// Ident represents a bare name (state names, MACHINE_CALL_STATUS, ONGOING).
type Ident struct {
	SpanVal Span
	Name    string
}

func (n *Ident) Span() Span { return n.SpanVal }
func (n *Ident) node()      {}
func (n *Ident) expr()      {}

// Selector represents a qualified constant reference (Module.Member).
type Selector struct {
	SpanVal Span
	Module  string
	Member  string
}

func (n *Selector) Span() Span { return n.SpanVal }
func (n *Selector) node()      {}
func (n *Selector) expr()      {}

// Index represents an indexed name (MACHINE_ARGS[0], CALL_STATE_MACHINE[n]).
type Index struct {
	SpanVal Span
	Name    string
	Index   Expr
}

func (n *Index) Span() Span { return n.SpanVal }
func (n *Index) node()      {}
func (n *Index) expr()      {}

// Unary represents a unary operation (-x, not x).
type Unary struct {
	SpanVal Span
	Op      UnaryOp
	Operand Expr
}

func (n *Unary) Span() Span { return n.SpanVal }
func (n *Unary) node()      {}
func (n *Unary) expr()      {}

// Logical represents an and/or chain with two or more operands. Consecutive
// operands joined by the same operator are flattened into one node.
type Logical struct {
	SpanVal  Span
	Op       LogicalOp
	Operands []Expr
}

func (n *Logical) Span() Span { return n.SpanVal }
func (n *Logical) node()      {}
func (n *Logical) expr()      {}

// Binary represents an arithmetic operation.
type Binary struct {
	SpanVal Span
	Op      BinaryOp
	Left    Expr
	Right   Expr
}

func (n *Binary) Span() Span { return n.SpanVal }
func (n *Binary) node()      {}
func (n *Binary) expr()      {}

// Compare represents a comparison with exactly one operator.
type Compare struct {
	SpanVal Span
	Op      CompareOp
	Left    Expr
	Right   Expr
}

func (n *Compare) Span() Span { return n.SpanVal }
func (n *Compare) node()      {}
func (n *Compare) expr()      {}

// Kwarg is a keyword argument in a command call.
type Kwarg struct {
	Name    string
	NamePos Position
	Value   Expr
}

// Call represents a function call. Func is an *Ident for ordinary calls or an
// *Index for submachine calls (CALL_STATE_MACHINE[n](...)).
type Call struct {
	SpanVal Span
	Func    Expr
	Args    []Expr
	Kwargs  []Kwarg
}

func (n *Call) Span() Span { return n.SpanVal }
func (n *Call) node()      {}
func (n *Call) expr()      {}

// ---------------------------------------------------------------------------
// Statement nodes
// ---------------------------------------------------------------------------

// Stmt is the interface for statement nodes.
type Stmt interface {
	Node
	stmt() // marker method
}

// If represents a conditional block with an optional else block.
type If struct {
	SpanVal Span
	Test    Expr
	Body    []Stmt
	Else    []Stmt
}

func (n *If) Span() Span { return n.SpanVal }
func (n *If) node()      {}
func (n *If) stmt()      {}

// Return represents a next-state return (a state name or -1).
type Return struct {
	SpanVal Span
	Value   Expr
}

func (n *Return) Span() Span { return n.SpanVal }
func (n *Return) node()      {}
func (n *Return) stmt()      {}

// ExprStmt represents an expression used as a statement (command calls).
type ExprStmt struct {
	SpanVal Span
	Expr    Expr
}

func (n *ExprStmt) Span() Span { return n.SpanVal }
func (n *ExprStmt) node()      {}
func (n *ExprStmt) stmt()      {}

// ---------------------------------------------------------------------------
// Declaration nodes
// ---------------------------------------------------------------------------

// UseDecl names a constants file to load into the symbol table.
type UseDecl struct {
	SpanVal Span
	Path    string
}

func (n *UseDecl) Span() Span { return n.SpanVal }
func (n *UseDecl) node()      {}

// MemberBlock is one member of a state declaration: a test/enter/exit/ongoing
// block, a previous_states list, or an unrecognized member left for the
// assembler to reject.
type MemberBlock struct {
	SpanVal Span
	Kind    string
	Body    []Stmt  // nil for previous_states
	Prev    []int64 // previous_states indices, informational
}

func (n *MemberBlock) Span() Span { return n.SpanVal }
func (n *MemberBlock) node()      {}

// StateDecl represents one state. The annotation is the required leading
// string ("N" or "N: description"); its position is kept for error reporting.
type StateDecl struct {
	SpanVal    Span
	Name       string
	Annotation string
	AnnPos     Position
	Members    []*MemberBlock
}

func (n *StateDecl) Span() Span { return n.SpanVal }
func (n *StateDecl) node()      {}

// Script is the root node: one script describes one state machine.
type Script struct {
	SpanVal     Span
	Name        string // source name, usually the file path
	Description string // optional machine description
	Uses        []*UseDecl
	States      []*StateDecl
}

func (n *Script) Span() Span { return n.SpanVal }
func (n *Script) node()      {}

// ---------------------------------------------------------------------------
// Helper functions
// ---------------------------------------------------------------------------

// MakeSpan creates a span from start and end positions.
func MakeSpan(start, end Position) Span {
	return Span{Start: start, End: end}
}
