package hash

// ---------------------------------------------------------------------------
// Frozen tag bytes for the hashing AST serialization format.
//
// IMPORTANT: These tags are FROZEN. Once assigned, a tag byte must never
// change meaning. Adding new tags is fine; changing existing ones breaks
// all previously computed content hashes.
// ---------------------------------------------------------------------------

// HashVersion is the version prefix for the serialization format.
// Bumping this invalidates all existing content hashes.
const HashVersion byte = 1

// AST node type tags. Each tag uniquely identifies a node kind in the
// serialized byte stream.
const (
	TagReservedZero byte = 0x00 // version prefix / reserved

	// Literal values
	TagIntLiteral    byte = 0x01
	TagFloatLiteral  byte = 0x02
	TagStringLiteral byte = 0x03
	TagBoolLiteral   byte = 0x04

	// Name references
	TagIdent    byte = 0x05
	TagSelector byte = 0x06
	TagIndex    byte = 0x07

	// Operators
	TagUnary   byte = 0x08
	TagLogical byte = 0x09
	TagBinary  byte = 0x0A
	TagCompare byte = 0x0B

	// Calls
	TagCall  byte = 0x0C
	TagKwarg byte = 0x0D

	// Reserved 0x0E-0x0F

	// Statements
	TagIf       byte = 0x10
	TagReturn   byte = 0x11
	TagExprStmt byte = 0x12

	// Structure
	TagScript byte = 0x18
	TagUse    byte = 0x19
	TagState  byte = 0x1A
	TagMember byte = 0x1B

	// Reserved 0xFE-0xFF
)

// allTags lists every defined tag for uniqueness verification in tests.
var allTags = []byte{
	TagReservedZero,
	TagIntLiteral, TagFloatLiteral, TagStringLiteral, TagBoolLiteral,
	TagIdent, TagSelector, TagIndex,
	TagUnary, TagLogical, TagBinary, TagCompare,
	TagCall, TagKwarg,
	TagIf, TagReturn, TagExprStmt,
	TagScript, TagUse, TagState, TagMember,
}
