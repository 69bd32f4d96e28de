// Package codec converts events to and from the probelog binary record format.
//
// A trace is a plain concatenation of records with no header, no version and
// no length prefix:
//
//	record    = index:u64le kind:u8 payload
//	call      = location:cstr static:u8 argc:u8 value*argc      (kind 0x2)
//	store     = class:cstr line:i32le name:cstr value            (kind 0x1)
//	arraystore= class:cstr line:i32le array:u32le idx:i32le value (kind 0x3)
//	value     = tag:u8 bytes
//
// cstr is UTF-8 text followed by one NUL byte. Primitive value bytes are
// little-endian and fixed width (Z,B=1 C,S=2 I,F=4 J,D=8); floats are written
// by bit pattern. A reference (tag L) is a cstr class name followed by either a
// u32le length and that many content bytes (java.lang.String) or a u32le
// identity tag (anything else).
//
// Because nothing is length-prefixed, a reader cannot skip a record kind it
// does not understand. Readers and writers must agree on the format revision;
// an unknown kind is reported as a FormatError, never skipped.
package codec
