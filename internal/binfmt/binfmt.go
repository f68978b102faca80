// Package binfmt implements the versioned binary serialization of a
// compiled Program (§4.3): a bytecode image is the pair (function table,
// main instruction sequence), written as magic bytes, a format version, and
// a length-prefixed encoding of every function followed by main. Encoding
// follows the teacher's compiler/asm.go varint conventions
// (encoding/binary), adapted from its textual assembler form to wisp's true
// binary image.
package binfmt

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/pkg/errors"

	"github.com/wisplang/wisp/internal/bytecode"
)

// Magic is the 4-byte file signature every .bc file must start with.
var Magic = [4]byte{'W', 'I', 'S', 'P'}

// Version is the current format version. A mismatched version is a hard
// failure (§4.3: "Forward-compatibility is not guaranteed").
const Version = 1

// Encode serializes p into wisp's binary bytecode format.
func Encode(p *bytecode.Program) []byte {
	var buf bytes.Buffer
	buf.Write(Magic[:])
	buf.WriteByte(Version)

	writeUvarint(&buf, uint64(len(p.Functions)))
	for _, fn := range p.Functions {
		writeString(&buf, fn.Name)
		writeInt64(&buf, int64(len(fn.Params)))
		for _, p := range fn.Params {
			writeString(&buf, p)
		}
		if fn.HasRest {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
		writeCode(&buf, fn.Code)
	}
	writeCode(&buf, p.Main)
	return buf.Bytes()
}

// Decode deserializes a wisp binary bytecode image. It rejects a wrong
// magic number or an unsupported version with a clear, specific error
// (§4.3).
func Decode(data []byte) (*bytecode.Program, error) {
	r := bytes.NewReader(data)

	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, errors.Wrap(err, "reading magic bytes")
	}
	if magic != Magic {
		return nil, fmt.Errorf("not a wisp bytecode file: bad magic %q, want %q", magic, Magic)
	}

	version, err := r.ReadByte()
	if err != nil {
		return nil, errors.Wrap(err, "reading format version")
	}
	if version != Version {
		return nil, fmt.Errorf("unsupported bytecode format version %d, this toolchain supports version %d", version, Version)
	}

	nfuncs, err := readUvarint(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading function count")
	}

	p := &bytecode.Program{Functions: make([]bytecode.Function, nfuncs)}
	for i := range p.Functions {
		name, err := readString(r)
		if err != nil {
			return nil, errors.Wrapf(err, "reading function %d name", i)
		}
		np, err := readInt64(r)
		if err != nil {
			return nil, errors.Wrapf(err, "reading function %q param count", name)
		}
		params := make([]string, np)
		for j := range params {
			params[j], err = readString(r)
			if err != nil {
				return nil, errors.Wrapf(err, "reading function %q param %d", name, j)
			}
		}
		hasRestB, err := r.ReadByte()
		if err != nil {
			return nil, errors.Wrapf(err, "reading function %q variadic flag", name)
		}
		code, err := readCode(r)
		if err != nil {
			return nil, errors.Wrapf(err, "reading function %q code", name)
		}
		p.Functions[i] = bytecode.Function{Name: name, Code: code, Params: params, HasRest: hasRestB != 0}
	}

	main, err := readCode(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading main code")
	}
	p.Main = main
	return p, nil
}

func writeUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

func readUvarint(r *bytes.Reader) (int, error) {
	v, err := binary.ReadUvarint(r)
	return int(v), err
}

func writeInt64(buf *bytes.Buffer, v int64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(v))
	buf.Write(tmp[:])
}

func readInt64(r *bytes.Reader) (int64, error) {
	var tmp [8]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(tmp[:])), nil
}

func writeString(buf *bytes.Buffer, s string) {
	writeInt64(buf, int64(len(s)))
	buf.WriteString(s)
}

func readString(r *bytes.Reader) (string, error) {
	n, err := readInt64(r)
	if err != nil {
		return "", err
	}
	if n < 0 {
		return "", fmt.Errorf("negative string length %d", n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

func writeCode(buf *bytes.Buffer, code []bytecode.Instruction) {
	writeUvarint(buf, uint64(len(code)))
	for _, insn := range code {
		writeInstruction(buf, insn)
	}
}

func readCode(r *bytes.Reader) ([]bytecode.Instruction, error) {
	n, err := readUvarint(r)
	if err != nil {
		return nil, err
	}
	code := make([]bytecode.Instruction, n)
	for i := range code {
		insn, err := readInstruction(r)
		if err != nil {
			return nil, errors.Wrapf(err, "instruction %d", i)
		}
		code[i] = insn
	}
	return code, nil
}

func writeInstruction(buf *bytes.Buffer, insn bytecode.Instruction) {
	buf.WriteByte(byte(insn.Op))
	switch insn.Op {
	case bytecode.PUSH:
		writeLiteral(buf, insn.Lit)

	case bytecode.POPN, bytecode.SLIDE, bytecode.MAKELIST, bytecode.MAKEVECTOR,
		bytecode.MAKEHASHMAP, bytecode.LOADARG, bytecode.GETLOCAL, bytecode.SETLOCAL,
		bytecode.PACKRESTARGS, bytecode.LOADCAPTURED, bytecode.BEGINLOOP, bytecode.RECUR:
		writeInt64(buf, int64(insn.N))

	case bytecode.JMP, bytecode.JMPIFFALSE:
		writeInt64(buf, int64(insn.Addr))

	case bytecode.CHECKARITY:
		writeInt64(buf, int64(insn.N))
		writeInt64(buf, int64(insn.Addr))

	case bytecode.CALL, bytecode.TAILCALL:
		writeString(buf, insn.Name)
		writeInt64(buf, int64(insn.Argc))

	case bytecode.LOADGLOBAL, bytecode.STOREGLOBAL:
		writeString(buf, insn.Name)

	case bytecode.MAKECLOSURE, bytecode.MAKEVARIADICCLOSURE:
		writeInt64(buf, int64(len(insn.Params)))
		for _, p := range insn.Params {
			writeString(buf, p)
		}
		if insn.Op == bytecode.MAKEVARIADICCLOSURE {
			writeString(buf, insn.Rest)
		}
		writeInt64(buf, int64(len(insn.CapturedNames)))
		for _, n := range insn.CapturedNames {
			writeString(buf, n)
		}
		writeCode(buf, insn.Body)
	}
}

func readInstruction(r *bytes.Reader) (bytecode.Instruction, error) {
	opb, err := r.ReadByte()
	if err != nil {
		return bytecode.Instruction{}, err
	}
	op := bytecode.Op(opb)
	insn := bytecode.Instruction{Op: op}

	switch op {
	case bytecode.PUSH:
		lit, err := readLiteral(r)
		if err != nil {
			return insn, err
		}
		insn.Lit = lit

	case bytecode.POPN, bytecode.SLIDE, bytecode.MAKELIST, bytecode.MAKEVECTOR,
		bytecode.MAKEHASHMAP, bytecode.LOADARG, bytecode.GETLOCAL, bytecode.SETLOCAL,
		bytecode.PACKRESTARGS, bytecode.LOADCAPTURED, bytecode.BEGINLOOP, bytecode.RECUR:
		n, err := readInt64(r)
		if err != nil {
			return insn, err
		}
		insn.N = int(n)

	case bytecode.JMP, bytecode.JMPIFFALSE:
		a, err := readInt64(r)
		if err != nil {
			return insn, err
		}
		insn.Addr = int(a)

	case bytecode.CHECKARITY:
		n, err := readInt64(r)
		if err != nil {
			return insn, err
		}
		a, err := readInt64(r)
		if err != nil {
			return insn, err
		}
		insn.N, insn.Addr = int(n), int(a)

	case bytecode.CALL, bytecode.TAILCALL:
		name, err := readString(r)
		if err != nil {
			return insn, err
		}
		argc, err := readInt64(r)
		if err != nil {
			return insn, err
		}
		insn.Name, insn.Argc = name, int(argc)

	case bytecode.LOADGLOBAL, bytecode.STOREGLOBAL:
		name, err := readString(r)
		if err != nil {
			return insn, err
		}
		insn.Name = name

	case bytecode.MAKECLOSURE, bytecode.MAKEVARIADICCLOSURE:
		np, err := readInt64(r)
		if err != nil {
			return insn, err
		}
		params := make([]string, np)
		for i := range params {
			params[i], err = readString(r)
			if err != nil {
				return insn, err
			}
		}
		insn.Params = params
		if op == bytecode.MAKEVARIADICCLOSURE {
			insn.Rest, err = readString(r)
			if err != nil {
				return insn, err
			}
		}
		ncap, err := readInt64(r)
		if err != nil {
			return insn, err
		}
		insn.NCap = int(ncap)
		insn.CapturedNames = make([]string, ncap)
		for i := range insn.CapturedNames {
			insn.CapturedNames[i], err = readString(r)
			if err != nil {
				return insn, err
			}
		}
		body, err := readCode(r)
		if err != nil {
			return insn, err
		}
		insn.Body = body
	}
	return insn, nil
}

func writeLiteral(buf *bytes.Buffer, lit bytecode.Literal) {
	buf.WriteByte(byte(lit.Kind))
	switch lit.Kind {
	case bytecode.LitInt:
		writeInt64(buf, lit.Int)
	case bytecode.LitFloat:
		writeInt64(buf, int64(math.Float64bits(lit.Flt)))
	case bytecode.LitBool:
		if lit.Bool {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case bytecode.LitString, bytecode.LitSymbol:
		writeString(buf, lit.Str)
	case bytecode.LitNil:
		// no payload
	}
}

func readLiteral(r *bytes.Reader) (bytecode.Literal, error) {
	kb, err := r.ReadByte()
	if err != nil {
		return bytecode.Literal{}, err
	}
	kind := bytecode.LiteralKind(kb)
	lit := bytecode.Literal{Kind: kind}
	switch kind {
	case bytecode.LitInt:
		v, err := readInt64(r)
		if err != nil {
			return lit, err
		}
		lit.Int = v
	case bytecode.LitFloat:
		v, err := readInt64(r)
		if err != nil {
			return lit, err
		}
		lit.Flt = math.Float64frombits(uint64(v))
	case bytecode.LitBool:
		b, err := r.ReadByte()
		if err != nil {
			return lit, err
		}
		lit.Bool = b != 0
	case bytecode.LitString, bytecode.LitSymbol:
		s, err := readString(r)
		if err != nil {
			return lit, err
		}
		lit.Str = s
	case bytecode.LitNil:
	default:
		return lit, fmt.Errorf("unknown literal kind %d", kb)
	}
	return lit, nil
}
