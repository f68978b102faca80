package builtin

import (
	"fmt"
	"math"
	"sync"
	"unsafe"

	"github.com/wisplang/wisp/internal/machine"
)

// allocTable pins the backing arrays of wisp-owned FFI allocations against
// garbage collection from alloc until the matching free, whether or not a
// Pointer handle is still reachable: alloc/free book-keep by address, the same shape as
// machine.FFITable's library/symbol id maps, so a collected backing array
// can never silently invalidate an Addr a foreign function still holds.
type allocTable struct {
	mu   sync.Mutex
	bufs map[uintptr][]byte
}

var allocs = &allocTable{bufs: map[uintptr][]byte{}}

func (t *allocTable) alloc(n int) *machine.Pointer {
	buf := make([]byte, n)
	addr := uintptr(unsafe.Pointer(&buf[0]))
	t.mu.Lock()
	t.bufs[addr] = buf
	t.mu.Unlock()
	return &machine.Pointer{Addr: addr, Owned: true}
}

func (t *allocTable) free(addr uintptr) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.bufs[addr]; !ok {
		return fmt.Errorf("free: address 0x%x was not allocated by alloc", addr)
	}
	delete(t.bufs, addr)
	return nil
}

func (t *allocTable) bytesAt(addr uintptr, n int) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for base, buf := range t.bufs {
		if addr >= base && addr+uintptr(n) <= base+uintptr(len(buf)) {
			off := addr - base
			return buf[off : off+uintptr(n)], nil
		}
	}
	return nil, fmt.Errorf("address 0x%x is not within a live alloc region", addr)
}

// registerFFI installs the foreign-function family (§6), wrapping the
// already-constructed machine.FFITable (ebitengine/purego-backed) with the
// value-level operations a wisp program calls directly: library/symbol
// handles, a typed call with a small return-type grammar, a null-pointer
// sentinel, and alloc/free/peek/poke over wisp-owned memory regions.
func registerFFI(vm *machine.VM) {
	b := vm.Builtins

	b["ffi-load-library"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("ffi-load-library", args, 1); err != nil {
			return nil, err
		}
		path, err := asString("ffi-load-library", args[0])
		if err != nil {
			return nil, err
		}
		id, err := vm.FFI.LoadLibrary(path.Go())
		if err != nil {
			return nil, err
		}
		return machine.Integer(id), nil
	}

	b["ffi-symbol"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("ffi-symbol", args, 2); err != nil {
			return nil, err
		}
		libID, err := asInteger("ffi-symbol", args[0])
		if err != nil {
			return nil, err
		}
		name, err := asString("ffi-symbol", args[1])
		if err != nil {
			return nil, err
		}
		id, err := vm.FFI.Symbol(int(libID), name.Go())
		if err != nil {
			return nil, err
		}
		return machine.Integer(id), nil
	}

	b["ffi-call"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if len(args) < 2 {
			return nil, fmt.Errorf("ffi-call: expects at least 2 arguments (symbol return-type), got %d", len(args))
		}
		symID, err := asInteger("ffi-call", args[0])
		if err != nil {
			return nil, err
		}
		sig, err := asString("ffi-call", args[1])
		if err != nil {
			return nil, err
		}
		return vm.FFI.TypedCall(int(symID), sig.Go(), args[2:])
	}

	b["null-pointer"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("null-pointer", args, 0); err != nil {
			return nil, err
		}
		return &machine.Pointer{Addr: 0, Owned: false}, nil
	}

	b["pointer-null?"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("pointer-null?", args, 1); err != nil {
			return nil, err
		}
		p, err := asPointer("pointer-null?", args[0])
		if err != nil {
			return nil, err
		}
		return machine.Bool(p.IsNull()), nil
	}

	b["alloc"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("alloc", args, 1); err != nil {
			return nil, err
		}
		n, err := asInteger("alloc", args[0])
		if err != nil {
			return nil, err
		}
		if n <= 0 {
			return nil, typeError("alloc", "a positive integer size", args[0])
		}
		return allocs.alloc(int(n)), nil
	}

	b["free"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("free", args, 1); err != nil {
			return nil, err
		}
		p, err := asPointer("free", args[0])
		if err != nil {
			return nil, err
		}
		if !p.Owned {
			return nil, fmt.Errorf("free: pointer is not wisp-owned memory")
		}
		if err := allocs.free(p.Addr); err != nil {
			return nil, err
		}
		return machine.Bool(true), nil
	}

	readByte := func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("read-byte", args, 2); err != nil {
			return nil, err
		}
		p, err := asPointer("read-byte", args[0])
		if err != nil {
			return nil, err
		}
		off, err := asInteger("read-byte", args[1])
		if err != nil {
			return nil, err
		}
		buf, err := allocs.bytesAt(p.Addr+uintptr(off), 1)
		if err != nil {
			return nil, err
		}
		return machine.Integer(buf[0]), nil
	}
	b["read-byte"] = readByte

	b["write-byte"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("write-byte", args, 3); err != nil {
			return nil, err
		}
		p, err := asPointer("write-byte", args[0])
		if err != nil {
			return nil, err
		}
		off, err := asInteger("write-byte", args[1])
		if err != nil {
			return nil, err
		}
		v, err := asInteger("write-byte", args[2])
		if err != nil {
			return nil, err
		}
		buf, err := allocs.bytesAt(p.Addr+uintptr(off), 1)
		if err != nil {
			return nil, err
		}
		buf[0] = byte(v)
		return machine.Bool(true), nil
	}

	b["read-int32"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		return readIntN("read-int32", vm, args, 4)
	}
	b["read-int64"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		return readIntN("read-int64", vm, args, 8)
	}
	b["write-int32"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		return writeIntN("write-int32", vm, args, 4)
	}
	b["write-int64"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		return writeIntN("write-int64", vm, args, 8)
	}

	b["read-float"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("read-float", args, 2); err != nil {
			return nil, err
		}
		p, err := asPointer("read-float", args[0])
		if err != nil {
			return nil, err
		}
		off, err := asInteger("read-float", args[1])
		if err != nil {
			return nil, err
		}
		buf, err := allocs.bytesAt(p.Addr+uintptr(off), 8)
		if err != nil {
			return nil, err
		}
		bits := uint64(0)
		for i := 7; i >= 0; i-- {
			bits = bits<<8 | uint64(buf[i])
		}
		return machine.Float(math.Float64frombits(bits)), nil
	}

	b["write-float"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("write-float", args, 3); err != nil {
			return nil, err
		}
		p, err := asPointer("write-float", args[0])
		if err != nil {
			return nil, err
		}
		off, err := asInteger("write-float", args[1])
		if err != nil {
			return nil, err
		}
		f, err := toFloat("write-float", args[2])
		if err != nil {
			return nil, err
		}
		buf, err := allocs.bytesAt(p.Addr+uintptr(off), 8)
		if err != nil {
			return nil, err
		}
		bits := math.Float64bits(f)
		for i := 0; i < 8; i++ {
			buf[i] = byte(bits)
			bits >>= 8
		}
		return machine.Bool(true), nil
	}

	b["string->pointer"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("string->pointer", args, 1); err != nil {
			return nil, err
		}
		s, err := asString("string->pointer", args[0])
		if err != nil {
			return nil, err
		}
		text := s.Go()
		p := allocs.alloc(len(text) + 1)
		buf, _ := allocs.bytesAt(p.Addr, len(text)+1)
		copy(buf, text)
		buf[len(text)] = 0
		return p, nil
	}

	b["pointer->string"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("pointer->string", args, 1); err != nil {
			return nil, err
		}
		p, err := asPointer("pointer->string", args[0])
		if err != nil {
			return nil, err
		}
		if p.IsNull() {
			return machine.NewString(""), nil
		}
		var out []byte
		for i := 0; ; i++ {
			buf, err := allocs.bytesAt(p.Addr+uintptr(i), 1)
			if err != nil {
				return nil, fmt.Errorf("pointer->string: unterminated or foreign buffer: %w", err)
			}
			if buf[0] == 0 {
				break
			}
			out = append(out, buf[0])
		}
		return machine.NewString(string(out)), nil
	}
}

func asPointer(name string, v machine.Value) (*machine.Pointer, error) {
	p, ok := v.(*machine.Pointer)
	if !ok {
		return nil, typeError(name, "pointer", v)
	}
	return p, nil
}

func readIntN(name string, vm *machine.VM, args []machine.Value, n int) (machine.Value, error) {
	if err := needArgs(name, args, 2); err != nil {
		return nil, err
	}
	p, err := asPointer(name, args[0])
	if err != nil {
		return nil, err
	}
	off, err := asInteger(name, args[1])
	if err != nil {
		return nil, err
	}
	buf, err := allocs.bytesAt(p.Addr+uintptr(off), n)
	if err != nil {
		return nil, err
	}
	var v int64
	for i := n - 1; i >= 0; i-- {
		v = v<<8 | int64(buf[i])
	}
	return machine.Integer(v), nil
}

func writeIntN(name string, vm *machine.VM, args []machine.Value, n int) (machine.Value, error) {
	if err := needArgs(name, args, 3); err != nil {
		return nil, err
	}
	p, err := asPointer(name, args[0])
	if err != nil {
		return nil, err
	}
	off, err := asInteger(name, args[1])
	if err != nil {
		return nil, err
	}
	val, err := asInteger(name, args[2])
	if err != nil {
		return nil, err
	}
	buf, err := allocs.bytesAt(p.Addr+uintptr(off), n)
	if err != nil {
		return nil, err
	}
	v := int64(val)
	for i := 0; i < n; i++ {
		buf[i] = byte(v)
		v >>= 8
	}
	return machine.Bool(true), nil
}
