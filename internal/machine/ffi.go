package machine

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/pkg/errors"
)

// FFITable tracks the dynamic-library and symbol handles opened by the FFI
// builtins (§4.2 "Foreign", §6), backed by github.com/ebitengine/purego's
// pure-Go dlopen/dlsym bindings rather than cgo, so wisp stays a single
// static binary.
type FFITable struct {
	mu      sync.Mutex
	nextID  int
	libs    map[int]uintptr // library handle id -> dlopen handle
	symbols map[int]uintptr // symbol handle id -> resolved address
}

func newFFITable() *FFITable {
	return &FFITable{libs: map[int]uintptr{}, symbols: map[int]uintptr{}}
}

// LoadLibrary dlopens path and returns an opaque library handle id.
func (t *FFITable) LoadLibrary(path string) (int, error) {
	h, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return 0, errors.Wrapf(err, "loading FFI library %q", path)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	id := t.nextID
	t.libs[id] = h
	return id, nil
}

// Symbol resolves name within the library identified by libID.
func (t *FFITable) Symbol(libID int, name string) (int, error) {
	t.mu.Lock()
	h, ok := t.libs[libID]
	t.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("unknown FFI library handle %d", libID)
	}
	addr, err := purego.Dlsym(h, name)
	if err != nil {
		return 0, errors.Wrapf(err, "resolving FFI symbol %q", name)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	id := t.nextID
	t.symbols[id] = addr
	return id, nil
}

func (t *FFITable) symbolAddr(symID int) (uintptr, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	addr, ok := t.symbols[symID]
	return addr, ok
}

// TypedCall invokes the symbol identified by symID using the small grammar
// over :int32 :int64 :double :string :pointer (§6). Only the subset of
// argument/return shapes that purego.RegisterFunc needs at registration
// time is supported; calls with unsupported signatures return an error
// naming the unsupported type rather than corrupting the stack.
func (t *FFITable) TypedCall(symID int, sig string, args []Value) (Value, error) {
	addr, ok := t.symbolAddr(symID)
	if !ok {
		return nil, fmt.Errorf("unknown FFI symbol handle %d", symID)
	}

	var intArgs []uintptr
	for _, a := range args {
		switch v := a.(type) {
		case Integer:
			intArgs = append(intArgs, uintptr(v))
		case *Pointer:
			intArgs = append(intArgs, v.Addr)
		case *String:
			intArgs = append(intArgs, uintptr(unsafe.Pointer(&[]byte(v.Go())[0])))
		default:
			return nil, fmt.Errorf("FFI call: unsupported argument type %s", a.Type())
		}
	}

	if sig == "double" || sig == ":double" {
		return t.doubleCall(addr, intArgs)
	}

	ret := purego.SyscallN(addr, intArgs...)
	switch sig {
	case "int32", ":int32":
		return Integer(int32(ret)), nil
	case "int64", ":int64":
		return Integer(int64(ret)), nil
	case "pointer", ":pointer":
		return &Pointer{Addr: ret, Owned: false}, nil
	case "string", ":string":
		return NewString(ptrToString(ret)), nil
	default:
		return nil, fmt.Errorf("FFI call: unknown return type %q", sig)
	}
}

// maxDoubleCallArgs bounds doubleCall's fixed-arity registration (§6's FFI
// grammar does not bound argument count, but a :double-returning call needs
// a concrete Go func signature for purego.RegisterFunc to reflect over).
const maxDoubleCallArgs = 6

// doubleCall invokes a foreign symbol whose return type is :double.
// SyscallN always reads its result out of an integer register, so it can
// never carry a float back (the case TypedCall used to reject); a
// :double-returning call instead needs purego.RegisterFunc, which inspects
// a concrete Go func type via reflection to know to read the return value
// out of the floating-point register bank instead. Since TypedCall's
// argument shapes are only known at the call site, doubleCall registers a
// single fixed six-uintptr-argument, float64-returning signature and pads
// unused trailing slots with zero, which every common C calling convention
// ignores for arguments the callee doesn't read.
func (t *FFITable) doubleCall(addr uintptr, intArgs []uintptr) (Value, error) {
	if len(intArgs) > maxDoubleCallArgs {
		return nil, fmt.Errorf("FFI call: :double return supports at most %d arguments, got %d", maxDoubleCallArgs, len(intArgs))
	}
	var a [maxDoubleCallArgs]uintptr
	copy(a[:], intArgs)

	var fn func(a0, a1, a2, a3, a4, a5 uintptr) float64
	purego.RegisterFunc(&fn, addr)
	return Float(fn(a[0], a[1], a[2], a[3], a[4], a[5])), nil
}

func ptrToString(addr uintptr) string {
	if addr == 0 {
		return ""
	}
	var b []byte
	p := addr
	for {
		c := *(*byte)(unsafe.Pointer(p))
		if c == 0 {
			break
		}
		b = append(b, c)
		p++
	}
	return string(b)
}
