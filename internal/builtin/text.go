package builtin

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wisplang/wisp/internal/machine"
)

// registerText installs the text-operations family (§6), grounded on the
// teacher's string-builtin table in lang/machine/builtins_string.go: thin
// wrappers over Go's strings/strconv, converting to/from wisp's
// reference-counted *String and list-of-single-character-strings
// convention for string->list/list->string.
func registerText(vm *machine.VM) {
	b := vm.Builtins

	b["string-length"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("string-length", args, 1); err != nil {
			return nil, err
		}
		s, err := asString("string-length", args[0])
		if err != nil {
			return nil, err
		}
		return machine.Integer(len([]rune(s.Go()))), nil
	}

	b["substring"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if len(args) != 2 && len(args) != 3 {
			return nil, arityError("substring", 3, len(args))
		}
		s, err := asString("substring", args[0])
		if err != nil {
			return nil, err
		}
		start, err := asInteger("substring", args[1])
		if err != nil {
			return nil, err
		}
		r := []rune(s.Go())
		end := machine.Integer(len(r))
		if len(args) == 3 {
			end, err = asInteger("substring", args[2])
			if err != nil {
				return nil, err
			}
		}
		if start < 0 || end > machine.Integer(len(r)) || start > end {
			return nil, typeError("substring", "a valid [start,end) range", args[1])
		}
		return machine.NewString(string(r[start:end])), nil
	}

	b["string-append"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		var sb strings.Builder
		for _, a := range args {
			s, err := asString("string-append", a)
			if err != nil {
				return nil, err
			}
			sb.WriteString(s.Go())
		}
		return machine.NewString(sb.String()), nil
	}

	b["string->list"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("string->list", args, 1); err != nil {
			return nil, err
		}
		s, err := asString("string->list", args[0])
		if err != nil {
			return nil, err
		}
		var elems []machine.Value
		for _, r := range s.Go() {
			elems = append(elems, machine.Value(machine.NewString(string(r))))
		}
		return sliceToCons(elems), nil
	}

	b["list->string"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("list->string", args, 1); err != nil {
			return nil, err
		}
		c, err := asCons("list->string", args[0])
		if err != nil {
			return nil, err
		}
		var sb strings.Builder
		for n := c; n != nil; n = n.Tail {
			s, err := asString("list->string", n.Head)
			if err != nil {
				return nil, err
			}
			sb.WriteString(s.Go())
		}
		return machine.NewString(sb.String()), nil
	}

	b["char-code"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("char-code", args, 1); err != nil {
			return nil, err
		}
		s, err := asString("char-code", args[0])
		if err != nil {
			return nil, err
		}
		r := []rune(s.Go())
		if len(r) != 1 {
			return nil, typeError("char-code", "a single-character string", args[0])
		}
		return machine.Integer(r[0]), nil
	}

	b["number->string"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("number->string", args, 1); err != nil {
			return nil, err
		}
		switch v := args[0].(type) {
		case machine.Integer:
			return machine.NewString(strconv.FormatInt(int64(v), 10)), nil
		case machine.Float:
			return machine.NewString(strconv.FormatFloat(float64(v), 'g', -1, 64)), nil
		default:
			return nil, typeError("number->string", "number", args[0])
		}
	}

	b["string->number"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("string->number", args, 1); err != nil {
			return nil, err
		}
		s, err := asString("string->number", args[0])
		if err != nil {
			return nil, err
		}
		text := s.Go()
		if i, err := strconv.ParseInt(text, 10, 64); err == nil {
			return machine.Integer(i), nil
		}
		if f, err := strconv.ParseFloat(text, 64); err == nil {
			return machine.Float(f), nil
		}
		return nil, fmt.Errorf("string->number: %q is not a number", text)
	}

	b["string-split"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("string-split", args, 2); err != nil {
			return nil, err
		}
		s, err := asString("string-split", args[0])
		if err != nil {
			return nil, err
		}
		sep, err := asString("string-split", args[1])
		if err != nil {
			return nil, err
		}
		parts := strings.Split(s.Go(), sep.Go())
		elems := make([]machine.Value, len(parts))
		for i, p := range parts {
			elems[i] = machine.NewString(p)
		}
		return sliceToCons(elems), nil
	}

	b["string-join"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("string-join", args, 2); err != nil {
			return nil, err
		}
		c, err := asCons("string-join", args[0])
		if err != nil {
			return nil, err
		}
		sep, err := asString("string-join", args[1])
		if err != nil {
			return nil, err
		}
		var parts []string
		for n := c; n != nil; n = n.Tail {
			s, err := asString("string-join", n.Head)
			if err != nil {
				return nil, err
			}
			parts = append(parts, s.Go())
		}
		return machine.NewString(strings.Join(parts, sep.Go())), nil
	}

	b["string-trim"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("string-trim", args, 1); err != nil {
			return nil, err
		}
		s, err := asString("string-trim", args[0])
		if err != nil {
			return nil, err
		}
		return machine.NewString(strings.TrimSpace(s.Go())), nil
	}

	b["string-replace"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("string-replace", args, 3); err != nil {
			return nil, err
		}
		s, err := asString("string-replace", args[0])
		if err != nil {
			return nil, err
		}
		old, err := asString("string-replace", args[1])
		if err != nil {
			return nil, err
		}
		new_, err := asString("string-replace", args[2])
		if err != nil {
			return nil, err
		}
		return machine.NewString(strings.ReplaceAll(s.Go(), old.Go(), new_.Go())), nil
	}

	strPred := func(name string, f func(s, prefix string) bool) {
		b[name] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
			if err := needArgs(name, args, 2); err != nil {
				return nil, err
			}
			s, err := asString(name, args[0])
			if err != nil {
				return nil, err
			}
			t, err := asString(name, args[1])
			if err != nil {
				return nil, err
			}
			return machine.Bool(f(s.Go(), t.Go())), nil
		}
	}
	strPred("string-starts-with?", strings.HasPrefix)
	strPred("string-ends-with?", strings.HasSuffix)
	strPred("string-contains?", strings.Contains)

	b["string-upcase"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("string-upcase", args, 1); err != nil {
			return nil, err
		}
		s, err := asString("string-upcase", args[0])
		if err != nil {
			return nil, err
		}
		return machine.NewString(strings.ToUpper(s.Go())), nil
	}

	b["string-downcase"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("string-downcase", args, 1); err != nil {
			return nil, err
		}
		s, err := asString("string-downcase", args[0])
		if err != nil {
			return nil, err
		}
		return machine.NewString(strings.ToLower(s.Go())), nil
	}

	b["symbol->string"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("symbol->string", args, 1); err != nil {
			return nil, err
		}
		sym, err := asSymbol("symbol->string", args[0])
		if err != nil {
			return nil, err
		}
		return machine.NewString(sym.Name()), nil
	}

	b["string->symbol"] = func(vm *machine.VM, args []machine.Value) (machine.Value, error) {
		if err := needArgs("string->symbol", args, 1); err != nil {
			return nil, err
		}
		s, err := asString("string->symbol", args[0])
		if err != nil {
			return nil, err
		}
		return machine.Intern(s.Go()), nil
	}
}
