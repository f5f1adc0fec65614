package sandbox

// The restricted namespace is an explicit allowlist, never a denylist of the
// full builtin surface. Enumerating what is safe is strictly more robust
// than enumerating what is dangerous: the builtin set changes across Python
// versions, and a denylist only has to miss once.

// safeBuiltins are the pure, side-effect-free builtins exposed to
// submissions: type constructors, arithmetic, iteration helpers, and print
// (whose output goes to an in-memory buffer, never a real descriptor).
// __build_class__ is required for `class` statements to work at all.
// Conspicuously absent: open, input, eval, exec, compile, getattr/setattr,
// globals/locals, vars, dir, __import__ (replaced by the guarded hook).
var safeBuiltins = []string{
	"abs", "all", "any", "ascii", "bin", "bool", "bytearray", "bytes",
	"callable", "chr", "complex", "dict", "divmod", "enumerate", "filter",
	"float", "format", "frozenset", "hash", "hex", "int", "isinstance",
	"issubclass", "iter", "len", "list", "map", "max", "min", "next",
	"object", "oct", "ord", "pow", "print", "range", "repr", "reversed",
	"round", "set", "slice", "sorted", "str", "sum", "tuple", "type", "zip",
	"__build_class__", "__name__",

	// Exception types a learner legitimately raises or catches.
	"ArithmeticError", "AssertionError", "AttributeError", "BaseException",
	"Exception", "FloatingPointError", "GeneratorExit", "IndexError",
	"KeyError", "KeyboardInterrupt", "LookupError", "MemoryError",
	"NameError", "NotImplementedError", "OverflowError", "RecursionError",
	"RuntimeError", "StopIteration", "TypeError", "ValueError",
	"ZeroDivisionError",

	"True", "False", "None", "NotImplemented", "Ellipsis",
}

// safeModules is the fixed import allowlist. These are pre-imported into the
// namespace and are also the only names the guarded import hook will
// resolve. Everything else fails closed.
var safeModules = []string{
	"math",
	"random",
	"datetime",
	"collections",
	"itertools",
	"functools",
	"operator",
	"string",
	"re",
	"json",
}

// Environment is the complete capability set visible to one submission.
// NewEnvironment hands out fresh copies so that nothing — not even the
// allowlist slices themselves — is shared between invocations.
type Environment struct {
	Builtins []string
	Modules  []string
}

// NewEnvironment builds a fresh restricted environment. Called once per
// invocation; environments are never cached or reused.
func NewEnvironment() *Environment {
	return &Environment{
		Builtins: append([]string(nil), safeBuiltins...),
		Modules:  append([]string(nil), safeModules...),
	}
}

// ModuleAllowed reports whether the import allowlist contains name.
func (e *Environment) ModuleAllowed(name string) bool {
	for _, m := range e.Modules {
		if m == name {
			return true
		}
	}
	return false
}
