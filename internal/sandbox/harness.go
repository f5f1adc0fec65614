package sandbox

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/template"
)

// The harness is the trusted Python preamble wrapped around every
// submission. It runs inside the freshly spawned interpreter and, in order:
//
//  1. applies the OS resource ceilings to its own process (setrlimit),
//  2. builds the restricted namespace from the rendered allowlists and
//     installs the guarded import hook,
//  3. executes the submission with stdout/stderr captured into in-memory
//     buffers (never real descriptors — a submission cannot reach the disk
//     even through output redirection tricks),
//  4. replays the submission plus each test snippet in a fresh copy of the
//     namespace, so no test case can observe another's mutations,
//  5. emits a single JSON report on the real stdout.
//
// The submission itself is embedded base64-encoded, so no quoting trick in
// learner code can break out of the harness source.
//
// Exceptions raised by the submission are absorbed into the captured stderr
// and still count as a successful sandbox run. Only two things abort the
// report early: the guarded import hook firing (a security rejection) and
// the submission failing to compile (nothing ever executed).
var harnessTemplate = template.Must(template.New("harness").Parse(`import base64 as _base64
import builtins as _builtins
import io as _io
import json as _json
import resource as _resource
import sys as _sys
import traceback as _traceback

_resource.setrlimit(_resource.RLIMIT_AS, ({{.MemoryBytes}}, {{.MemoryBytes}}))
# The CPU soft limit must sit below the hard limit: the kernel sends SIGXCPU
# at the soft limit but SIGKILL at the hard one, and only SIGXCPU lets the
# supervisor tell a CPU overrun apart from a crash.
_resource.setrlimit(_resource.RLIMIT_CPU, ({{.CPUSeconds}}, {{.CPUHardSeconds}}))
_resource.setrlimit(_resource.RLIMIT_NPROC, ({{.MaxProcs}}, {{.MaxProcs}}))
_resource.setrlimit(_resource.RLIMIT_FSIZE, ({{.MaxFileBytes}}, {{.MaxFileBytes}}))

_REAL_STDOUT = _sys.stdout
_REAL_STDERR = _sys.stderr


class _ImportDenied(BaseException):
    # Derives from BaseException so a submission's bare "except Exception"
    # cannot swallow a security rejection.
    pass


_SAFE_MODULE_NAMES = {{.Modules}}
_SAFE_MODULES = {_name: _builtins.__import__(_name) for _name in _SAFE_MODULE_NAMES}


def _guarded_import(name, globals=None, locals=None, fromlist=(), level=0):
    if name.split(".")[0] in _SAFE_MODULES:
        return _builtins.__import__(name, globals, locals, fromlist, level)
    raise _ImportDenied("import of module '%s' is not allowed" % name)


_SAFE_BUILTINS = {}
for _name in {{.Builtins}}:
    if hasattr(_builtins, _name):
        _SAFE_BUILTINS[_name] = getattr(_builtins, _name)
_SAFE_BUILTINS["__import__"] = _guarded_import


def _fresh_globals():
    g = {"__builtins__": dict(_SAFE_BUILTINS), "__name__": "__main__"}
    g.update(_SAFE_MODULES)
    return g


_CODE = _base64.b64decode("{{.CodeB64}}").decode("utf-8")
_TESTS = _json.loads(_base64.b64decode("{{.TestsB64}}").decode("utf-8"))

_report = {"stdout": "", "stderr": "", "memory_used": 0, "tests": []}


def _emit():
    _json.dump(_report, _REAL_STDOUT)
    _REAL_STDOUT.flush()


try:
    _compiled = compile(_CODE, "<submission>", "exec")
except (SyntaxError, ValueError):
    _report["error"] = {
        "kind": "execution",
        "message": "submission failed to compile",
        "traceback": _traceback.format_exc(),
    }
    _emit()
    _sys.exit(0)

_out = _io.StringIO()
_err = _io.StringIO()
_sys.stdout = _out
_sys.stderr = _err
try:
    exec(_compiled, _fresh_globals())
except _ImportDenied as _denied:
    _sys.stdout = _REAL_STDOUT
    _sys.stderr = _REAL_STDERR
    _report["error"] = {"kind": "security", "message": str(_denied)}
    _emit()
    _sys.exit(0)
except BaseException:
    _traceback.print_exc(file=_err)
finally:
    _sys.stdout = _REAL_STDOUT
    _sys.stderr = _REAL_STDERR

_report["stdout"] = _out.getvalue()
_report["stderr"] = _err.getvalue()

for _case in _TESTS:
    _entry = {"name": _case.get("name", ""), "output": ""}
    try:
        _g = _fresh_globals()
        # Replay the submission into a scratch buffer so its own prints do
        # not pollute the test's captured output.
        _sys.stdout = _io.StringIO()
        exec(_compiled, _g)
        _tout = _io.StringIO()
        _sys.stdout = _tout
        exec(compile(_case.get("test_code", ""), "<test>", "exec"), _g)
        _entry["output"] = _tout.getvalue()
    except _ImportDenied as _denied:
        _entry["error"] = str(_denied)
    except BaseException as _exc:
        _entry["error"] = "%s: %s" % (type(_exc).__name__, _exc)
    finally:
        _sys.stdout = _REAL_STDOUT
    _report["tests"].append(_entry)

# ru_maxrss is reported in KiB on Linux.
_report["memory_used"] = _resource.getrusage(_resource.RUSAGE_SELF).ru_maxrss * 1024
_emit()
`))

// harnessData is the fully rendered parameter set for one invocation.
type harnessData struct {
	MemoryBytes    int64
	CPUSeconds     int64
	CPUHardSeconds int64
	MaxProcs       int
	MaxFileBytes   int64
	Builtins       string
	Modules        string
	CodeB64        string
	TestsB64       string
}

// BuildHarness renders the trusted preamble around one submission. The
// environment's allowlists become Python list literals; the submission and
// test cases travel base64-encoded.
func BuildHarness(env *Environment, code string, tests []TestCase, limits Limits) (string, error) {
	if tests == nil {
		tests = []TestCase{}
	}
	testsJSON, err := json.Marshal(tests)
	if err != nil {
		return "", fmt.Errorf("encoding test cases: %w", err)
	}

	data := harnessData{
		MemoryBytes:    limits.MemoryLimit,
		CPUSeconds:     limits.cpuSeconds(),
		CPUHardSeconds: limits.cpuSeconds() + 1,
		MaxProcs:       MaxChildProcesses,
		MaxFileBytes:   MaxOutputFileBytes,
		Builtins:       pythonList(env.Builtins),
		Modules:        pythonList(env.Modules),
		CodeB64:        base64.StdEncoding.EncodeToString([]byte(code)),
		TestsB64:       base64.StdEncoding.EncodeToString(testsJSON),
	}

	var b strings.Builder
	if err := harnessTemplate.Execute(&b, data); err != nil {
		return "", fmt.Errorf("rendering harness: %w", err)
	}
	return b.String(), nil
}

// pythonList renders names as a Python list literal. Go's quoting rules are
// a compatible subset of Python's for these ASCII identifiers.
func pythonList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = strconv.Quote(n)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
