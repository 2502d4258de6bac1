package sierra

import (
	"fmt"
	"strconv"
	"strings"
)

// Serialize renders prog back into the textual Sierra grammar Parse
// accepts (spec.md's grammar comment on Parse), in canonical form: every
// type declaration carries its full storable/drop/dup/zero_sized
// attribute bracket regardless of whether the source text did, so
// Parse(Serialize(p)) never depends on what attributes happened to be
// written explicitly. It backs the round-trip parse property (spec.md
// §8): reparsing its output always reproduces p's statement offsets and
// function entries, even though the emitted text itself need not be
// byte-identical to whatever text originally produced p.
func Serialize(prog *Program) string {
	var b strings.Builder
	for _, td := range prog.Types {
		fmt.Fprintf(&b, "type %s = %s [storable: %t, drop: %t, dup: %t, zero_sized: %t];\n",
			td.ID, td.LongID, td.Storable, td.Droppable, td.Duplicatable, td.ZeroSized)
	}
	for _, ld := range prog.Libfuncs {
		fmt.Fprintf(&b, "libfunc %s = %s;\n", ld.ID, ld.LongID)
	}
	for _, stmt := range prog.Statements {
		b.WriteString(serializeStatement(stmt))
		b.WriteByte('\n')
	}
	for _, fn := range prog.Functions {
		b.WriteString(serializeFunction(fn))
		b.WriteByte('\n')
	}
	return b.String()
}

func serializeVarList(vars []VarID) string {
	parts := make([]string, len(vars))
	for i, v := range vars {
		parts[i] = "[" + strconv.Itoa(int(v)) + "]"
	}
	return strings.Join(parts, ", ")
}

func serializeStatement(stmt Statement) string {
	switch s := stmt.(type) {
	case *Return:
		return fmt.Sprintf("return(%s);", serializeVarList(s.Values))
	case *Invocation:
		head := fmt.Sprintf("%s(%s)", s.Libfunc, serializeVarList(s.Args))
		if len(s.Branches) == 1 && s.Branches[0].Fallthrough {
			return fmt.Sprintf("%s -> (%s);", head, serializeVarList(s.Branches[0].Results))
		}
		branches := make([]string, len(s.Branches))
		for i, br := range s.Branches {
			if br.Fallthrough {
				branches[i] = fmt.Sprintf("fallthrough(%s)", serializeVarList(br.Results))
			} else {
				branches[i] = fmt.Sprintf("%d(%s)", int(br.Target), serializeVarList(br.Results))
			}
		}
		return fmt.Sprintf("%s { %s };", head, strings.Join(branches, " "))
	default:
		return ""
	}
}

func serializeFunction(fn *Function) string {
	params := make([]string, len(fn.Params))
	for i, p := range fn.Params {
		params[i] = fmt.Sprintf("[%d]: %s", int(p.Var), p.Type)
	}
	return fmt.Sprintf("%s@%d(%s) -> (%s);",
		fn.Name, int(fn.Entry), strings.Join(params, ", "), strings.Join(fn.RetTypes, ", "))
}
