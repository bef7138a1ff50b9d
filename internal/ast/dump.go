package ast

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"spark/internal/types"
)

// Dump writes an indented outline of the subtree at root, one node per line.
// Unattached nodes never appear because only child links are followed.
func (t *Tree) Dump(w io.Writer, root NodeID) error {
	var sb strings.Builder
	t.dumpNode(&sb, root, 0)
	_, err := io.WriteString(w, sb.String())
	return err
}

// DumpString is Dump into a string.
func (t *Tree) DumpString(root NodeID) string {
	var sb strings.Builder
	t.dumpNode(&sb, root, 0)
	return sb.String()
}

func (t *Tree) dumpNode(sb *strings.Builder, id NodeID, depth int) {
	sb.WriteString(strings.Repeat("  ", depth))
	n := t.MustGet(id)
	switch n.Kind {
	case NodeControl:
		data, _ := t.Control(id)
		sb.WriteString(data.Control.String())
	case NodeOperator:
		data, _ := t.Operator(id)
		fmt.Fprintf(sb, "%s : %s", data.Op, data.Type)
	case NodeFunction:
		data, _ := t.Function(id)
		fmt.Fprintf(sb, "0x%x : function -> %s", uint32(data.ID), data.ReturnType)
		if data.Entry {
			sb.WriteString(" (entrypoint)")
		}
	case NodeSymbol:
		data, _ := t.Symbol(id)
		fmt.Fprintf(sb, "0x%x : %s", uint32(data.ID), data.Type)
	case NodeConstant:
		data, _ := t.Constant(id)
		fmt.Fprintf(sb, "%s : %s", constantText(*data), data.Type)
	case NodeProperty:
		data, _ := t.Property(id)
		fmt.Fprintf(sb, ".%s", data.Property)
	case NodeVector:
		data, _ := t.Vector(id)
		fmt.Fprintf(sb, "vector : %s", data.Type)
	case NodeComment:
		data, _ := t.Comment(id)
		fmt.Fprintf(sb, "comment : %q", data.Text)
	case NodeBuiltin:
		data, _ := t.Builtin(id)
		fmt.Fprintf(sb, "%s() : %s", data.Builtin, data.Type)
	default:
		fmt.Fprintf(sb, "%s", n.Kind)
	}
	sb.WriteByte('\n')
	for _, child := range t.Children(id) {
		t.dumpNode(sb, child, depth+1)
	}
}

func constantText(c ConstantData) string {
	switch {
	case c.Type.Primitive.IsFloat():
		return strconv.FormatFloat(c.Float(), 'g', -1, 64)
	case c.Type.Primitive.IsSigned():
		return strconv.FormatInt(c.Int(), 10)
	case c.Type.Primitive != types.Void:
		return strconv.FormatUint(c.Uint(), 10)
	default:
		return "?"
	}
}
