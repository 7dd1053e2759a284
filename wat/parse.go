package wat

// node is one s-expression: either an atom (possibly a quoted string)
// or a parenthesized list.
type node struct {
	list  []node
	atom  string
	isStr bool
	line  int
	col   int
}

func (n node) isList() bool { return n.list != nil }

// head returns the leading atom of a list, or "" when the list is empty
// or starts with a sublist.
func (n node) head() string {
	if len(n.list) == 0 || n.list[0].isList() || n.list[0].isStr {
		return ""
	}
	return n.list[0].atom
}

// parse reads source into the (module ...) form. A bare field sequence
// without the module wrapper is rejected.
func parse(source string) (node, error) {
	toks, err := lex(source)
	if err != nil {
		return node{}, err
	}
	if len(toks) == 0 {
		return node{}, errAt(1, 1, "empty input")
	}

	root, rest, err := parseNode(toks)
	if err != nil {
		return node{}, err
	}
	if len(rest) > 0 {
		return node{}, errAt(rest[0].line, rest[0].col, "unexpected %q after module", rest[0].text)
	}
	if !root.isList() || root.head() != "module" {
		return node{}, errAt(root.line, root.col, "expected (module ...)")
	}
	return root, nil
}

func parseNode(toks []token) (node, []token, error) {
	t := toks[0]
	switch t.kind {
	case tokLParen:
		n := node{list: []node{}, line: t.line, col: t.col}
		rest := toks[1:]
		for {
			if len(rest) == 0 {
				return node{}, nil, errAt(t.line, t.col, "unclosed '('")
			}
			if rest[0].kind == tokRParen {
				return n, rest[1:], nil
			}
			child, remaining, err := parseNode(rest)
			if err != nil {
				return node{}, nil, err
			}
			n.list = append(n.list, child)
			rest = remaining
		}

	case tokRParen:
		return node{}, nil, errAt(t.line, t.col, "unexpected ')'")

	case tokString:
		return node{atom: t.text, isStr: true, line: t.line, col: t.col}, toks[1:], nil

	default:
		return node{atom: t.text, line: t.line, col: t.col}, toks[1:], nil
	}
}
