package spec

import (
	"slices"
	"strings"

	"github.com/matzehuels/stacksolve/pkg/version"
)

// Parse parses a single spec.
//
// The grammar is
//
//	spec  := node { dep }
//	dep   := '^' [ '[' { key=value } ']' ] node
//	node  := [ name ] { '@'versions | '%'compiler['@'versions] | '+'v | '~'v | '-'v | key=value | '/'hash }
//
// A node without a name is anonymous and matches any package, which is how
// guard conditions such as "@2.0.1~a+b" are written. A second bare name
// would start another spec and is reported as an [*AmbiguousSpecError]; use
// [ParseAll] for input holding several specs.
func Parse(input string) (*Spec, error) {
	roots, err := parse(input)
	if err != nil {
		return nil, err
	}
	if len(roots) > 1 {
		return nil, &AmbiguousSpecError{Input: input, Token: roots[1].Name}
	}
	return roots[0], nil
}

// MustParse is like Parse but panics on error.
func MustParse(input string) *Spec {
	s, err := Parse(input)
	if err != nil {
		panic(err)
	}
	return s
}

// ParseAll parses whitespace-separated specs. Each bare name that follows a
// complete spec starts a new one.
func ParseAll(input string) ([]*Spec, error) {
	return parse(input)
}

func parse(input string) ([]*Spec, error) {
	toks, err := tokenize(input)
	if err != nil {
		return nil, err
	}
	p := &parser{input: input, toks: toks}
	if p.peek().kind == tokEOF {
		return nil, p.errorf(0, "empty spec")
	}
	var roots []*Spec
	for p.peek().kind != tokEOF {
		if len(roots) > 0 && p.peek().kind != tokName {
			return nil, p.errorf(p.peek().pos, "unexpected "+p.peek().kind.String())
		}
		root, err := p.root()
		if err != nil {
			return nil, err
		}
		roots = append(roots, root)
	}
	return roots, nil
}

type parser struct {
	input string
	toks  []token
	i     int
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) advance() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) errorf(pos int, msg string) error {
	return &ParseError{Input: p.input, Pos: pos, Message: msg}
}

func (p *parser) root() (*Spec, error) {
	s, err := p.node(true)
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek().kind {
		case tokDep, tokEdgeStart:
			if err := p.dependency(s); err != nil {
				return nil, err
			}
		case tokEdgeEnd:
			return nil, p.errorf(p.peek().pos, "unbalanced ']'")
		default:
			return s, nil
		}
	}
}

func (p *parser) dependency(root *Spec) error {
	start := p.advance()
	var types DepType
	var virtual string
	if start.kind == tokEdgeStart {
		for p.peek().kind == tokKeyValue {
			kv := p.advance()
			switch kv.text {
			case "deptypes":
				t, err := ParseDepTypes(strings.Split(kv.value, ","))
				if err != nil {
					return p.errorf(kv.pos, err.Error())
				}
				types = t
			case "virtuals":
				virtual = kv.value
			default:
				return p.errorf(kv.pos, "unknown edge attribute "+kv.text)
			}
		}
		if p.peek().kind != tokEdgeEnd {
			return p.errorf(p.peek().pos, "expected ']' to close edge attributes")
		}
		p.advance()
	}
	pos := p.peek().pos
	dep, err := p.node(false)
	if err != nil {
		return err
	}
	if dep.Name == "" && dep.Hash == "" {
		return p.errorf(pos, "dependency needs a name or a hash")
	}
	if existing := root.Dependency(dep.Name); existing != nil && dep.Name != "" {
		if err := existing.Spec.ConstrainNode(dep); err != nil {
			return p.errorf(pos, err.Error())
		}
		existing.Types |= types
		return nil
	}
	e := root.AddDependency(dep, types)
	e.Virtual = virtual
	return nil
}

func (p *parser) node(allowAnonymous bool) (*Spec, error) {
	s := &Spec{}
	first := p.peek()
	if first.kind == tokName {
		s.Name = p.advance().text
	} else if !allowAnonymous && first.kind != tokHash {
		return nil, p.errorf(first.pos, "expected package name, found "+first.kind.String())
	}
	consumed := false
	for {
		tok := p.peek()
		switch tok.kind {
		case tokVersion, tokCompiler, tokEnable, tokDisable, tokKeyValue, tokHash:
			consumed = true
		}
		switch tok.kind {
		case tokVersion:
			p.advance()
			if s.Versions != nil {
				return nil, p.errorf(tok.pos, "version specified twice")
			}
			vl, err := version.ParseList(tok.text)
			if err != nil {
				return nil, p.errorf(tok.pos+1, err.Error())
			}
			if vl == nil {
				vl = version.List{version.Any}
			}
			s.Versions = vl
		case tokCompiler:
			if err := p.compiler(s); err != nil {
				return nil, err
			}
		case tokEnable, tokDisable:
			p.advance()
			if err := p.setVariant(s, tok, BoolVariant(tok.text, tok.kind == tokEnable)); err != nil {
				return nil, err
			}
		case tokKeyValue:
			p.advance()
			if err := p.keyValue(s, tok); err != nil {
				return nil, err
			}
		case tokHash:
			p.advance()
			if s.Hash != "" {
				return nil, p.errorf(tok.pos, "hash specified twice")
			}
			s.Hash = tok.text
		default:
			if s.Versions != nil && s.Versions.IsAny() {
				s.Versions = nil
			}
			if s.Name == "" && !consumed && !(allowAnonymous && (tok.kind == tokDep || tok.kind == tokEdgeStart)) {
				return nil, p.errorf(tok.pos, "unexpected "+tok.kind.String())
			}
			return s, nil
		}
	}
}

func (p *parser) compiler(s *Spec) error {
	pct := p.advance()
	if s.Compiler != nil {
		return p.errorf(pct.pos, "compiler specified twice")
	}
	name := p.peek()
	if name.kind != tokName {
		return p.errorf(name.pos, "expected compiler name after '%'")
	}
	p.advance()
	c := &CompilerSpec{Name: name.text}
	if v := p.peek(); v.kind == tokVersion && !v.spaced {
		p.advance()
		vl, err := version.ParseList(v.text)
		if err != nil {
			return p.errorf(v.pos+1, err.Error())
		}
		c.Versions = vl
	}
	s.Compiler = c
	return nil
}

func (p *parser) keyValue(s *Spec, tok token) error {
	switch tok.text {
	case "arch":
		if s.Arch != "" && s.Arch != tok.value {
			return p.errorf(tok.pos, "arch specified twice")
		}
		s.Arch = tok.value
		return nil
	case "deptypes", "virtuals":
		return p.errorf(tok.pos, tok.text+" is only valid inside ^[...]")
	}
	values := strings.Split(tok.value, ",")
	if slices.Contains(values, "") {
		return p.errorf(tok.pos, "empty value for variant "+tok.text)
	}
	return p.setVariant(s, tok, NewVariant(tok.text, values...))
}

func (p *parser) setVariant(s *Spec, tok token, v Variant) error {
	if have, ok := s.Variants[v.Name]; ok {
		if !have.Equal(v) {
			return p.errorf(tok.pos, "conflicting values for variant "+v.Name)
		}
		return nil
	}
	s.SetVariant(v)
	return nil
}
