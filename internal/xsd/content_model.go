package xsd

import (
	"fmt"
	"strings"

	"github.com/agentflare-ai/go-xmldom"
)

// binding records which particle matched a child element. Bindings form a
// chain back to the start of the content so every path through the model
// carries its own assignment.
type binding struct {
	index    int
	decl     *ElementDecl
	wildcard *AnyElement
	prev     *binding
}

// frontier is a set of positions in the child list, each with the binding
// chain of the first path that reached it.
type frontier struct {
	order []int
	at    map[int]*binding
}

func newFrontier() *frontier {
	return &frontier{at: make(map[int]*binding)}
}

func (f *frontier) add(pos int, b *binding) bool {
	if _, ok := f.at[pos]; ok {
		return false
	}
	f.at[pos] = b
	f.order = append(f.order, pos)
	return true
}

func (f *frontier) addAll(other *frontier) bool {
	added := false
	for _, pos := range other.order {
		if f.add(pos, other.at[pos]) {
			added = true
		}
	}
	return added
}

func (f *frontier) empty() bool {
	return len(f.order) == 0
}

// expectation is an element or wildcard that was tried at a position.
type expectation struct {
	name     QName
	wildcard *WildcardNamespaceConstraint
}

// contentMatcher simulates a content model over the children of one element.
// All paths are followed at once, so the result does not depend on the order
// alternatives are declared in.
type contentMatcher struct {
	schema   *Schema
	children []xmldom.Element
	furthest int
	chain    *binding
	tried    map[int][]expectation
	seen     map[int]map[string]bool
}

// contentFailure describes why children do not match a content model.
// Index is the offending child, or -1 when the content ended too early.
// Matched holds the bindings of the children before the failure.
type contentFailure struct {
	Index    int
	Expected []expectation
	Matched  []*binding
}

// matchContent matches children against particle. On success it returns the
// particle bound to each child.
func matchContent(schema *Schema, particle Particle, children []xmldom.Element) ([]*binding, *contentFailure) {
	m := &contentMatcher{
		schema:   schema,
		children: children,
		tried:    make(map[int][]expectation),
		seen:     make(map[int]map[string]bool),
	}
	start := newFrontier()
	start.add(0, nil)

	end := m.match(particle, start)
	if b, ok := end.at[len(children)]; ok {
		return unwind(b, len(children)), nil
	}

	failure := &contentFailure{
		Index:    m.furthest,
		Expected: m.tried[m.furthest],
		Matched:  unwind(m.chain, m.furthest),
	}
	if m.furthest >= len(children) {
		failure.Index = -1
	}
	return nil, failure
}

// expectedAt returns what the model accepts after the children in prefix.
func expectedAt(schema *Schema, particle Particle, prefix []xmldom.Element) []expectation {
	m := &contentMatcher{
		schema:   schema,
		children: prefix,
		tried:    make(map[int][]expectation),
		seen:     make(map[int]map[string]bool),
	}
	start := newFrontier()
	start.add(0, nil)
	m.match(particle, start)
	return m.tried[len(prefix)]
}

func unwind(b *binding, n int) []*binding {
	bindings := make([]*binding, n)
	for ; b != nil; b = b.prev {
		if b.index < n {
			bindings[b.index] = b
		}
	}
	return bindings
}

func (m *contentMatcher) reach(out *frontier, pos int, b *binding) {
	if out.add(pos, b) && pos > m.furthest {
		m.furthest = pos
		m.chain = b
	}
}

func (m *contentMatcher) expect(pos int, e expectation) {
	key := e.name.String()
	if e.wildcard != nil {
		key = "*" + e.wildcard.Mode + strings.Join(e.wildcard.Namespaces, " ")
	}
	if m.seen[pos] == nil {
		m.seen[pos] = make(map[string]bool)
	}
	if m.seen[pos][key] {
		return
	}
	m.seen[pos][key] = true
	m.tried[pos] = append(m.tried[pos], e)
}

// match applies the occurrence range of p.
func (m *contentMatcher) match(p Particle, in *frontier) *frontier {
	if p == nil {
		return in
	}
	minOcc, maxOcc := p.MinOccurs(), p.MaxOccurs()
	if maxOcc == 0 {
		return in
	}

	result := newFrontier()
	if minOcc == 0 {
		result.addAll(in)
	}
	cur := in
	for i := 1; maxOcc < 0 || i <= maxOcc; i++ {
		next := m.matchOnce(p, cur)
		if next.empty() {
			break
		}
		if i >= minOcc {
			if !result.addAll(next) && i > minOcc {
				break
			}
		}
		cur = next
	}
	return result
}

// matchOnce matches exactly one occurrence of p.
func (m *contentMatcher) matchOnce(p Particle, in *frontier) *frontier {
	switch p := p.(type) {
	case *ElementDecl:
		return m.matchElement(p, in)
	case *ElementRef:
		if p.Decl == nil {
			return newFrontier()
		}
		return m.matchElement(p.Decl, in)
	case *AnyElement:
		return m.matchWildcard(p, in)
	case *GroupRef:
		if p.Group == nil {
			return in
		}
		return m.match(p.Group, in)
	case *ModelGroup:
		switch p.Kind {
		case ChoiceGroup:
			out := newFrontier()
			for _, child := range p.Particles {
				out.addAll(m.match(child, in))
			}
			return out
		case AllGroup:
			return m.matchAll(p, in)
		default:
			cur := in
			for _, child := range p.Particles {
				if cur = m.match(child, cur); cur.empty() {
					break
				}
			}
			return cur
		}
	}
	return in
}

func (m *contentMatcher) matchElement(decl *ElementDecl, in *frontier) *frontier {
	out := newFrontier()
	members := m.schema.SubstitutionGroups[decl.Name]
	if !decl.Global {
		members = nil
	}
	for _, pos := range in.order {
		if !decl.Abstract {
			m.expect(pos, expectation{name: decl.Name})
		}
		for _, member := range members {
			if !member.Abstract {
				m.expect(pos, expectation{name: member.Name})
			}
		}
		if pos >= len(m.children) {
			continue
		}
		name := nameOf(m.children[pos])
		matched := decl
		if name != decl.Name {
			matched = nil
			for _, member := range members {
				if member.Name == name {
					matched = member
					break
				}
			}
		}
		if matched != nil {
			m.reach(out, pos+1, &binding{index: pos, decl: matched, prev: in.at[pos]})
		}
	}
	return out
}

func (m *contentMatcher) matchWildcard(wc *AnyElement, in *frontier) *frontier {
	out := newFrontier()
	constraint := wc.constraint()
	for _, pos := range in.order {
		m.expect(pos, expectation{wildcard: constraint})
		if pos >= len(m.children) {
			continue
		}
		if constraint.Matches(string(m.children[pos].NamespaceURI())) {
			m.reach(out, pos+1, &binding{index: pos, wildcard: wc, prev: in.at[pos]})
		}
	}
	return out
}

// matchAll explores the orders in which the particles of an all group can
// appear. Each particle matches at most once.
func (m *contentMatcher) matchAll(group *ModelGroup, in *frontier) *frontier {
	type state struct {
		pos  int
		used uint64
	}
	particles := group.Particles
	if len(particles) > 64 {
		particles = particles[:64]
	}
	var required uint64
	for i, p := range particles {
		if p.MinOccurs() > 0 {
			required |= 1 << uint(i)
		}
	}

	out := newFrontier()
	visited := make(map[state]bool)
	var queue []state
	chains := make(map[state]*binding)
	for _, pos := range in.order {
		s := state{pos: pos}
		visited[s] = true
		chains[s] = in.at[pos]
		queue = append(queue, s)
	}

	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		if s.used&required == required {
			m.reach(out, s.pos, chains[s])
		}
		from := newFrontier()
		from.add(s.pos, chains[s])
		for i, p := range particles {
			bit := uint64(1) << uint(i)
			if s.used&bit != 0 || p.MaxOccurs() == 0 {
				continue
			}
			next := m.matchOnce(p, from)
			for _, pos := range next.order {
				if pos == s.pos {
					continue
				}
				ns := state{pos: pos, used: s.used | bit}
				if visited[ns] {
					continue
				}
				visited[ns] = true
				chains[ns] = next.at[pos]
				queue = append(queue, ns)
			}
		}
	}
	return out
}

// describeName renders an element name the way messages quote it.
func describeName(name QName) string {
	if name.Namespace == "" {
		return fmt.Sprintf("'%s'", name.Local)
	}
	return fmt.Sprintf("'%s' in namespace '%s'", name.Local, name.Namespace)
}

// describeExpected renders expected elements grouped by namespace, for
// example "'a, b' in namespace 'urn:x' as well as 'c'".
func describeExpected(expected []expectation) string {
	var (
		parts  []string
		groups = make(map[string][]string)
		order  []string
	)
	for _, e := range expected {
		if e.wildcard != nil {
			continue
		}
		ns := e.name.Namespace
		if _, ok := groups[ns]; !ok {
			order = append(order, ns)
		}
		groups[ns] = append(groups[ns], e.name.Local)
	}
	for _, ns := range order {
		names := strings.Join(groups[ns], ", ")
		if ns == "" {
			parts = append(parts, fmt.Sprintf("'%s'", names))
		} else {
			parts = append(parts, fmt.Sprintf("'%s' in namespace '%s'", names, ns))
		}
	}
	for _, e := range expected {
		if e.wildcard != nil {
			parts = append(parts, e.wildcard.Describe())
		}
	}
	return strings.Join(parts, " as well as ")
}

func expectedNames(expected []expectation) []string {
	out := make([]string, 0, len(expected))
	for _, e := range expected {
		if e.wildcard != nil {
			out = append(out, e.wildcard.Describe())
			continue
		}
		out = append(out, e.name.Qualified())
	}
	return out
}
