// Package catalog holds the declarative schema of a bibliothecula database:
// every table, view, index, trigger and reference query as an immutable
// Statement with explicit dependencies. Resolve orders statements for
// execution and the exporter renders them to schema files.
package catalog

import (
	"strings"
)

// Kind is a flag set describing what a statement does. A statement may carry
// several kinds at once, e.g. an FTS table is both KindTable and KindIndex.
type Kind uint8

const (
	KindTable Kind = 1 << iota
	KindView
	KindIndex
	KindTrigger
	KindQuery
	KindExample
	KindCLI
)

// kindKeywords is ordered the way kinds are listed in exports.
var kindKeywords = []struct {
	kind    Kind
	keyword string
}{
	{KindTable, "create table"},
	{KindIndex, "index"},
	{KindView, "create view"},
	{KindTrigger, "create trigger"},
	{KindQuery, "query data"},
	{KindExample, "example"},
	{KindCLI, "CLI"},
}

// Has reports whether every flag in other is set in k.
func (k Kind) Has(other Kind) bool {
	return other != 0 && k&other == other
}

// Keywords returns the human-readable keyword of each flag set in k.
func (k Kind) Keywords() []string {
	var out []string
	for _, kw := range kindKeywords {
		if k&kw.kind != 0 {
			out = append(out, kw.keyword)
		}
	}
	return out
}

func (k Kind) String() string {
	return strings.Join(k.Keywords(), ", ")
}

// Statement is one catalog entry. It is immutable after New returns.
type Statement struct {
	id         string
	body       string
	kind       Kind
	deps       []string
	executable bool
	doc        string
}

// Option configures a Statement under construction.
type Option func(*Statement)

// DependsOn records the IDs of statements that must run before this one.
func DependsOn(ids ...string) Option {
	return func(s *Statement) {
		s.deps = append(s.deps, ids...)
	}
}

// Executable marks the statement as safe to run verbatim. Statements without
// it are documentation: example queries meant to be adapted by hand.
func Executable() Option {
	return func(s *Statement) {
		s.executable = true
	}
}

// Doc attaches a plain-text description.
func Doc(text string) Option {
	return func(s *Statement) {
		s.doc = text
	}
}

// New builds a Statement.
func New(id, body string, kind Kind, opts ...Option) *Statement {
	s := &Statement{id: id, body: strings.TrimSpace(body), kind: kind}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Statement) ID() string   { return s.id }
func (s *Statement) Body() string { return s.body }
func (s *Statement) Kind() Kind   { return s.kind }
func (s *Statement) Doc() string  { return s.doc }

// Executable reports whether the statement may be run verbatim.
func (s *Statement) Executable() bool { return s.executable }

// Dependencies returns a copy of the dependency IDs in declaration order.
func (s *Statement) Dependencies() []string {
	out := make([]string, len(s.deps))
	copy(out, s.deps)
	return out
}

// Defines reports whether the statement creates a schema object. Only
// defining statements go into the main section of an export and are applied
// when a database is attached.
func (s *Statement) Defines() bool {
	fields := strings.Fields(s.body)
	return len(fields) > 0 && strings.EqualFold(fields[0], "CREATE")
}

func (s *Statement) String() string { return s.id }
