package catalog

import (
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
)

// Group names in the default catalog.
const (
	GroupCore        = "core"
	GroupSearch      = "search"
	GroupUndo        = "undo"
	GroupBackrefs    = "backrefs"
	GroupMaintenance = "maintenance"
	GroupExamples    = "examples"
	GroupCLI         = "cli"
)

// SchemaGroups are the groups applied when a database is attached.
var SchemaGroups = []string{GroupCore, GroupSearch, GroupUndo, GroupBackrefs}

// MainGroups make up the main schema export; every other group goes into
// the extended export.
var MainGroups = []string{GroupCore, GroupSearch}

// Group is a named, ordered slice of statements. Groups exist for
// presentation; resolution works over their union.
type Group struct {
	Name       string
	Statements []*Statement
}

// Catalog is an ordered collection of groups.
type Catalog struct {
	groups []Group
	byID   map[string]*Statement
}

// NewCatalog builds a catalog from groups in the given order. A statement
// that appears in several groups is indexed once.
func NewCatalog(groups ...Group) *Catalog {
	c := &Catalog{groups: groups, byID: make(map[string]*Statement)}
	for _, g := range groups {
		for _, s := range g.Statements {
			if _, ok := c.byID[s.ID()]; !ok {
				c.byID[s.ID()] = s
			}
		}
	}
	return c
}

// Groups returns the group names in declaration order.
func (c *Catalog) Groups() []string {
	names := make([]string, len(c.groups))
	for i, g := range c.groups {
		names[i] = g.Name
	}
	return names
}

// Group returns the named group.
func (c *Catalog) Group(name string) (Group, bool) {
	for _, g := range c.groups {
		if g.Name == name {
			return g, true
		}
	}
	return Group{}, false
}

// Statements returns the union of the named groups in declaration order,
// each statement once. With no names it returns every statement. Unknown
// names are ignored.
func (c *Catalog) Statements(groups ...string) []*Statement {
	want := mapset.NewThreadUnsafeSet(groups...)
	seen := mapset.NewThreadUnsafeSet[string]()
	var out []*Statement
	for _, g := range c.groups {
		if len(groups) > 0 && !want.Contains(g.Name) {
			continue
		}
		for _, s := range g.Statements {
			if seen.Add(s.ID()) {
				out = append(out, s)
			}
		}
	}
	return out
}

// Lookup returns the statement with the given ID.
func (c *Catalog) Lookup(id string) (*Statement, bool) {
	s, ok := c.byID[id]
	return s, ok
}

// Default returns the bibliothecula catalog. The result is shared and must
// not be modified.
var Default = sync.OnceValue(buildDefault)

func buildDefault() *Catalog {
	undo := []*Statement{createUndoLog}
	for _, t := range undoTables {
		undo = append(undo, undoTriggers(t)...)
	}

	return NewCatalog(
		Group{Name: GroupCore, Statements: []*Statement{
			createDocuments,
			createTextMetadata,
			createBinaryMetadata,
			createDocumentHasTextMetadata,
			createDocumentHasBinaryMetadata,
			indexTextMetadataUnique,
			indexBinaryMetadataUnique,
			indexHasTextUnique,
			indexHasBinaryUnique,
		}},
		Group{Name: GroupSearch, Statements: []*Statement{
			createAuthorsView,
			ftsCreateTable,
			indexSingleFullText,
			ftsInsertTrigger,
			ftsDeleteTrigger,
			ftsTitleTrigger,
			ftsBlobTrigger,
			ftsAuthorInsertTrigger,
			ftsAuthorDeleteTrigger,
		}},
		Group{Name: GroupUndo, Statements: undo},
		Group{Name: GroupBackrefs, Statements: []*Statement{
			createBackrefs,
			indexBackrefsTarget,
		}},
		Group{Name: GroupMaintenance, Statements: []*Statement{
			ftsRebuild,
			ftsOptimize,
			ftsIntegrityCheck,
			ftsSelectConfig,
			undoLogDeleteBigEntries,
		}},
		Group{Name: GroupExamples, Statements: []*Statement{
			ftsSearch,
			createUUIDTokenizer,
			queryValidJSONNames,
			queryTextFiles,
			queryBackrefCandidates,
			queryUUIDWithHyphens,
			queryBackrefsFromTextFiles,
			queryBackrefsOfDocument,
		}},
		Group{Name: GroupCLI, Statements: []*Statement{
			cliInsertFile,
			cliExtractFile,
			cliEditFile,
			cliViewFile,
			removeDuplicateRows,
		}},
	)
}
