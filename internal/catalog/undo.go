package catalog

import (
	"fmt"
	"strings"
)

// column describes one column captured by the undo log. Blob columns are
// stored hex-encoded in the JSON params and decoded again with unhex().
type column struct {
	name string
	blob bool
}

// tableSpec describes a primary table watched by the undo log.
type tableSpec struct {
	table   string
	create  string // ID of the statement that creates the table
	trigger string // trigger name prefix, e.g. "doc" gives doc_it, doc_ut, doc_dt
	key     string
	columns []column // every column, key included
}

var undoTables = []tableSpec{
	{
		table: "Documents", create: CreateDocuments, trigger: "doc", key: "uuid",
		columns: []column{{name: "uuid"}, {name: "title"}, {name: "title_suffix"}, {name: "created"}, {name: "last_modified"}},
	},
	{
		table: "TextMetadata", create: CreateTextMetadata, trigger: "text", key: "uuid",
		columns: []column{{name: "uuid"}, {name: "name"}, {name: "data"}, {name: "created"}, {name: "last_modified"}},
	},
	{
		table: "BinaryMetadata", create: CreateBinaryMetadata, trigger: "binary", key: "uuid",
		columns: []column{{name: "uuid"}, {name: "name"}, {name: "data", blob: true}, {name: "compressed"}, {name: "created"}, {name: "last_modified"}},
	},
	{
		table: "DocumentHasTextMetadata", create: CreateDocumentHasTextMetadata, trigger: "has_text", key: "id",
		columns: []column{{name: "id"}, {name: "name"}, {name: "document_uuid"}, {name: "metadata_uuid"}, {name: "created"}, {name: "last_modified"}},
	},
	{
		table: "DocumentHasBinaryMetadata", create: CreateDocumentHasBinaryMetadata, trigger: "has_binary", key: "id",
		columns: []column{{name: "id"}, {name: "name"}, {name: "document_uuid"}, {name: "metadata_uuid"}, {name: "created"}, {name: "last_modified"}},
	},
}

// placeholder is the bind expression restoring a captured value.
func (c column) placeholder() string {
	if c.blob {
		return "unhex(?)"
	}
	return "?"
}

// capture is the expression storing the row value in the params array.
func (c column) capture(row string) string {
	if c.blob {
		return "hex(" + row + "." + c.name + ")"
	}
	return row + "." + c.name
}

// inverseInsert deletes the inserted row.
func (t tableSpec) inverseInsert() (template string, params []string) {
	return fmt.Sprintf("DELETE FROM %s WHERE %s = ?", t.table, t.key), []string{"NEW." + t.key}
}

// inverseUpdate restores every non-key column of the updated row.
func (t tableSpec) inverseUpdate() (template string, params []string) {
	var sets []string
	for _, c := range t.columns {
		if c.name == t.key {
			continue
		}
		sets = append(sets, c.name+" = "+c.placeholder())
		params = append(params, c.capture("OLD"))
	}
	params = append(params, "OLD."+t.key)
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", t.table, strings.Join(sets, ", "), t.key), params
}

// inverseDelete re-inserts the deleted row with all its original values.
func (t tableSpec) inverseDelete() (template string, params []string) {
	var names, marks []string
	for _, c := range t.columns {
		names = append(names, c.name)
		marks = append(marks, c.placeholder())
		params = append(params, c.capture("OLD"))
	}
	return fmt.Sprintf("INSERT INTO %s(%s) VALUES(%s)", t.table, strings.Join(names, ", "), strings.Join(marks, ", ")), params
}

// undoTriggers emits the AFTER INSERT, AFTER UPDATE and BEFORE DELETE
// triggers for t. Each trigger appends one undolog row holding a constant
// statement template and the JSON array of values to bind to it. Row values
// never become part of SQL text.
func undoTriggers(t tableSpec) []*Statement {
	type event struct {
		action, timing, suffix string
		inverse                func() (string, []string)
	}
	events := []event{
		{"INSERT", "AFTER", "it", t.inverseInsert},
		{"UPDATE", "AFTER", "ut", t.inverseUpdate},
		{"DELETE", "BEFORE", "dt", t.inverseDelete},
	}

	out := make([]*Statement, 0, len(events))
	for _, ev := range events {
		template, params := ev.inverse()
		body := fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS %s_%s
%s %s ON %s
BEGIN
  INSERT INTO undolog(action, tbl_name, sql, params)
  VALUES(%s, %s,
    %s,
    json_array(%s));
END;`,
			t.trigger, ev.suffix, ev.timing, ev.action, t.table,
			sqlString(ev.action), sqlString(t.table), sqlString(template),
			strings.Join(params, ", "))

		id := fmt.Sprintf("UNDOLOG_CREATE_TRIGGER_%s_%s", strings.ToUpper(t.table), ev.action)
		out = append(out, New(id, body, KindTrigger,
			DependsOn(CreateUndoLog, t.create),
			Executable(),
			Doc(fmt.Sprintf("Log the inverse of every %s on %s.", ev.action, t.table)),
		))
	}
	return out
}

// sqlString quotes s as an SQL string literal.
func sqlString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
