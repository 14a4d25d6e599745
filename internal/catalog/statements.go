package catalog

// Statement IDs referenced from code.
const (
	CreateDocuments                 = "CREATE_DOCUMENTS"
	CreateTextMetadata              = "CREATE_TEXTMETADATA"
	CreateBinaryMetadata            = "CREATE_BINARYMETADATA"
	CreateDocumentHasTextMetadata   = "CREATE_DOCUMENTHASTEXTMETADATA"
	CreateDocumentHasBinaryMetadata = "CREATE_DOCUMENTHASBINARYMETADATA"
	CreateAuthorsView               = "CREATE_VIEW_DOCUMENTS_TITLE_AUTHORS"
	FTSCreateTable                  = "FTS_CREATE_TABLE"
	CreateUndoLog                   = "CREATE_UNDOLOG"
	CreateBackrefs                  = "CREATE_BACKREFS"

	FTSRebuild              = "FTS_REBUILD"
	FTSOptimize             = "FTS_OPTIMIZE"
	FTSIntegrityCheck       = "FTS_INTEGRITY_CHECK"
	FTSSelectConfig         = "FTS_SELECT_CONFIG"
	UndoLogDeleteBigEntries = "UNDOLOG_DELETE_BIG_ENTRIES"
)

// Core schema.

var createDocuments = New(CreateDocuments, `
CREATE TABLE IF NOT EXISTS "Documents" (
    "uuid" CHARACTER(32) NOT NULL PRIMARY KEY,
    "title" TEXT NOT NULL,
    "title_suffix" TEXT DEFAULT NULL, -- disambiguate documents with matching titles
    "created" DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%f', 'now')),
    "last_modified" DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%f', 'now'))
);`, KindTable, Executable(),
	Doc("Documents are the root entities; metadata is attached to them through the two join tables."))

var createTextMetadata = New(CreateTextMetadata, `
CREATE TABLE IF NOT EXISTS "TextMetadata" (
    "uuid" CHARACTER(32) NOT NULL PRIMARY KEY,
    "name" TEXT NULL,
    "data" TEXT NOT NULL,
    "created" DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%f', 'now')),
    "last_modified" DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%f', 'now'))
);`, KindTable, Executable())

var createBinaryMetadata = New(CreateBinaryMetadata, `
CREATE TABLE IF NOT EXISTS "BinaryMetadata" (
    "uuid" CHARACTER(32) NOT NULL PRIMARY KEY,
    "name" TEXT NULL,
    "data" BLOB NOT NULL,
    "compressed" BOOLEAN NOT NULL DEFAULT (0),
    "created" DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%f', 'now')),
    "last_modified" DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%f', 'now'))
);`, KindTable, Executable(),
	Doc("Binary values. A name holding a JSON object with content_type, filename and size marks the value as a file."))

var createDocumentHasTextMetadata = New(CreateDocumentHasTextMetadata, `
CREATE TABLE IF NOT EXISTS "DocumentHasTextMetadata" (
    "id" INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
    "name" TEXT NOT NULL,
    "document_uuid" CHARACTER(32) NOT NULL
        REFERENCES "Documents" ("uuid") ON DELETE CASCADE DEFERRABLE INITIALLY DEFERRED,
    "metadata_uuid" CHARACTER(32) NOT NULL
        REFERENCES "TextMetadata" ("uuid") ON DELETE CASCADE DEFERRABLE INITIALLY DEFERRED,
    "created" DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%f', 'now')),
    "last_modified" DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%f', 'now'))
);`, KindTable, Executable(), DependsOn(CreateDocuments, CreateTextMetadata),
	Doc("Attaches a text value to a document. The name column is the role of the attachment."))

var createDocumentHasBinaryMetadata = New(CreateDocumentHasBinaryMetadata, `
CREATE TABLE IF NOT EXISTS "DocumentHasBinaryMetadata" (
    "id" INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
    "name" TEXT NOT NULL,
    "document_uuid" CHARACTER(32) NOT NULL
        REFERENCES "Documents" ("uuid") ON DELETE CASCADE DEFERRABLE INITIALLY DEFERRED,
    "metadata_uuid" CHARACTER(32) NOT NULL
        REFERENCES "BinaryMetadata" ("uuid") ON DELETE CASCADE DEFERRABLE INITIALLY DEFERRED,
    "created" DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%f', 'now')),
    "last_modified" DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%f', 'now'))
);`, KindTable, Executable(), DependsOn(CreateDocuments, CreateBinaryMetadata),
	Doc("Attaches a binary value to a document. The name column is the role of the attachment."))

var indexTextMetadataUnique = New("CREATE_TEXTMETADATA_UNIQUE_INDEX", `
CREATE UNIQUE INDEX IF NOT EXISTS textmetadata_name_data_idx
    ON "TextMetadata" ("name", "data");`, KindIndex, Executable(), DependsOn(CreateTextMetadata),
	Doc("A (name, data) pair is stored once; identical tags are shared between documents."))

var indexBinaryMetadataUnique = New("CREATE_BINARYMETADATA_UNIQUE_INDEX", `
CREATE UNIQUE INDEX IF NOT EXISTS binarymetadata_name_data_idx
    ON "BinaryMetadata" ("name", "data");`, KindIndex, Executable(), DependsOn(CreateBinaryMetadata))

var indexHasTextUnique = New("CREATE_DOCUMENTHASTEXTMETADATA_UNIQUE_INDEX", `
CREATE UNIQUE INDEX IF NOT EXISTS documenthastextmetadata_pair_idx
    ON "DocumentHasTextMetadata" ("document_uuid", "metadata_uuid");`, KindIndex, Executable(),
	DependsOn(CreateDocumentHasTextMetadata))

var indexHasBinaryUnique = New("CREATE_DOCUMENTHASBINARYMETADATA_UNIQUE_INDEX", `
CREATE UNIQUE INDEX IF NOT EXISTS documenthasbinarymetadata_pair_idx
    ON "DocumentHasBinaryMetadata" ("document_uuid", "metadata_uuid");`, KindIndex, Executable(),
	DependsOn(CreateDocumentHasBinaryMetadata))

// Search schema.

var createAuthorsView = New(CreateAuthorsView, `
CREATE VIEW IF NOT EXISTS document_title_authors (uuid, title, authors) AS
SELECT d.uuid, d.title, a.authors
FROM
    Documents AS d
    LEFT JOIN (SELECT
            dhtm.document_uuid AS document_uuid,
            GROUP_CONCAT(tm.data, ', ') AS authors
        FROM
            DocumentHasTextMetadata AS dhtm
            JOIN TextMetadata AS tm ON dhtm.metadata_uuid = tm.uuid
        WHERE
            dhtm.name = 'author'
        GROUP BY
            dhtm.document_uuid) AS a ON d.uuid = a.document_uuid;`,
	KindView, Executable(), DependsOn(CreateDocuments, CreateDocumentHasTextMetadata),
	Doc("Each document with its title and a comma separated list of authors, or NULL."))

var ftsCreateTable = New(FTSCreateTable, `
CREATE VIRTUAL TABLE IF NOT EXISTS document_title_authors_text_view_fts
    USING fts5(title, authors, full_text, uuid UNINDEXED);`,
	KindIndex|KindTable, Executable(),
	Doc("Full-text search index over document title, authors and full text, using the fts5 module."))

var indexSingleFullText = New("CREATE_SINGLE_FULL_TEXT_INDEX", `
CREATE UNIQUE INDEX IF NOT EXISTS documenthasbinarymetadata_full_text_idx
    ON "DocumentHasBinaryMetadata" ("document_uuid") WHERE "name" = 'full-text';`,
	KindIndex, Executable(), DependsOn(CreateDocumentHasBinaryMetadata),
	Doc("A document has at most one full-text attachment, so the search index holds at most one row per document."))

var ftsInsertTrigger = New("FTS_CREATE_INSERT_TRIGGER", `
CREATE TRIGGER IF NOT EXISTS insert_full_text_trigger
    AFTER INSERT ON DocumentHasBinaryMetadata
    WHEN NEW.name = 'full-text'
BEGIN
    INSERT INTO document_title_authors_text_view_fts (uuid, title, authors, full_text)
    SELECT d.uuid, d.title, d.authors, CAST(bm.data AS TEXT)
    FROM
        document_title_authors AS d,
        BinaryMetadata AS bm
    WHERE
        d.uuid = NEW.document_uuid
        AND bm.uuid = NEW.metadata_uuid;
END;`, KindTrigger|KindIndex, Executable(),
	DependsOn(FTSCreateTable, CreateDocumentHasBinaryMetadata, CreateAuthorsView),
	Doc("Insert a search index row when a binary value is attached to a document as full-text."))

var ftsDeleteTrigger = New("FTS_CREATE_DELETE_TRIGGER", `
CREATE TRIGGER IF NOT EXISTS delete_full_text_trigger
    AFTER DELETE ON DocumentHasBinaryMetadata
    WHEN OLD.name = 'full-text'
BEGIN
    DELETE FROM document_title_authors_text_view_fts
    WHERE uuid = OLD.document_uuid;
END;`, KindTrigger|KindIndex, Executable(),
	DependsOn(FTSCreateTable, CreateDocumentHasBinaryMetadata),
	Doc("Remove a document's search index row when its full-text attachment is removed."))

var ftsTitleTrigger = New("FTS_CREATE_TITLE_TRIGGER", `
CREATE TRIGGER IF NOT EXISTS update_title_full_text_trigger
    AFTER UPDATE OF title ON Documents
BEGIN
    UPDATE document_title_authors_text_view_fts
    SET title = NEW.title
    WHERE uuid = NEW.uuid;
END;`, KindTrigger|KindIndex, Executable(),
	DependsOn(FTSCreateTable, CreateDocuments),
	Doc("Keep the indexed title current when a document is renamed."))

var ftsBlobTrigger = New("FTS_CREATE_BLOB_TRIGGER", `
CREATE TRIGGER IF NOT EXISTS update_data_full_text_trigger
    AFTER UPDATE OF data ON BinaryMetadata
BEGIN
    UPDATE document_title_authors_text_view_fts
    SET full_text = CAST(NEW.data AS TEXT)
    WHERE uuid IN (SELECT document_uuid FROM DocumentHasBinaryMetadata
        WHERE metadata_uuid = NEW.uuid AND name = 'full-text');
END;`, KindTrigger|KindIndex, Executable(),
	DependsOn(FTSCreateTable, CreateBinaryMetadata, CreateDocumentHasBinaryMetadata),
	Doc("Keep the indexed full text current when an attached full-text value is replaced."))

var ftsAuthorInsertTrigger = New("FTS_CREATE_AUTHOR_INSERT_TRIGGER", `
CREATE TRIGGER IF NOT EXISTS insert_author_full_text_trigger
    AFTER INSERT ON DocumentHasTextMetadata
    WHEN NEW.name = 'author'
BEGIN
    UPDATE document_title_authors_text_view_fts
    SET authors = (SELECT authors FROM document_title_authors WHERE uuid = NEW.document_uuid)
    WHERE uuid = NEW.document_uuid;
END;`, KindTrigger|KindIndex, Executable(),
	DependsOn(FTSCreateTable, CreateDocumentHasTextMetadata, CreateAuthorsView),
	Doc("Refresh the indexed author list when an author is attached."))

var ftsAuthorDeleteTrigger = New("FTS_CREATE_AUTHOR_DELETE_TRIGGER", `
CREATE TRIGGER IF NOT EXISTS delete_author_full_text_trigger
    AFTER DELETE ON DocumentHasTextMetadata
    WHEN OLD.name = 'author'
BEGIN
    UPDATE document_title_authors_text_view_fts
    SET authors = (SELECT authors FROM document_title_authors WHERE uuid = OLD.document_uuid)
    WHERE uuid = OLD.document_uuid;
END;`, KindTrigger|KindIndex, Executable(),
	DependsOn(FTSCreateTable, CreateDocumentHasTextMetadata, CreateAuthorsView),
	Doc("Refresh the indexed author list when an author is detached."))

// Undo log. The per-table triggers are generated by undoTriggers.

var createUndoLog = New(CreateUndoLog, `
CREATE TABLE IF NOT EXISTS "undolog" (
    "id" INTEGER NOT NULL PRIMARY KEY AUTOINCREMENT,
    "action" TEXT NOT NULL,
    "tbl_name" TEXT NOT NULL,
    "sql" TEXT NOT NULL,
    "params" TEXT NOT NULL DEFAULT '[]',
    "timestamp" DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%f', 'now'))
);`, KindTable, Executable(),
	Doc("Undo log. Each row holds a statement template reversing one row-level change and the JSON array of values to bind to it."))

// Backlink index.

var createBackrefs = New(CreateBackrefs, `
CREATE TABLE IF NOT EXISTS "backrefs" (
    "referrer" CHARACTER(32) NOT NULL,
    "target" CHARACTER(32) NOT NULL,
    PRIMARY KEY ("referrer", "target")
) WITHOUT ROWID;`, KindTable|KindIndex, Executable(),
	Doc("Backlink index: referrer's content embeds target's identifier. Rebuildable from primary data at any time."))

var indexBackrefsTarget = New("CREATE_BACKREFS_TARGET_INDEX", `
CREATE INDEX IF NOT EXISTS backrefs_target_idx ON "backrefs" ("target");`,
	KindIndex, Executable(), DependsOn(CreateBackrefs))

// Maintenance.

var ftsRebuild = New(FTSRebuild, `
INSERT INTO document_title_authors_text_view_fts(document_title_authors_text_view_fts)
    VALUES('rebuild');`, KindIndex, Executable(), DependsOn(FTSCreateTable),
	Doc("Delete the entire full-text index, then rebuild it."))

var ftsOptimize = New(FTSOptimize, `
INSERT INTO document_title_authors_text_view_fts(document_title_authors_text_view_fts)
    VALUES('optimize');`, KindIndex, Executable(), DependsOn(FTSCreateTable),
	Doc("Merge the b-trees that make up the full-text index into one. Can take a long time on large libraries."))

var ftsIntegrityCheck = New(FTSIntegrityCheck, `
INSERT INTO document_title_authors_text_view_fts(document_title_authors_text_view_fts)
    VALUES('integrity-check');`, KindIndex|KindQuery, Executable(), DependsOn(FTSCreateTable),
	Doc("Verify that the full-text index is internally consistent."))

var ftsSelectConfig = New(FTSSelectConfig, `
SELECT * FROM document_title_authors_text_view_fts_config;`, KindIndex|KindQuery, Executable(),
	DependsOn(FTSCreateTable),
	Doc("Return the persistent configuration parameters of the full-text index."))

var undoLogDeleteBigEntries = New(UndoLogDeleteBigEntries, `
DELETE FROM undolog WHERE length(CAST(sql AS BLOB)) + length(CAST(params AS BLOB)) > ?;`,
	KindQuery, Executable(), DependsOn(CreateUndoLog),
	Doc("Delete oversized entries, usually large binary files, from the undo log to free up space. Bind the size limit in bytes."))

// Examples.

var ftsSearch = New("FTS_SEARCH", `
SELECT uuid FROM document_title_authors_text_view_fts('query text');`,
	KindIndex|KindQuery|KindExample, DependsOn(FTSCreateTable),
	Doc("Query the full-text index for documents."))

var createUUIDTokenizer = New("CREATE_UUID_TOKENIZER", `
CREATE VIRTUAL TABLE IF NOT EXISTS uuidtok USING fts3tokenize(
    'unicode61',
    "tokenchars=-1234567890abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ",
    "separators= "
);`, KindIndex|KindTable|KindExample,
	Doc("Tokenizer table splitting text into identifier-shaped tokens, for finding references by hand in the sqlite3 shell."))

var queryValidJSONNames = New("QUERY_VALID_JSON_NAMES", `
SELECT uuid, name FROM BinaryMetadata WHERE json_valid(name);`,
	KindQuery|KindExample, DependsOn(CreateBinaryMetadata),
	Doc("Binary values whose name is a JSON file record."))

var queryTextFiles = New("QUERY_TEXT_FILES", `
SELECT uuid, name, json_extract(name, '$.content_type') AS _type
FROM BinaryMetadata
WHERE json_valid(name) AND _type LIKE '%text/%';`,
	KindQuery|KindExample, DependsOn(CreateBinaryMetadata),
	Doc("Text files."))

var queryBackrefCandidates = New("QUERY_BACKREF_CANDIDATES", `
SELECT DISTINCT token FROM uuidtok
WHERE input = (SELECT data FROM BinaryMetadata WHERE uuid = '17ee75452e574e03b0b8e4ef2bc9be25')
    AND LENGTH(token) = 36;`,
	KindQuery|KindExample, DependsOn(CreateBinaryMetadata, "CREATE_UUID_TOKENIZER"),
	Doc("Identifier-shaped tokens in one binary value."))

var queryUUIDWithHyphens = New("QUERY_UUID_WITH_HYPHENS", `
SELECT * FROM Documents
WHERE uuid = REPLACE('7ec63f30-5882-46ac-855d-bdcaf8f29700', '-', '');`,
	KindQuery|KindExample, DependsOn(CreateDocuments),
	Doc("Match against an identifier written with hyphens."))

var queryBackrefsFromTextFiles = New("QUERY_BACKREFS_FROM_TEXT_FILES", `
SELECT DISTINCT REPLACE(tok.token, '-', '') AS target, texts.uuid AS referrer
FROM uuidtok AS tok,
    (SELECT uuid, data, json_extract(name, '$.content_type') AS _type
     FROM BinaryMetadata
     WHERE json_valid(name) AND _type LIKE '%text/%') AS texts
WHERE tok.input = texts.data AND LENGTH(tok.token) = 36
    AND EXISTS (SELECT * FROM Documents WHERE uuid = REPLACE(tok.token, '-', ''));`,
	KindQuery|KindExample, DependsOn(CreateDocuments, "CREATE_UUID_TOKENIZER", CreateBinaryMetadata),
	Doc("Find references to documents from plain text files."))

var queryBackrefsOfDocument = New("QUERY_BACKREFS_OF_DOCUMENT", `
SELECT d.uuid, d.title
FROM backrefs AS b
    JOIN DocumentHasBinaryMetadata AS dhbm ON dhbm.metadata_uuid = b.referrer
    JOIN Documents AS d ON d.uuid = dhbm.document_uuid
WHERE b.target = '7ec63f30588246ac855dbdcaf8f29700';`,
	KindQuery|KindExample, DependsOn(CreateBackrefs, CreateDocuments, CreateDocumentHasBinaryMetadata),
	Doc("Documents whose attached files mention the given identifier."))

// sqlite3 CLI recipes.

var cliInsertFile = New("CLI_INSERT_FILE", `
UPDATE BinaryMetadata SET
    data = readfile('file.pdf'),
    name = json_object('content_type', 'application/pdf',
        'filename', 'file.pdf', 'size', LENGTH(readfile('file.pdf'))),
    last_modified = strftime('%Y-%m-%d %H:%M:%f', 'now')
WHERE uuid = '17ee75452e574e03b0b8e4ef2bc9be25';`, KindCLI|KindExample,
	Doc("The sqlite3 shell function readfile(PATH) returns the bytes of a file as a BLOB. json_object builds the file record for the name."))

var cliExtractFile = New("CLI_EXTRACT_FILE", `
SELECT writefile('file.pdf', data) FROM BinaryMetadata
WHERE uuid = '17ee75452e574e03b0b8e4ef2bc9be25';`, KindCLI|KindExample,
	Doc("Extract a binary value to a file from the sqlite3 shell."))

var cliEditFile = New("CLI_EDIT_FILE", `
UPDATE BinaryMetadata SET data = edit(data, 'vim')
WHERE uuid = '17ee75452e574e03b0b8e4ef2bc9be25';`, KindCLI|KindExample,
	Doc("Edit a binary value in an external editor with the sqlite3 shell edit() function."))

var cliViewFile = New("CLI_VIEW_FILE", `
SELECT LENGTH(edit(data, 'zathura')) FROM BinaryMetadata
WHERE uuid = '17ee75452e574e03b0b8e4ef2bc9be25';`, KindCLI|KindExample,
	Doc("View a binary value with edit(), ignoring the value it returns."))

var removeDuplicateRows = New("REMOVE_DUPLICATE_ROWS", `
DELETE FROM table WHERE rowid NOT IN
    (SELECT MIN(rowid) FROM table
     GROUP BY unique_column_1, unique_column_2);`, KindCLI|KindExample,
	Doc("Remove duplicate rows before adding a unique index. Adapt to your table."))
