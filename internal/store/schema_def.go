package store

// SchemaSQL defines the store structure.
// Full text indexes use fts4: the sqlite3 driver ships FTS3/4 in its default
// build while FTS5 needs the sqlite_fts5 tag.
const SchemaSQL = `
-- ========================================================
-- 1. RUN METADATA
-- ========================================================
CREATE TABLE Metadata (
    Key INTEGER PRIMARY KEY,
    Name TEXT NOT NULL UNIQUE,
    Value TEXT
);

-- Known terminology sources, seeded at creation
CREATE TABLE TxSource (
    Code TEXT PRIMARY KEY,
    Display TEXT
);

-- ========================================================
-- 2. PACKAGES
-- ========================================================
CREATE TABLE Packages (
    PackageKey INTEGER PRIMARY KEY,
    PID TEXT NOT NULL UNIQUE,         -- name#version
    Id TEXT,                          -- name
    Date TEXT,
    Title TEXT,
    Canonical TEXT,
    Web TEXT,
    Version TEXT,
    R2 INTEGER, R2B INTEGER, R3 INTEGER, R4 INTEGER, R4B INTEGER, R5 INTEGER, R6 INTEGER,
    Realm TEXT,                       -- patched once resolved from an artifact
    Auth TEXT,
    Package BLOB,                     -- package.json as found
    Published INTEGER NOT NULL DEFAULT 0
);

-- ========================================================
-- 3. RESOURCES & CONTENT
-- ========================================================
CREATE TABLE Resources (
    ResourceKey INTEGER PRIMARY KEY,
    PackageKey INTEGER NOT NULL,
    ResourceType TEXT,                -- as declared at the source version
    NormalizedResourceType TEXT,
    Id TEXT,
    R2 INTEGER, R2B INTEGER, R3 INTEGER, R4 INTEGER, R4B INTEGER, R5 INTEGER, R6 INTEGER,
    Web TEXT,
    Url TEXT,                         -- canonical URL, unique per run
    Version TEXT,
    Status TEXT,
    Date TEXT,
    Name TEXT,
    Title TEXT,
    Experimental INTEGER,
    Realm TEXT,
    Description TEXT,
    Purpose TEXT,
    Copyright TEXT,
    CopyrightLabel TEXT,
    Kind TEXT,
    Type TEXT,
    Supplements TEXT,
    ValueSet TEXT,
    Content TEXT,
    Authority TEXT,
    Details TEXT,
    FOREIGN KEY(PackageKey) REFERENCES Packages(PackageKey)
);

-- Contents: gzip compressed source and normalized JSON
CREATE TABLE Contents (
    ResourceKey INTEGER PRIMARY KEY,
    Json BLOB,
    NormalizedJson BLOB,
    FOREIGN KEY(ResourceKey) REFERENCES Resources(ResourceKey)
);

-- Categories: outbound reference markers (mode 1..5)
CREATE TABLE Categories (
    ResourceKey INTEGER NOT NULL,
    Mode INTEGER NOT NULL,
    Code TEXT NOT NULL,
    PRIMARY KEY (ResourceKey, Mode, Code),
    FOREIGN KEY(ResourceKey) REFERENCES Resources(ResourceKey)
);

-- ========================================================
-- 4. GOVERNANCE
-- ========================================================
CREATE TABLE Realms (
    Code TEXT PRIMARY KEY
);

CREATE TABLE Authorities (
    Code TEXT PRIMARY KEY
);

-- ========================================================
-- 5. SEARCH
-- ========================================================

-- docid mirrors ResourceKey
CREATE VIRTUAL TABLE ResourceFTS USING fts4(
    ResourceKey,
    Name,
    Title,
    Description,
    Narrative
);

-- One row per code system concept, children included
CREATE VIRTUAL TABLE CodeSystemFTS USING fts4(
    ResourceKey,
    Code,
    Display,
    Definition
);

-- ========================================================
-- 6. INDEXES
-- ========================================================
CREATE UNIQUE INDEX idx_resources_url ON Resources(Url);
CREATE INDEX idx_resources_package ON Resources(PackageKey);
CREATE INDEX idx_resources_type ON Resources(NormalizedResourceType);
CREATE INDEX idx_categories_code ON Categories(Mode, Code);
CREATE INDEX idx_packages_realm ON Packages(Realm);
`
