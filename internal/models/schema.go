package models

import "time"

// FieldMode is the BigQuery-style nullability mode of a SchemaField.
type FieldMode string

const (
	ModeRequired FieldMode = "REQUIRED"
	ModeNullable FieldMode = "NULLABLE"
	ModeRepeated FieldMode = "REPEATED"
)

// FieldType is the BigQuery-style type tag of a SchemaField.
type FieldType string

const (
	TypeString    FieldType = "STRING"
	TypeInteger   FieldType = "INTEGER"
	TypeFloat     FieldType = "FLOAT"
	TypeBoolean   FieldType = "BOOLEAN"
	TypeTimestamp FieldType = "TIMESTAMP"
	TypeRecord    FieldType = "RECORD"
)

// SchemaField is one entry of a schema's field tree. Field paths are
// dot-joined; RECORD fields carry an ordered list of children.
type SchemaField struct {
	Name        string
	Type        FieldType
	Mode        FieldMode
	Description string
	PolicyTags  []string
	Fields      []SchemaField // nested fields, only meaningful when Type == RECORD

	// FieldPath and ParentPath are populated when a field is loaded from
	// or persisted to the registry; they are not required on input.
	FieldPath  string
	ParentPath string
}

// Schema is identified by {DatabaseName, TableName}; SchemaID is always
// "{DatabaseName}.{TableName}".
type Schema struct {
	SchemaID       string
	DatabaseName   string
	TableName      string
	CurrentVersion string // version hash of the current SchemaVersion
	CreatedAt      time.Time
	LastUpdated    time.Time
	TotalVersions  int
}

// SchemaVersion is one immutable registration of a Schema's field tree.
type SchemaVersion struct {
	SchemaID       string
	VersionHash    string
	ProtoSource    string // empty if registered from JSON directly
	SchemaJSON     string // canonical JSON this version was registered with
	Fields         []SchemaField
	CreatedAt      time.Time
	EnginesCreated []string // engines for which create_tables has succeeded, current version only
}
