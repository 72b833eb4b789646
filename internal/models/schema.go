package models

// FieldType is the inferred column type declared to the load job.
type FieldType string

const (
	TypeBoolean FieldType = "BOOLEAN"
	TypeInt64   FieldType = "INT64"
	TypeFloat64 FieldType = "FLOAT64"
	TypeString  FieldType = "STRING"
)

// ColumnSchema pairs a normalized column name with its inferred type.
type ColumnSchema struct {
	Name string
	Type FieldType
}

// InferredSchema is the ordered output of schema inference over a sample.
// The inference is authoritative for the full-file load and never revisited.
type InferredSchema struct {
	Columns []ColumnSchema
}

// Names returns the normalized column names in declaration order.
func (s InferredSchema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// TypeReport maps each column name to its inferred type, for downstream
// consumers and logs.
func (s InferredSchema) TypeReport() map[string]FieldType {
	report := make(map[string]FieldType, len(s.Columns))
	for _, c := range s.Columns {
		report[c.Name] = c.Type
	}
	return report
}
