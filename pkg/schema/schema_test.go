package schema

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const testSchema = `
collections:
  - name: users
    table: app_users
    primaryKeys: [id]
    fields:
      - field: id
        type: integer
      - field: email
        type: varchar
      - field: createdAt
        columnName: created_at
        type: timestamp
      - field: status
        type: Enum
        enums: [active, banned]
      - field: companyId
        columnName: company_id
        type: Number
        reference: companies.id
    associations:
      - name: company
        type: BelongsTo
        target: companies
        foreignKey: company_id
    segments:
      - name: active
        filters:
          - field: status
            value: active
  - name: companies
    primaryKeys: [id]
    fields:
      - field: id
        type: Number
      - field: name
        type: String
`

func TestRegistry_Parse(t *testing.T) {
	r := NewRegistry()
	if err := r.Parse([]byte(testSchema)); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	users, err := r.Get("users")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if users.Table() != "app_users" {
		t.Errorf("Table() = %s, want app_users", users.Table())
	}
	if users.PrimaryKey() != "id" {
		t.Errorf("PrimaryKey() = %s, want id", users.PrimaryKey())
	}

	// Синонимы типов нормализуются при регистрации
	f, ok := users.FieldByName("email")
	if !ok || f.Type != TypeString {
		t.Errorf("email type = %s, want String", f.Type)
	}
	f, _ = users.FieldByName("createdAt")
	if f.Type != TypeDate || f.Column() != "created_at" {
		t.Errorf("createdAt = %+v", f)
	}

	if got := users.ColumnOf("companyId"); got != "company_id" {
		t.Errorf("ColumnOf(companyId) = %s", got)
	}
	if got := users.ColumnOf("unknown"); got != "unknown" {
		t.Errorf("ColumnOf(unknown) = %s", got)
	}

	if len(users.SingleAssociations()) != 1 {
		t.Errorf("expected one single association")
	}
	if _, ok := users.Segment("active"); !ok {
		t.Errorf("segment 'active' not found")
	}

	companies, _ := r.Get("companies")
	if companies.Table() != "companies" {
		t.Errorf("companies table = %s", companies.Table())
	}

	names := r.Names()
	if len(names) != 2 || names[0] != "companies" || names[1] != "users" {
		t.Errorf("Names() = %v", names)
	}
}

func TestRegistry_UnknownCollection(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Get("missing"); !errors.Is(err, ErrUnknownCollection) {
		t.Errorf("expected ErrUnknownCollection, got %v", err)
	}
}

func TestRegistry_MissingAssociationTarget(t *testing.T) {
	data := `
collections:
  - name: orders
    primaryKeys: [id]
    fields:
      - field: id
        type: Number
    associations:
      - name: customer
        type: BelongsTo
        target: customers
        foreignKey: customer_id
`
	err := NewRegistry().Parse([]byte(data))
	if !errors.Is(err, ErrUnknownCollection) {
		t.Errorf("expected ErrUnknownCollection, got %v", err)
	}
}

func TestCollection_Validate(t *testing.T) {
	tests := []struct {
		name    string
		c       Collection
		wantErr string
	}{
		{"no name", Collection{Fields: []Field{{Field: "id", Type: TypeNumber}}}, "must have a name"},
		{"no fields", Collection{Name: "x"}, "at least one field"},
		{"duplicate", Collection{Name: "x", Fields: []Field{{Field: "a", Type: TypeString}, {Field: "a", Type: TypeString}}}, "duplicate field"},
		{"bad type", Collection{Name: "x", Fields: []Field{{Field: "a", Type: "blob"}}}, "invalid type"},
		{"enum without values", Collection{Name: "x", Fields: []Field{{Field: "a", Type: TypeEnum}}}, "no values"},
		{"bad pk", Collection{Name: "x", PrimaryKeys: []string{"id"}, Fields: []Field{{Field: "a", Type: TypeString}}}, "primary key"},
		{"fk missing", Collection{Name: "x", Fields: []Field{{Field: "a", Type: TypeString}},
			Associations: []Association{{Name: "y", Type: BelongsTo, Target: "y"}}}, "foreignKey"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.c.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestDefaultAggregateField(t *testing.T) {
	c := Collection{Name: "x", Fields: []Field{{Field: "a"}, {Field: "b"}}}
	if got := c.DefaultAggregateField(); got != "a" {
		t.Errorf("without pk = %s, want a", got)
	}
	c.PrimaryKeys = []string{"b"}
	if got := c.DefaultAggregateField(); got != "b" {
		t.Errorf("with pk = %s, want b", got)
	}
}

func TestTypeNormalization(t *testing.T) {
	tests := []struct {
		input    FieldType
		expected FieldType
	}{
		{"INTEGER", TypeNumber},
		{"decimal", TypeNumber},
		{"VARCHAR", TypeString},
		{"bool", TypeBoolean},
		{"timestamptz", TypeDate},
		{"uniqueidentifier", TypeUUID},
		{"jsonb", TypeJSON},
		{TypeDateonly, TypeDateonly},
	}

	for _, tt := range tests {
		if got := NormalizeType(tt.input); got != tt.expected {
			t.Errorf("NormalizeType(%s) = %s, want %s", tt.input, got, tt.expected)
		}
	}

	if IsValidType("geometry") {
		t.Error("geometry must not be a valid type")
	}
}

func TestConverter_Cast(t *testing.T) {
	conv := NewConverter()
	paris, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Skipf("tzdata not available: %v", err)
	}

	v, err := conv.Cast("42", Field{Field: "n", Type: TypeNumber}, nil)
	if err != nil || v != int64(42) {
		t.Errorf("Cast(42) = %v, %v", v, err)
	}
	v, _ = conv.Cast("4.5", Field{Field: "n", Type: TypeNumber}, nil)
	if v != 4.5 {
		t.Errorf("Cast(4.5) = %v", v)
	}
	if _, err := conv.Cast("abc", Field{Field: "n", Type: TypeNumber}, nil); err == nil {
		t.Error("expected error for non-numeric value")
	}

	v, _ = conv.Cast("yes", Field{Field: "b", Type: TypeBoolean}, nil)
	if v != true {
		t.Errorf("Cast(yes) = %v", v)
	}

	v, err = conv.Cast("2024-05-01", Field{Field: "d", Type: TypeDate}, paris)
	if err != nil {
		t.Fatalf("Cast date: %v", err)
	}
	want := time.Date(2024, 5, 1, 0, 0, 0, 0, paris)
	if got := v.(time.Time); !got.Equal(want) {
		t.Errorf("Cast date = %v, want %v", got, want)
	}

	v, _ = conv.Cast("hello", Field{Field: "s", Type: TypeString}, nil)
	if v != "hello" {
		t.Errorf("Cast string = %v", v)
	}
}
