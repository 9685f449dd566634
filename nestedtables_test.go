package nestedtables

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tordrt/nestedtables/internal/schema"
)

func tableNames(s *schema.Schema) []string {
	names := make([]string, len(s.Tables))
	for i, t := range s.Tables {
		names[i] = t.Name
	}
	return names
}

func findTable(t *testing.T, s *schema.Schema, name string) *schema.Table {
	t.Helper()
	tbl := s.Table(name)
	if tbl == nil {
		t.Fatalf("table %s not found in %v", name, tableNames(s))
	}
	return tbl
}

func TestDecompose(t *testing.T) {
	s, err := Decompose(map[string]any{
		"name":  "Alice",
		"items": []any{map[string]any{"sku": "X1", "qty": 2}, map[string]any{"sku": "X2", "qty": 1}},
		"tags":  []string{"a", "b"},
	}, nil)
	if err != nil {
		t.Fatalf("Decompose failed: %v", err)
	}

	want := []string{"root", "items", "tags_link"}
	if got := tableNames(s); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("tables = %v, want %v", got, want)
	}

	items := findTable(t, s, "items")
	if len(items.Rows) != 2 {
		t.Errorf("Expected 2 item rows, got %d", len(items.Rows))
	}
	if got := strings.Join(items.Header(), ","); got != "_id,root_id,qty,sku" {
		t.Errorf("items header = %s", got)
	}
	if len(items.Relations) != 1 || items.Relations[0].TargetTable != "root" || items.Relations[0].Cardinality != "N:1" {
		t.Errorf("unexpected items relations: %+v", items.Relations)
	}

	tags := findTable(t, s, "tags_link")
	if got := strings.Join(tags.Header(), ","); got != "_id,tags_id,root_id" {
		t.Errorf("tags_link header = %s", got)
	}
	if tags.Relations[0].Cardinality != "N:M" {
		t.Errorf("tags_link cardinality = %s, want N:M", tags.Relations[0].Cardinality)
	}
}

func TestDecomposeErrors(t *testing.T) {
	tests := []struct {
		name    string
		doc     any
		opts    *Options
		wantErr error
	}{
		{
			name:    "strict tables",
			doc:     map[string]any{"a": 1},
			opts:    &Options{StrictTables: true},
			wantErr: ErrRouting,
		},
		{
			name:    "mixed list",
			doc:     map[string]any{"a": []any{map[string]any{}, 1}},
			wantErr: ErrHeterogeneousList,
		},
		{
			name:    "nested list",
			doc:     map[string]any{"a": []any{[]any{1}}},
			opts:    &Options{ListOfList: "strict"},
			wantErr: ErrNestedList,
		},
		{
			name:    "root scalar rejected",
			doc:     "hello",
			opts:    &Options{RejectRootScalar: true},
			wantErr: ErrSingleValue,
		},
		{
			name:    "too deep",
			doc:     map[string]any{"a": map[string]any{"b": map[string]any{"c": map[string]any{}}}},
			opts:    &Options{MaxDepth: 2},
			wantErr: ErrTooDeep,
		},
		{
			name: "duplicate natural key",
			doc:  map[string]any{"items": []any{map[string]any{"sku": "X1"}, map[string]any{"sku": "X1"}}},
			opts: &Options{TableDefs: []TableDef{
				{Path: "/items", IDColumn: "sku"},
			}},
			wantErr: ErrDuplicateKey,
		},
		{
			name: "missing natural key",
			doc:  map[string]any{"items": []any{map[string]any{"qty": 1}}},
			opts: &Options{TableDefs: []TableDef{
				{Path: "/items", IDColumn: "sku"},
			}},
			wantErr: ErrMissingKey,
		},
		{
			name: "table registered twice",
			doc:  map[string]any{},
			opts: &Options{TableDefs: []TableDef{
				{Path: "/items"},
				{Path: "/items"},
			}},
			wantErr: ErrTableExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decompose(tt.doc, tt.opts)
			if err == nil {
				t.Fatal("Expected error but got none")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDecomposeInvalidPolicies(t *testing.T) {
	if _, err := Decompose(map[string]any{}, &Options{Link: "sideways"}); err == nil {
		t.Error("Expected error for invalid link policy")
	}
	if _, err := Decompose(map[string]any{}, &Options{ListOfList: "flatten"}); err == nil {
		t.Error("Expected error for invalid list policy")
	}
	if _, err := Decompose(map[string]any{"f": func() {}}, nil); err == nil {
		t.Error("Expected error for unsupported Go value")
	}
}

func TestLinkOptionOverridesMapping(t *testing.T) {
	mappingPath := filepath.Join(t.TempDir(), "mapping.yaml")
	if err := os.WriteFile(mappingPath, []byte("link: up\n"), 0644); err != nil {
		t.Fatalf("failed to write mapping: %v", err)
	}
	doc := map[string]any{"customer": map[string]any{"name": "Ada"}}

	tests := []struct {
		link          string
		rootHasColumn bool
		childHasRef   bool
	}{
		{link: "", rootHasColumn: false, childHasRef: true},
		{link: "down", rootHasColumn: true, childHasRef: false},
		{link: "both", rootHasColumn: true, childHasRef: true},
	}

	for _, tt := range tests {
		t.Run("link="+tt.link, func(t *testing.T) {
			opts, err := LoadOptions(mappingPath)
			if err != nil {
				t.Fatalf("LoadOptions failed: %v", err)
			}
			opts.Link = tt.link

			s, err := Decompose(doc, opts)
			if err != nil {
				t.Fatalf("Decompose failed: %v", err)
			}

			root := findTable(t, s, "root")
			customer := findTable(t, s, "customer")
			if got := root.ColumnIndex("customer") >= 0; got != tt.rootHasColumn {
				t.Errorf("root has customer column = %v, want %v", got, tt.rootHasColumn)
			}
			if got := customer.ColumnIndex("root_id") >= 0; got != tt.childHasRef {
				t.Errorf("customer has root_id column = %v, want %v", got, tt.childHasRef)
			}
		})
	}
}

func TestLoadOptionsErrors(t *testing.T) {
	if _, err := LoadOptions(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing mapping file")
	}

	bad := filepath.Join(t.TempDir(), "mapping.json")
	if err := os.WriteFile(bad, []byte("{}"), 0644); err != nil {
		t.Fatalf("failed to write mapping: %v", err)
	}
	if _, err := LoadOptions(bad); err == nil {
		t.Error("Expected error for unsupported mapping extension")
	}
}

func TestDecomposeReader(t *testing.T) {
	s, err := DecomposeReader(strings.NewReader(`{"n": 1} {"n": 2}`), &Options{InputFormat: "json"})
	if err != nil {
		t.Fatalf("DecomposeReader failed: %v", err)
	}
	if rows := len(findTable(t, s, "root").Rows); rows != 2 {
		t.Errorf("Expected 2 root rows, got %d", rows)
	}

	if _, err := DecomposeReader(strings.NewReader(`{}`), nil); err == nil {
		t.Error("Expected error without input format")
	}
	if _, err := DecomposeReader(strings.NewReader(""), &Options{InputFormat: "yaml"}); err == nil {
		t.Error("Expected error for empty input")
	}
	if _, err := DecomposeReader(strings.NewReader(`{}`), &Options{InputFormat: "toml"}); err == nil {
		t.Error("Expected error for unsupported input format")
	}
}

func TestDecomposeReaderDocumentID(t *testing.T) {
	src := `{"_id": "abc", "name": "x"}`

	_, err := DecomposeReader(strings.NewReader(src), &Options{InputFormat: "json"})
	if !errors.Is(err, ErrKeyCollision) {
		t.Fatalf("error = %v, want %v", err, ErrKeyCollision)
	}

	// a document id becomes the key once the table is registered with it
	s, err := DecomposeReader(strings.NewReader(src), &Options{
		InputFormat: "json",
		TableDefs:   []TableDef{{Path: "", IDColumn: "_id"}},
	})
	if err != nil {
		t.Fatalf("DecomposeReader failed: %v", err)
	}

	var buf bytes.Buffer
	if err := FormatSchema(s, &OutputOptions{Writer: &buf, Format: "csv"}); err != nil {
		t.Fatalf("FormatSchema failed: %v", err)
	}
	if want := "_id,name\nabc,x\n"; buf.String() != want {
		t.Errorf("csv = %q, want %q", buf.String(), want)
	}
}

func TestDecomposeReaderLargeIntegerKeys(t *testing.T) {
	src := `{"items": [{"sku": 9007199254740993}, {"sku": 9007199254740992}]}`
	_, err := DecomposeReader(strings.NewReader(src), &Options{
		InputFormat: "json",
		TableDefs:   []TableDef{{Path: "/items", IDColumn: "sku"}},
	})
	if err == nil {
		t.Fatal("Expected error but got none")
	}
	if errors.Is(err, ErrDuplicateKey) {
		t.Errorf("distinct keys reported as duplicates: %v", err)
	}
}

func TestFilterIncludedTables(t *testing.T) {
	tests := []struct {
		name        string
		tables      []string
		includeList []string
		want        []string
	}{
		{
			name:        "keep subset",
			tables:      []string{"root", "items", "tags_link"},
			includeList: []string{"items", "tags_link"},
			want:        []string{"items", "tags_link"},
		},
		{
			name:        "keeps schema order",
			tables:      []string{"root", "items", "tags_link"},
			includeList: []string{"tags_link", "root"},
			want:        []string{"root", "tags_link"},
		},
		{
			name:        "unknown table",
			tables:      []string{"root"},
			includeList: []string{"missing"},
			want:        []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &schema.Schema{}
			for _, name := range tt.tables {
				s.Tables = append(s.Tables, schema.Table{Name: name})
			}

			filterIncludedTables(s, tt.includeList)

			if got := tableNames(s); strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("filterIncludedTables() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterExcludedTables(t *testing.T) {
	tests := []struct {
		name        string
		tables      []string
		excludeList []string
		want        []string
	}{
		{
			name:        "exclude single table",
			tables:      []string{"root", "items", "tags_link"},
			excludeList: []string{"items"},
			want:        []string{"root", "tags_link"},
		},
		{
			name:        "exclude multiple tables",
			tables:      []string{"root", "items", "tags_link"},
			excludeList: []string{"root", "tags_link"},
			want:        []string{"items"},
		},
		{
			name:        "exclude non-existent table",
			tables:      []string{"root", "items"},
			excludeList: []string{"missing"},
			want:        []string{"root", "items"},
		},
		{
			name:        "empty exclude list",
			tables:      []string{"root", "items"},
			excludeList: []string{},
			want:        []string{"root", "items"},
		},
		{
			name:        "exclude all tables",
			tables:      []string{"root", "items"},
			excludeList: []string{"root", "items"},
			want:        []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &schema.Schema{}
			for _, name := range tt.tables {
				s.Tables = append(s.Tables, schema.Table{Name: name})
			}

			filterExcludedTables(s, tt.excludeList)

			if got := tableNames(s); strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("filterExcludedTables() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFormatSchemaToWriter(t *testing.T) {
	s, err := Decompose(map[string]any{"name": "Alice"}, nil)
	if err != nil {
		t.Fatalf("Decompose failed: %v", err)
	}

	var buf bytes.Buffer
	if err := FormatSchema(s, &OutputOptions{Writer: &buf}); err != nil {
		t.Fatalf("FormatSchema failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "## root") {
		t.Error("Expected markdown output by default")
	}
	if !strings.Contains(output, "Alice") {
		t.Error("Expected output to contain the row value")
	}

	if err := FormatSchema(s, &OutputOptions{Writer: &buf, Format: "sql"}); err == nil {
		t.Error("Expected error for unsupported format")
	}
}

func TestFormatSchemaToDirectory(t *testing.T) {
	s, err := Decompose(map[string]any{"items": []any{map[string]any{"sku": "X1"}}}, nil)
	if err != nil {
		t.Fatalf("Decompose failed: %v", err)
	}

	tmpDir := t.TempDir()
	if err := FormatSchema(s, &OutputOptions{OutputDir: tmpDir, Format: "csv"}); err != nil {
		t.Fatalf("FormatSchema failed: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(tmpDir, "items.csv"))
	if err != nil {
		t.Fatalf("Failed to read items.csv: %v", err)
	}
	if want := "_id,root_id,sku\n1,1,X1\n"; string(content) != want {
		t.Errorf("items.csv = %q, want %q", content, want)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "_overview.txt")); err != nil {
		t.Errorf("Expected _overview.txt to be created: %v", err)
	}
}
