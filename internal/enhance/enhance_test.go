package enhance

import (
	"strings"
	"testing"

	"github.com/jywlabs/prdforge/internal/prd"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{in: "schema", want: KindSchema},
		{in: " Test ", want: KindTest},
		{in: "FEATURE", want: KindFeature},
		{in: "config", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseKind(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParseKind(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseKind(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIncomplete(t *testing.T) {
	tests := []struct {
		name string
		e    Enhancement
		want []string
	}{
		{
			name: "schema entity without fields",
			e: Enhancement{Kind: KindSchema, Schema: &prd.Schema{Entities: []prd.Entity{
				{Name: "User", Fields: []prd.Field{{Name: "id", Type: "uuid"}}},
				{Name: "Session"},
			}}},
			want: []string{"entity:Session"},
		},
		{
			name: "test cases missing description or task",
			e: Enhancement{Kind: KindTest, Tests: []prd.TestCase{
				{ID: "TC-1", TaskID: "T-1", Description: "ok"},
				{ID: "TC-2", TaskID: "T-1"},
				{ID: "TC-3", Description: "orphan"},
			}},
			want: []string{"case:TC-2", "case:TC-3"},
		},
		{
			name: "low confidence flag",
			e: Enhancement{
				Kind:          KindFeature,
				Features:      []prd.FeatureFlag{{Name: "a", Description: "x"}, {Name: "b", Description: "y"}},
				LowConfidence: []string{"flag:b"},
			},
			want: []string{"flag:b"},
		},
		{
			name: "nil schema",
			e:    Enhancement{Kind: KindSchema},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.e.Incomplete()
			if len(got) != len(tt.want) {
				t.Fatalf("Incomplete() = %+v, want keys %v", got, tt.want)
			}
			for i, it := range got {
				if it.Key != tt.want[i] || it.Reason == "" {
					t.Errorf("item %d = %+v, want key %q with reason", i, it, tt.want[i])
				}
			}
		})
	}
}

func TestEmpty(t *testing.T) {
	if !(Enhancement{Kind: KindTest}).Empty() {
		t.Error("Empty() = false for no tests")
	}
	if (Enhancement{Kind: KindFeature, Features: []prd.FeatureFlag{{Name: "a"}}}).Empty() {
		t.Error("Empty() = true with a flag")
	}
}

func TestMerge(t *testing.T) {
	base := Enhancement{
		Kind: KindSchema,
		Schema: &prd.Schema{Entities: []prd.Entity{
			{Name: "User", Fields: []prd.Field{{Name: "id"}}},
			{Name: "Session"},
		}},
		LowConfidence: []string{"entity:Session", "entity:User"},
	}
	partial := Enhancement{
		Kind: KindSchema,
		Schema: &prd.Schema{Entities: []prd.Entity{
			{Name: "Session", Fields: []prd.Field{{Name: "token"}}},
			{Name: "Token", Fields: []prd.Field{{Name: "value"}}},
		}},
	}

	got, err := base.Merge(partial)
	if err != nil {
		t.Fatalf("Merge() error: %v", err)
	}
	if len(got.Schema.Entities) != 3 {
		t.Fatalf("entities = %+v", got.Schema.Entities)
	}
	if got.Schema.Entities[1].Name != "Session" || len(got.Schema.Entities[1].Fields) != 1 {
		t.Errorf("Session not replaced in place: %+v", got.Schema.Entities[1])
	}
	if len(got.LowConfidence) != 1 || got.LowConfidence[0] != "entity:User" {
		t.Errorf("LowConfidence = %v, want [entity:User]", got.LowConfidence)
	}
	if len(base.Schema.Entities) != 2 || len(base.Schema.Entities[1].Fields) != 0 {
		t.Error("Merge() mutated the receiver")
	}

	if _, err := base.Merge(Enhancement{Kind: KindTest}); err == nil {
		t.Error("Merge() across kinds should fail")
	}
}

func TestApply(t *testing.T) {
	defaults := TestingDefaults{Framework: "go", Command: "go test ./..."}

	t.Run("schema", func(t *testing.T) {
		doc := &prd.Document{}
		e := Enhancement{Kind: KindSchema, Schema: &prd.Schema{Entities: []prd.Entity{{Name: "User"}}}}
		if err := Apply(doc, e, defaults); err != nil {
			t.Fatal(err)
		}
		if err := Apply(doc, e, defaults); err != nil {
			t.Fatal(err)
		}
		if doc.Schema == nil || len(doc.Schema.Entities) != 1 {
			t.Errorf("Schema = %+v", doc.Schema)
		}
	})

	t.Run("test creates testing descriptor", func(t *testing.T) {
		doc := &prd.Document{}
		e := Enhancement{Kind: KindTest, Tests: []prd.TestCase{{ID: "TC-1", TaskID: "T-1", Description: "x"}}}
		if err := Apply(doc, e, defaults); err != nil {
			t.Fatal(err)
		}
		if doc.Testing == nil || doc.Testing.Command != "go test ./..." || len(doc.Testing.Cases) != 1 {
			t.Errorf("Testing = %+v", doc.Testing)
		}
	})

	t.Run("test keeps existing descriptor", func(t *testing.T) {
		doc := &prd.Document{Testing: &prd.Testing{Framework: "pytest", Command: "pytest"}}
		e := Enhancement{Kind: KindTest, Tests: []prd.TestCase{{ID: "TC-1"}}}
		if err := Apply(doc, e, defaults); err != nil {
			t.Fatal(err)
		}
		if doc.Testing.Framework != "pytest" {
			t.Errorf("Framework = %q", doc.Testing.Framework)
		}
	})

	t.Run("empty test payload leaves testing nil", func(t *testing.T) {
		doc := &prd.Document{}
		if err := Apply(doc, Enhancement{Kind: KindTest}, defaults); err != nil {
			t.Fatal(err)
		}
		if doc.Testing != nil {
			t.Errorf("Testing = %+v, want nil", doc.Testing)
		}
	})

	t.Run("feature", func(t *testing.T) {
		doc := &prd.Document{}
		e := Enhancement{Kind: KindFeature, Features: []prd.FeatureFlag{{Name: "beta"}}}
		if err := Apply(doc, e, defaults); err != nil {
			t.Fatal(err)
		}
		if doc.Config == nil || len(doc.Config.Flags) != 1 {
			t.Errorf("Config = %+v", doc.Config)
		}
	})

	t.Run("unknown kind", func(t *testing.T) {
		err := Apply(&prd.Document{}, Enhancement{Kind: "config"}, defaults)
		if err == nil || !strings.Contains(err.Error(), "unknown enhancement kind") {
			t.Errorf("Apply() error = %v", err)
		}
	})
}
