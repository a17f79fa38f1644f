package doctree

import (
	"strings"
	"testing"
)

func TestParseObjectRobustness(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string // canonical JSON of the salvaged object
		wantErr bool
	}{
		{
			name:  "clean object",
			input: `{"product_name":"Paracetamol","strength":"500mg"}`,
			want:  `{"product_name":"Paracetamol","strength":"500mg"}`,
		},
		{
			name:  "markdown fenced",
			input: "```json\n{\"product_name\":\"Aspirin\"}\n```",
			want:  `{"product_name":"Aspirin"}`,
		},
		{
			name:  "prose before and after",
			input: "Here is the extraction you asked for:\n{\"code\":\"KPL/CI/010\"}\nLet me know if you need anything else.",
			want:  `{"code":"KPL/CI/010"}`,
		},
		{
			name:  "nested structures",
			input: `{"tests":[{"name":"Assay","limit":"95-105%"}],"meta":{"pages":3}}`,
			want:  `{"tests":[{"name":"Assay","limit":"95-105%"}],"meta":{"pages":3}}`,
		},
		{
			name:  "null and bool leaves",
			input: `{"reviewed":true,"remarks":null}`,
			want:  `{"reviewed":true,"remarks":null}`,
		},
		{
			name:    "no braces at all",
			input:   "I could not find any structured data in this document.",
			wantErr: true,
		},
		{
			name:    "truncated object",
			input:   `{"product_name":"Para`,
			wantErr: true,
		},
		{
			name:    "empty string",
			input:   "",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseObject(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseObject(%q) = %v, want error", tt.input, Canonical(got))
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseObject(%q) error: %v", tt.input, err)
			}
			if Canonical(got) != tt.want {
				t.Errorf("ParseObject(%q) = %s, want %s", tt.input, Canonical(got), tt.want)
			}
		})
	}
}

func TestDecodePreservesKeyOrder(t *testing.T) {
	input := `{"zeta":1,"alpha":2,"mid":3,"alpha_again":{"b":1,"a":2}}`
	node, err := Decode(input)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	m := node.(*Mapping)
	wantKeys := []string{"zeta", "alpha", "mid", "alpha_again"}
	gotKeys := m.Keys()
	if len(gotKeys) != len(wantKeys) {
		t.Fatalf("Keys() = %v, want %v", gotKeys, wantKeys)
	}
	for i := range wantKeys {
		if gotKeys[i] != wantKeys[i] {
			t.Errorf("Keys()[%d] = %q, want %q", i, gotKeys[i], wantKeys[i])
		}
	}
	// Round-trip must emit the same order.
	if Canonical(m) != input {
		t.Errorf("round trip = %s, want %s", Canonical(m), input)
	}
}

func TestDecodeRejectsTrailingData(t *testing.T) {
	if _, err := Decode(`{"a":1} {"b":2}`); err == nil {
		t.Error("Decode accepted two concatenated documents")
	}
}

func TestMappingSetOverwriteKeepsPosition(t *testing.T) {
	m := NewMapping()
	m.Set("first", Scalar{Value: "1"})
	m.Set("second", Scalar{Value: "2"})
	m.Set("first", Scalar{Value: "updated"})
	if got := m.GetString("first"); got != "updated" {
		t.Errorf("GetString(first) = %q, want %q", got, "updated")
	}
	if keys := m.Keys(); len(keys) != 2 || keys[0] != "first" {
		t.Errorf("Keys() = %v, want [first second]", keys)
	}
}

func TestIsEmpty(t *testing.T) {
	tests := []struct {
		name string
		node Node
		want bool
	}{
		{"nil node", nil, true},
		{"null scalar", Scalar{Value: nil}, true},
		{"empty string", Scalar{Value: ""}, true},
		{"text scalar", Scalar{Value: "x"}, false},
		{"empty sequence", &Sequence{}, true},
		{"empty mapping", NewMapping(), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsEmpty(tt.node); got != tt.want {
				t.Errorf("IsEmpty = %v, want %v", got, tt.want)
			}
		})
	}
	filled := NewMapping()
	filled.Set("k", Scalar{Value: "v"})
	if IsEmpty(filled) {
		t.Error("IsEmpty(filled mapping) = true")
	}
}

func TestScalarString(t *testing.T) {
	node, err := Decode(`{"n":50,"f":1.5,"s":"50mg","b":false,"z":null}`)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	m := node.(*Mapping)
	for key, want := range map[string]string{
		"n": "50", "f": "1.5", "s": "50mg", "b": "false", "z": "",
	} {
		if got := m.GetString(key); got != want {
			t.Errorf("GetString(%q) = %q, want %q", key, got, want)
		}
	}
	if !strings.Contains(Canonical(m), `"n":50`) {
		t.Errorf("numbers should round-trip unquoted, got %s", Canonical(m))
	}
}
