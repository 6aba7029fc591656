package picoagent

import (
	"errors"
	"strings"
	"testing"
)

func TestSchemaValidateOK(t *testing.T) {
	s := Object(map[string]*Schema{
		"name":  String("name"),
		"count": Integer("count"),
		"ratio": Number("ratio"),
		"deep":  Boolean("deep"),
		"tags":  Array("tags", String("tag")),
	}, "name")

	out, err := s.Validate(map[string]any{
		"name":  "x",
		"count": float64(3), // JSON numbers decode as float64
		"ratio": float64(0.5),
		"deep":  true,
		"tags":  []any{"a", "b"},
	})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if out["count"] != 3 {
		t.Errorf("count coerced to %T %v, want int 3", out["count"], out["count"])
	}
}

func TestSchemaValidateMissingRequired(t *testing.T) {
	s := Object(map[string]*Schema{"name": String("name")}, "name")
	_, err := s.Validate(map[string]any{})
	var se *SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want SchemaError", err)
	}
	if len(se.Issues) != 1 || se.Issues[0].Path != "name" {
		t.Errorf("issues = %+v", se.Issues)
	}
	if !strings.Contains(se.Error(), "name: required field missing") {
		t.Errorf("error text = %q", se.Error())
	}
}

func TestSchemaValidateWrongType(t *testing.T) {
	s := Object(map[string]*Schema{"arg": String("arg")}, "arg")
	_, err := s.Validate(map[string]any{"arg": float64(123)})
	var se *SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want SchemaError", err)
	}
	if se.Issues[0].Path != "arg" {
		t.Errorf("path = %q", se.Issues[0].Path)
	}
}

func TestSchemaValidateFractionalInteger(t *testing.T) {
	s := Object(map[string]*Schema{"n": Integer("n")})
	if _, err := s.Validate(map[string]any{"n": 1.5}); err == nil {
		t.Error("fractional value accepted for integer field")
	}
}

func TestSchemaValidateEnum(t *testing.T) {
	s := Object(map[string]*Schema{"mode": StringEnum("mode", "fast", "slow")})
	if _, err := s.Validate(map[string]any{"mode": "fast"}); err != nil {
		t.Errorf("valid enum rejected: %v", err)
	}
	if _, err := s.Validate(map[string]any{"mode": "medium"}); err == nil {
		t.Error("invalid enum accepted")
	}
}

func TestSchemaValidateUnknownFieldsPass(t *testing.T) {
	s := Object(map[string]*Schema{"a": String("a")})
	out, err := s.Validate(map[string]any{"a": "x", "extra": 1})
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if out["extra"] != 1 {
		t.Error("unknown field dropped")
	}
}

func TestSchemaJSONWireForm(t *testing.T) {
	s := Object(map[string]*Schema{"path": String("File path")}, "path")
	wire := string(s.JSON())
	for _, want := range []string{`"type":"object"`, `"path"`, `"required":["path"]`} {
		if !strings.Contains(wire, want) {
			t.Errorf("wire form %q missing %q", wire, want)
		}
	}
}
