package spec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const refsSpec = `swagger: "2.0"
info: {title: Refs, version: "1"}
parameters:
  limitParam:
    name: limit
    in: query
    type: integer
    default: 20
paths:
  /pets:
    get:
      parameters:
        - $ref: '#/parameters/limitParam'
      responses:
        "200":
          description: ok
          schema:
            type: array
            items:
              $ref: '#/definitions/Pet'
definitions:
  Pet:
    type: object
    properties:
      name: {type: string}
      category:
        $ref: '#/definitions/Category'
      parent:
        $ref: '#/definitions/Pet'
  Category:
    properties:
      id: {type: integer}
  PetName:
    type: string
  "Pet/Alias":
    $ref: '#/definitions/PetName'
`

func TestResolve_InlinesAndTagsModels(t *testing.T) {
	s, err := FromBytes([]byte(refsSpec), "")
	require.NoError(t, err)

	items, ok := Lookup(s.Doc, "paths", "/pets", "get", "responses", "200", "schema", "items")
	require.True(t, ok)
	assert.Equal(t, "Pet", String(items, ModelKey))
	assert.False(t, Has(items, "$ref"))

	category, ok := Lookup(items, "properties", "category")
	require.True(t, ok)
	assert.Equal(t, "Category", String(category, ModelKey), "schemas with properties are models even without type")

	params := Slice(Map(Map(s.Paths()["/pets"])["get"])["parameters"])
	require.Len(t, params, 1)
	assert.Equal(t, "limit", String(params[0], "name"))
}

func TestResolve_RecursiveDefinitionLeavesStub(t *testing.T) {
	s, err := FromBytes([]byte(refsSpec), "")
	require.NoError(t, err)

	pet, ok := s.Definition("Pet")
	require.True(t, ok)
	parent, ok := Lookup(pet, "properties", "parent")
	require.True(t, ok)
	assert.Equal(t, "Pet", String(parent, ModelKey))
	assert.True(t, Bool(parent, RecursiveKey))
}

func TestResolve_PrimitiveDefinitionsAreNotModels(t *testing.T) {
	s, err := FromBytes([]byte(refsSpec), "")
	require.NoError(t, err)

	alias, ok := s.Definition("Pet/Alias")
	require.True(t, ok)
	assert.Equal(t, "string", String(alias, "type"))
	assert.False(t, Has(alias, ModelKey))
	assert.Equal(t, []string{"Category", "Pet", "Pet/Alias", "PetName"}, s.DefinitionNames())
}

func TestResolve_Errors(t *testing.T) {
	cases := map[string]struct {
		doc  string
		code ErrorCode
	}{
		"remote ref": {
			doc:  "swagger: '2.0'\ninfo: {title: x, version: '1'}\npaths: {}\ndefinitions:\n  A:\n    $ref: 'other.yaml#/definitions/B'\n",
			code: ParseError,
		},
		"missing target": {
			doc:  "swagger: '2.0'\ninfo: {title: x, version: '1'}\npaths: {}\ndefinitions:\n  A:\n    $ref: '#/definitions/Missing'\n",
			code: ValidationError,
		},
		"parameter cycle": {
			doc:  "swagger: '2.0'\ninfo: {title: x, version: '1'}\npaths: {}\nparameters:\n  a:\n    $ref: '#/parameters/b'\n  b:\n    $ref: '#/parameters/a'\n",
			code: ValidationError,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromBytes([]byte(tc.doc), "inline")
			var se *SpecError
			require.True(t, errors.As(err, &se), "got %v", err)
			assert.Equal(t, tc.code, se.Code)
			assert.Equal(t, "inline", se.Location)
		})
	}
}

func TestFromMap(t *testing.T) {
	s, err := FromMap(map[string]any{
		"swagger":  "2.0",
		"info":     map[string]any{"title": "m", "version": "1"},
		"host":     "api.example.com",
		"basePath": "/",
		"paths":    map[string]any{},
	})
	require.NoError(t, err)
	assert.Equal(t, "http://api.example.com", s.APIURL)
}
