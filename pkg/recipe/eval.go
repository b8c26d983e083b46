// Copyright 2025 Brioche Project Contributors
//
// SPDX-License-Identifier: MIT

package recipe

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dop251/goja"
)

// RecipeFileName is the script evaluated in each recipe directory.
const RecipeFileName = "brioche.js"

// DecodeError reports a recipe value that does not match the expected
// shape.
type DecodeError struct {
	Field  string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("recipe field %q: %s", e.Field, e.Reason)
}

// EvalRecipe reads dir/brioche.js, evaluates it in a fresh interpreter, and
// decodes the recipe it exports.
//
// The script runs with a CommonJS-style module/exports shim; it must bind a
// `recipe` object (via `module.exports.recipe = ...` or a top-level
// `recipe = ...`) whose `definition` property is a zero-argument function
// returning the recipe definition as plain data.
func EvalRecipe(dir string) (*RecipeDefinition, error) {
	scriptPath := filepath.Join(dir, RecipeFileName)
	src, err := os.ReadFile(scriptPath)
	if err != nil {
		return nil, fmt.Errorf("read recipe %s: %w", scriptPath, err)
	}

	vm := goja.New()
	module := vm.NewObject()
	exports := vm.NewObject()
	if err := module.Set("exports", exports); err != nil {
		return nil, fmt.Errorf("set up recipe interpreter: %w", err)
	}
	if err := vm.Set("module", module); err != nil {
		return nil, fmt.Errorf("set up recipe interpreter: %w", err)
	}
	if err := vm.Set("exports", exports); err != nil {
		return nil, fmt.Errorf("set up recipe interpreter: %w", err)
	}

	if _, err := vm.RunScript(scriptPath, string(src)); err != nil {
		return nil, fmt.Errorf("evaluate recipe %s: %w", scriptPath, err)
	}

	recipeVal := exportedRecipe(vm, module)
	if recipeVal == nil || goja.IsUndefined(recipeVal) || goja.IsNull(recipeVal) {
		return nil, fmt.Errorf("recipe %s: script does not export a recipe object", scriptPath)
	}

	recipeObj := recipeVal.ToObject(vm)
	defFn, ok := goja.AssertFunction(recipeObj.Get("definition"))
	if !ok {
		return nil, fmt.Errorf("recipe %s: recipe.definition is not a function", scriptPath)
	}

	result, err := defFn(goja.Undefined())
	if err != nil {
		return nil, fmt.Errorf("recipe %s: definition() threw: %w", scriptPath, err)
	}

	def, err := decodeRecipeDefinition(result.Export())
	if err != nil {
		return nil, fmt.Errorf("recipe %s: %w", scriptPath, err)
	}
	return def, nil
}

// exportedRecipe prefers module.exports.recipe and falls back to a global
// recipe binding.
func exportedRecipe(vm *goja.Runtime, module *goja.Object) goja.Value {
	if exportsVal := module.Get("exports"); exportsVal != nil && !goja.IsUndefined(exportsVal) && !goja.IsNull(exportsVal) {
		if v := exportsVal.ToObject(vm).Get("recipe"); v != nil && !goja.IsUndefined(v) && !goja.IsNull(v) {
			return v
		}
	}
	return vm.GlobalObject().Get("recipe")
}

// decodeRecipeDefinition maps the exported plain data onto a
// RecipeDefinition, failing on missing or mistyped fields.
func decodeRecipeDefinition(v any) (*RecipeDefinition, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &DecodeError{Field: "definition", Reason: "definition() did not return an object"}
	}

	name, err := stringField(obj, "name")
	if err != nil {
		return nil, err
	}
	version, err := stringField(obj, "version")
	if err != nil {
		return nil, err
	}
	source, err := decodeSource(obj["source"])
	if err != nil {
		return nil, err
	}
	deps, err := stringMapField(obj, "dependencies")
	if err != nil {
		return nil, err
	}
	build, err := decodeBuild(obj["build"])
	if err != nil {
		return nil, err
	}

	return &RecipeDefinition{
		Name:         name,
		Version:      version,
		Source:       source,
		Dependencies: deps,
		Build:        build,
	}, nil
}

// decodeSource selects the source variant by the presence of a git or
// tarball key.
func decodeSource(v any) (RecipeSource, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return RecipeSource{}, &DecodeError{Field: "source", Reason: "missing or not an object"}
	}

	if _, hasGit := obj["git"]; hasGit {
		repo, err := stringField(obj, "git")
		if err != nil {
			return RecipeSource{}, err
		}
		ref, err := stringField(obj, "ref")
		if err != nil {
			return RecipeSource{}, err
		}
		return RecipeSource{Git: &GitSource{Git: repo, Ref: ref}}, nil
	}
	if _, hasTarball := obj["tarball"]; hasTarball {
		url, err := stringField(obj, "tarball")
		if err != nil {
			return RecipeSource{}, err
		}
		return RecipeSource{Tarball: &TarballSource{Tarball: url}}, nil
	}
	return RecipeSource{}, &DecodeError{Field: "source", Reason: "has neither git nor tarball key"}
}

func decodeBuild(v any) (BuildScript, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return BuildScript{}, &DecodeError{Field: "build", Reason: "missing or not an object"}
	}

	shell, err := stringField(obj, "shell")
	if err != nil {
		return BuildScript{}, err
	}
	script, err := stringField(obj, "script")
	if err != nil {
		return BuildScript{}, err
	}
	envVars, err := stringMapField(obj, "envVars")
	if err != nil {
		return BuildScript{}, err
	}

	return BuildScript{Shell: shell, Script: script, EnvVars: envVars}, nil
}

func stringField(obj map[string]any, field string) (string, error) {
	v, ok := obj[field]
	if !ok {
		return "", &DecodeError{Field: field, Reason: "missing required field"}
	}
	s, ok := v.(string)
	if !ok {
		return "", &DecodeError{Field: field, Reason: fmt.Sprintf("expected string, got %T", v)}
	}
	return s, nil
}

func stringMapField(obj map[string]any, field string) (map[string]string, error) {
	v, ok := obj[field]
	if !ok {
		return nil, &DecodeError{Field: field, Reason: "missing required field"}
	}
	raw, ok := v.(map[string]any)
	if !ok {
		return nil, &DecodeError{Field: field, Reason: fmt.Sprintf("expected object, got %T", v)}
	}

	out := make(map[string]string, len(raw))
	for key, val := range raw {
		s, ok := val.(string)
		if !ok {
			return nil, &DecodeError{
				Field:  field + "." + key,
				Reason: fmt.Sprintf("expected string, got %T", val),
			}
		}
		out[key] = s
	}
	return out, nil
}
