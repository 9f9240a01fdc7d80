// Copyright (c) 2016-2019 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package configutil loads YAML configuration files, supporting a chain of
// "extends" base files which are merged before the requesting file is
// applied on top.
package configutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/validator.v2"
	"gopkg.in/yaml.v2"
)

// ErrCycleRef is returned when an extends chain refers back to itself.
var ErrCycleRef = errors.New("cyclic reference in configuration extends detected")

// ValidationError wraps a validator.v2 field validation failure.
type ValidationError struct {
	errs validator.ErrorMap
}

// Error implements the error interface.
func (v ValidationError) Error() string {
	return fmt.Sprintf("%v", map[string]validator.ErrorArray(v.errs))
}

// ErrForField returns the validation errors for the named field, if any.
func (v ValidationError) ErrForField(name string) validator.ErrorArray {
	return v.errs[name]
}

type extendsStub struct {
	Extends string `yaml:"extends"`
}

func lookupExtends(filename string) (string, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return "", err
	}
	var s extendsStub
	if err := yaml.Unmarshal(b, &s); err != nil {
		return "", err
	}
	return s.Extends, nil
}

// resolveExtends walks the extends chain starting at fpath, returning the
// ordered list of files from the base-most ancestor to fpath itself.
func resolveExtends(fpath string, lookup func(string) (string, error)) ([]string, error) {
	visited := make(map[string]bool)
	var chain []string

	cur := fpath
	for {
		if visited[cur] {
			return nil, ErrCycleRef
		}
		visited[cur] = true
		chain = append([]string{cur}, chain...)

		target, err := lookup(cur)
		if err != nil {
			return nil, err
		}
		if target == "" {
			break
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(filepath.Dir(cur), target)
		}
		cur = target
	}
	return chain, nil
}

// Load reads filename, follows its extends chain, merges all files in
// base-to-leaf order, unmarshals the result into config, and validates it.
func Load(filename string, config interface{}) error {
	filenames, err := resolveExtends(filename, lookupExtends)
	if err != nil {
		return err
	}
	return loadFiles(config, filenames)
}

// loadFiles merges filenames in order (later files override earlier ones)
// and unmarshals the result into config, validating exactly once.
func loadFiles(config interface{}, filenames []string) error {
	merged := map[interface{}]interface{}{}
	for _, fn := range filenames {
		b, err := os.ReadFile(fn)
		if err != nil {
			return fmt.Errorf("read %s: %v", fn, err)
		}
		var m map[interface{}]interface{}
		if err := yaml.Unmarshal(b, &m); err != nil {
			return fmt.Errorf("unmarshal %s: %v", fn, err)
		}
		merged = mergeMaps(merged, m)
	}

	b, err := yaml.Marshal(merged)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(b, config); err != nil {
		return err
	}

	if err := validator.Validate(config); err != nil {
		if errs, ok := err.(validator.ErrorMap); ok {
			return ValidationError{errs: errs}
		}
		return err
	}
	return nil
}

// mergeMaps recursively merges override into base, returning base. Nested
// maps are merged key by key; any other value in override replaces the
// corresponding value in base.
func mergeMaps(base, override map[interface{}]interface{}) map[interface{}]interface{} {
	for k, v := range override {
		if ov, ok := v.(map[interface{}]interface{}); ok {
			if bv, ok := base[k].(map[interface{}]interface{}); ok {
				base[k] = mergeMaps(bv, ov)
				continue
			}
		}
		base[k] = v
	}
	return base
}
