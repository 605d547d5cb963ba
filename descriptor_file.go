// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package remoting

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// descriptorFile is the YAML layout read by LoadDescriptors:
//
//	methods:
//	  "Configure(*example.com/widgets.Widget)":
//	    alias: configure
//	    diagnostics: true
//	    params: [out]
//	  "Open(string)":
//	    params: ["-"]
//	    return: ref
//
// A "-" or empty parameter entry leaves that parameter undescribed.
type descriptorFile struct {
	Methods map[string]methodEntry `yaml:"methods"`
}

type methodEntry struct {
	Alias       string   `yaml:"alias,omitempty"`
	Diagnostics bool     `yaml:"diagnostics,omitempty"`
	Params      []string `yaml:"params,omitempty"`
	Return      string   `yaml:"return,omitempty"`
}

// LoadDescriptors decodes a YAML descriptor document.
func LoadDescriptors(r io.Reader) (Descriptors, error) {
	var f descriptorFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		if err == io.EOF {
			return Descriptors{}, nil
		}
		return nil, fmt.Errorf("decode descriptors: %w", err)
	}
	out := make(Descriptors, len(f.Methods))
	for key, entry := range f.Methods {
		d, err := entry.descriptor()
		if err != nil {
			return nil, fmt.Errorf("descriptor %s: %w", key, err)
		}
		out[MethodKey(key)] = d
	}
	return out, nil
}

// LoadDescriptorFile reads descriptors from a YAML file.
func LoadDescriptorFile(path string) (Descriptors, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadDescriptors(f)
}

func (e methodEntry) descriptor() (*MethodDescriptor, error) {
	d := &MethodDescriptor{
		Alias:       e.Alias,
		Diagnostics: e.Diagnostics,
		Params:      make([]*ValueDescriptor, len(e.Params)),
	}
	for i, p := range e.Params {
		if p == "" || p == "-" {
			continue
		}
		t, err := ParseTransfer(p)
		if err != nil {
			return nil, fmt.Errorf("param %d: %w", i, err)
		}
		d.Params[i] = &ValueDescriptor{Transfer: t}
	}
	if e.Return != "" && e.Return != "-" {
		t, err := ParseTransfer(e.Return)
		if err != nil {
			return nil, fmt.Errorf("return: %w", err)
		}
		if t.WritesBack() {
			return nil, fmt.Errorf("return: transfer %s is only valid for parameters", t)
		}
		d.Return = &ValueDescriptor{Transfer: t}
	}
	return d, nil
}
