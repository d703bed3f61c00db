// Package registry holds the externally configured list of clearance
// departments. It is loaded once at startup and is read-only afterwards.
package registry

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/localnerve/nodues/data"
	"github.com/localnerve/nodues/internal/config"
	"gopkg.in/yaml.v3"
)

// Department is one approving department.
type Department struct {
	Name        string `yaml:"name" json:"name"`
	DisplayName string `yaml:"display_name" json:"display_name"`
	Order       int    `yaml:"order" json:"order"`
	Active      *bool  `yaml:"active,omitempty" json:"-"`
}

// IsActive reports whether the department takes part in new fan-outs.
// Departments are active unless the file says otherwise.
func (d Department) IsActive() bool {
	return d.Active == nil || *d.Active
}

type file struct {
	Departments []Department `yaml:"departments"`
}

// Registry is an immutable, ordered set of departments.
type Registry struct {
	ordered []Department
	byName  map[string]Department
}

// NormalizeName canonicalizes a department name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// New builds a registry from departments, rejecting blank and duplicate names.
func New(departments []Department) (*Registry, error) {
	r := &Registry{byName: make(map[string]Department, len(departments))}
	for i, d := range departments {
		d.Name = NormalizeName(d.Name)
		if d.Name == "" {
			return nil, fmt.Errorf("department %d has no name", i)
		}
		if strings.EqualFold(d.Name, "all") {
			return nil, fmt.Errorf("department name %q is reserved", d.Name)
		}
		if _, dup := r.byName[d.Name]; dup {
			return nil, fmt.Errorf("duplicate department %q", d.Name)
		}
		if d.DisplayName == "" {
			d.DisplayName = d.Name
		}
		r.byName[d.Name] = d
		r.ordered = append(r.ordered, d)
	}
	sort.SliceStable(r.ordered, func(i, j int) bool {
		if r.ordered[i].Order != r.ordered[j].Order {
			return r.ordered[i].Order < r.ordered[j].Order
		}
		return r.ordered[i].Name < r.ordered[j].Name
	})
	return r, nil
}

// Parse reads the YAML registry format.
func Parse(b []byte) (*Registry, error) {
	var f file
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse departments: %w", err)
	}
	return New(f.Departments)
}

// FromList builds a registry from a comma separated list, ordered as given.
func FromList(list string) (*Registry, error) {
	var departments []Department
	for i, name := range strings.Split(list, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		departments = append(departments, Department{Name: name, Order: (i + 1) * 10})
	}
	return New(departments)
}

// Load picks the registry source from configuration: DEPARTMENTS_FILE, then
// DEPARTMENTS, then the embedded default.
func Load(cfg *config.Config) (*Registry, error) {
	switch {
	case cfg.DepartmentsFile != "":
		b, err := os.ReadFile(cfg.DepartmentsFile)
		if err != nil {
			return nil, fmt.Errorf("read departments file: %w", err)
		}
		return Parse(b)
	case cfg.Departments != "":
		return FromList(cfg.Departments)
	}
	return Parse(data.DefaultDepartments)
}

// Lookup finds a department by name.
func (r *Registry) Lookup(name string) (Department, bool) {
	d, ok := r.byName[NormalizeName(name)]
	return d, ok
}

// Known reports whether name is a registered department, active or not.
func (r *Registry) Known(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// IsActive reports whether name is a known, active department.
func (r *Registry) IsActive(name string) bool {
	d, ok := r.Lookup(name)
	return ok && d.IsActive()
}

// All returns every department in display order.
func (r *Registry) All() []Department {
	out := make([]Department, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Active returns the active departments in display order.
func (r *Registry) Active() []Department {
	out := make([]Department, 0, len(r.ordered))
	for _, d := range r.ordered {
		if d.IsActive() {
			out = append(out, d)
		}
	}
	return out
}

// ActiveNames returns the names of the active departments in display order.
func (r *Registry) ActiveNames() []string {
	active := r.Active()
	names := make([]string, len(active))
	for i, d := range active {
		names[i] = d.Name
	}
	return names
}
