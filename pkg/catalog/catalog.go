// Package catalog holds the immutable service and component catalog loaded
// from deployment manifests.
package catalog

import (
	"errors"
	"fmt"
	"sort"

	"github.com/rzbill/placer/pkg/types"
)

// Catalog is a read-only view of service and component definitions.
// A Catalog is safe for concurrent use. Callers must not modify the
// definitions it returns.
type Catalog struct {
	version    string
	services   map[string]*types.ServiceDefinition
	components map[string]*types.ComponentDefinition
	byService  map[string][]*types.ComponentDefinition
	ordered    []*types.ServiceDefinition

	// component name -> components whose mutex set names it, plus its own set
	exclusions map[string][]string
}

// New builds a catalog from definitions and checks its integrity.
// Each service's component list is derived from the component definitions.
func New(version string, services []types.ServiceDefinition, components []types.ComponentDefinition) (*Catalog, error) {
	c := &Catalog{
		version:    version,
		services:   make(map[string]*types.ServiceDefinition, len(services)),
		components: make(map[string]*types.ComponentDefinition, len(components)),
		byService:  make(map[string][]*types.ComponentDefinition, len(services)),
		exclusions: make(map[string][]string),
	}

	var errs []error
	for i := range services {
		svc := services[i]
		svc.Dependencies = append([]string(nil), svc.Dependencies...)
		svc.Components = nil
		if _, dup := c.services[svc.Name]; dup {
			errs = append(errs, fmt.Errorf("duplicate service %s", svc.Name))
			continue
		}
		c.services[svc.Name] = &svc
		c.ordered = append(c.ordered, &svc)
	}

	for i := range components {
		comp := components[i]
		comp.Mutexes = append([]string(nil), comp.Mutexes...)
		if _, dup := c.components[comp.Name]; dup {
			errs = append(errs, fmt.Errorf("duplicate component %s", comp.Name))
			continue
		}
		c.components[comp.Name] = &comp
		if _, ok := c.services[comp.ServiceName]; !ok {
			errs = append(errs, fmt.Errorf("component %s belongs to unknown service %s", comp.Name, comp.ServiceName))
			continue
		}
		c.byService[comp.ServiceName] = append(c.byService[comp.ServiceName], &comp)
	}

	errs = append(errs, c.check()...)
	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid catalog: %w", errors.Join(errs...))
	}

	sort.SliceStable(c.ordered, func(i, j int) bool {
		return lessByPriority(c.ordered[i].Priority, c.ordered[i].Name, c.ordered[j].Priority, c.ordered[j].Name)
	})
	for name, comps := range c.byService {
		sort.SliceStable(comps, func(i, j int) bool {
			return lessByPriority(comps[i].Priority, comps[i].Name, comps[j].Priority, comps[j].Name)
		})
		svc := c.services[name]
		for _, comp := range comps {
			svc.Components = append(svc.Components, comp.Name)
		}
	}

	for _, comp := range c.components {
		for _, m := range comp.Mutexes {
			c.exclusions[comp.Name] = appendUnique(c.exclusions[comp.Name], m)
			c.exclusions[m] = appendUnique(c.exclusions[m], comp.Name)
		}
	}
	for name := range c.exclusions {
		sort.Strings(c.exclusions[name])
	}

	return c, nil
}

func (c *Catalog) check() []error {
	var errs []error

	names := make([]string, 0, len(c.services))
	for name := range c.services {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		svc := c.services[name]
		if _, err := types.ParseServiceType(string(svc.Type)); err != nil {
			errs = append(errs, fmt.Errorf("service %s: %w", name, err))
		}
		for _, dep := range svc.Dependencies {
			if _, ok := c.services[dep]; !ok {
				errs = append(errs, fmt.Errorf("service %s depends on unknown service %s", name, dep))
			}
		}
	}

	compNames := make([]string, 0, len(c.components))
	for name := range c.components {
		compNames = append(compNames, name)
	}
	sort.Strings(compNames)
	for _, name := range compNames {
		comp := c.components[name]
		if comp.Min < 0 {
			errs = append(errs, fmt.Errorf("component %s has negative minimum %d", name, comp.Min))
		}
		if comp.Max != types.Unbounded && (comp.Max < 0 || comp.Max < comp.Min) {
			errs = append(errs, fmt.Errorf("component %s has maximum %d below minimum %d", name, comp.Max, comp.Min))
		}
		for _, m := range comp.Mutexes {
			if m == name {
				errs = append(errs, fmt.Errorf("component %s lists itself as mutually exclusive", name))
				continue
			}
			if _, ok := c.components[m]; !ok {
				errs = append(errs, fmt.Errorf("component %s is mutually exclusive with unknown component %s", name, m))
			}
		}
	}

	errs = append(errs, types.DetectDependencyCycles(types.ServiceDependencyGraph(c.ordered))...)

	return errs
}

// Version returns the manifest version the catalog was loaded from.
func (c *Catalog) Version() string {
	return c.version
}

// ServiceByName returns the definition of a service.
func (c *Catalog) ServiceByName(name string) (*types.ServiceDefinition, bool) {
	svc, ok := c.services[name]
	return svc, ok
}

// ComponentByName returns the definition of a component.
func (c *Catalog) ComponentByName(name string) (*types.ComponentDefinition, bool) {
	comp, ok := c.components[name]
	return comp, ok
}

// ComponentsByService returns the components of a service ordered by priority.
func (c *Catalog) ComponentsByService(service string) []*types.ComponentDefinition {
	return c.byService[service]
}

// Services returns every service ordered by priority, then name.
func (c *Catalog) Services() []*types.ServiceDefinition {
	return c.ordered
}

// Owns reports whether component belongs to service.
func (c *Catalog) Owns(service, component string) bool {
	comp, ok := c.components[component]
	return ok && comp.ServiceName == service
}

// Exclusions returns the names of every component that may not share a node
// with component, in either direction of a mutex declaration. The slice is a
// copy.
func (c *Catalog) Exclusions(component string) []string {
	return append([]string(nil), c.exclusions[component]...)
}

func lessByPriority(pi int, ni string, pj int, nj string) bool {
	if pi != pj {
		return pi < pj
	}
	return ni < nj
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
