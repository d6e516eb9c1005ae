// Package confpre provides configuration-directory descriptors and
// preconfigured properties of services.
package confpre

import (
	"context"

	"github.com/rzbill/placer/pkg/catalog"
	"github.com/rzbill/placer/pkg/log"
	"github.com/rzbill/placer/pkg/types"
)

// OverrideSource returns operator property overrides of a service in a cluster.
type OverrideSource interface {
	Get(ctx context.Context, clusterID int64, service string) (*types.ServicePropertySet, error)
}

// Provider merges catalog defaults with per-cluster overrides.
type Provider struct {
	catalog   *catalog.Catalog
	overrides OverrideSource
	logger    log.Logger
}

// NewProvider creates a provider. overrides may be nil.
func NewProvider(cat *catalog.Catalog, overrides OverrideSource, logger log.Logger) *Provider {
	return &Provider{
		catalog:   cat,
		overrides: overrides,
		logger:    log.OrDefault(logger).WithComponent("confpre"),
	}
}

// ConfDirs returns the configuration directories of a service.
func (p *Provider) ConfDirs(service string) []types.ConfDir {
	svc, ok := p.catalog.ServiceByName(service)
	if !ok {
		return nil
	}
	out := make([]types.ConfDir, len(svc.ConfDirs))
	for i, d := range svc.ConfDirs {
		out[i] = types.ConfDir{Dir: d.Dir, Files: append([]string(nil), d.Files...)}
	}
	return out
}

// Properties returns the preconfigured properties of a service in a cluster.
// An override replaces the default with the same file and key; overrides
// without a default are appended in their stored order.
func (p *Provider) Properties(ctx context.Context, clusterID int64, service string) ([]types.Property, error) {
	var defaults []types.Property
	if svc, ok := p.catalog.ServiceByName(service); ok {
		defaults = svc.Properties
	}
	out := append([]types.Property(nil), defaults...)

	if p.overrides == nil {
		return out, nil
	}
	set, err := p.overrides.Get(ctx, clusterID, service)
	if err != nil {
		return nil, types.WrapStorageError(err, "failed to load properties of %s", service)
	}

	index := make(map[propertyKey]int, len(out))
	for i, prop := range out {
		index[keyOf(prop)] = i
	}
	for _, prop := range set.Properties {
		if i, ok := index[keyOf(prop)]; ok {
			out[i] = prop
			continue
		}
		index[keyOf(prop)] = len(out)
		out = append(out, prop)
	}

	p.logger.Debug("Resolved properties",
		log.Cluster(clusterID),
		log.Str("service", service),
		log.Int("defaults", len(defaults)),
		log.Int("overrides", len(set.Properties)))
	return out, nil
}

type propertyKey struct {
	file string
	key  string
}

func keyOf(p types.Property) propertyKey {
	return propertyKey{file: p.File, key: p.Key}
}
