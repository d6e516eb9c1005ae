// Package placement validates and commits component placement batches and
// answers placement queries for a cluster.
package placement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rzbill/placer/pkg/catalog"
	"github.com/rzbill/placer/pkg/lifecycle"
	"github.com/rzbill/placer/pkg/log"
	"github.com/rzbill/placer/pkg/metrics"
	"github.com/rzbill/placer/pkg/store"
	"github.com/rzbill/placer/pkg/store/repos"
	"github.com/rzbill/placer/pkg/types"
)

// DefaultTransactionTimeout bounds a mutating batch when none is configured.
const DefaultTransactionTimeout = 30 * time.Second

// Operation names used in logs and metrics.
const (
	OpSelectComponents = "select_components"
	OpSelectServices   = "select_services"
	OpSwitchState      = "switch_component_state"
	OpListComponents   = "list_components"
	OpResolve          = "resolve_dependencies"
)

// Options configures a Service.
type Options struct {
	// Bound on lock wait plus validate-and-commit of one batch
	TransactionTimeout time.Duration

	// Re-selecting an identity whose row is REMOVED creates a new record
	// when true, and is rejected when false
	AllowReselectRemoved bool

	Logger  log.Logger
	Metrics *metrics.Recorder
}

// Service is the entry point of every placement operation.
type Service struct {
	catalog     *catalog.Catalog
	set         *repos.Set
	validator   *Validator
	constraints *ConstraintEngine
	resolver    *Resolver
	summarizer  *Summarizer
	locks       *clusterLocks

	timeout       time.Duration
	allowReselect bool
	logger        log.Logger
	metrics       *metrics.Recorder
}

// NewService wires the placement components over a repository set.
func NewService(cat *catalog.Catalog, set *repos.Set, config ConfigSource, opts Options) *Service {
	logger := log.OrDefault(opts.Logger).WithComponent("placement")
	timeout := opts.TransactionTimeout
	if timeout <= 0 {
		timeout = DefaultTransactionTimeout
	}
	return &Service{
		catalog:       cat,
		set:           set,
		validator:     NewValidator(cat, set.Clusters, set.Nodes),
		constraints:   NewConstraintEngine(cat),
		resolver:      NewResolver(cat, set, config, logger),
		summarizer:    NewSummarizer(cat, set, logger),
		locks:         newClusterLocks(),
		timeout:       timeout,
		allowReselect: opts.AllowReselectRemoved,
		logger:        logger,
		metrics:       opts.Metrics,
	}
}

// Catalog returns the catalog the service was built with.
func (s *Service) Catalog() *catalog.Catalog {
	return s.catalog
}

// mutate runs fn inside a store transaction while holding the cluster lock.
// The whole call, lock wait included, is bounded by the transaction timeout.
func (s *Service) mutate(ctx context.Context, op string, clusterID int64, fn func(ctx context.Context, tx store.Transaction) error) (err error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	defer func() {
		outcome := metrics.OutcomeCommitted
		switch {
		case types.IsValidationError(err) || types.IsConstraintViolation(err) || types.IsNotFound(err):
			outcome = metrics.OutcomeRejected
		case err != nil:
			outcome = metrics.OutcomeFailed
		}
		s.metrics.ObserveBatch(op, outcome, time.Since(start))
	}()

	release, err := s.locks.acquire(ctx, clusterID)
	if err != nil {
		return types.WrapStorageError(err, "timed out waiting for cluster %d", clusterID)
	}
	defer release()
	s.metrics.LockWait(time.Since(start))

	err = s.set.Core.Transaction(ctx, func(tx store.Transaction) error {
		return fn(ctx, tx)
	})
	if err != nil {
		var typed *types.Error
		if !errors.As(err, &typed) {
			err = types.WrapStorageError(err, "%s on cluster %d rolled back", op, clusterID)
		}
		return err
	}
	return nil
}

// SelectComponents applies a component selection batch. The batch is
// validated, passed through the lifecycle table, checked against the
// distribution constraints and committed atomically together with pruning of
// UNSELECTED rows. Nothing is written when any step fails.
func (s *Service) SelectComponents(ctx context.Context, req *types.ComponentSelectRequest) (*types.SelectResult, error) {
	if req == nil {
		return nil, types.NewValidationError("request is required")
	}
	logger := s.logger.WithContext(ctx).With(log.Cluster(req.ClusterID), log.Operation(OpSelectComponents))
	result := &types.SelectResult{ClusterID: req.ClusterID}

	err := s.mutate(ctx, OpSelectComponents, req.ClusterID, func(ctx context.Context, tx store.Transaction) error {
		snap := newTxSnapshot(s.set, tx)
		stateOf := func(service string) (types.State, error) {
			st, _, err := serviceState(snap, req.ClusterID, service)
			return st, err
		}
		validator := s.validator.within(txClusters{s.set.Clusters.WithTx(tx)}, txNodes{s.set.Nodes.WithTx(tx)})
		if err := validator.Validate(ctx, req, stateOf); err != nil {
			return err
		}

		persisted, err := snap.instances(repos.ComponentQuery{ClusterID: req.ClusterID})
		if err != nil {
			return types.WrapStorageError(err, "failed to load instances of cluster %d", req.ClusterID)
		}

		proposed, changed, err := s.plan(req, persisted)
		if err != nil {
			return err
		}

		if err := s.constraints.Check(persisted, proposed); err != nil {
			if comp := componentOf(err); comp != "" {
				s.metrics.ConstraintViolation(comp)
			}
			return err
		}

		components := s.set.Components.WithTx(tx)
		for _, row := range changed {
			if row.State == types.StateUnselected {
				if row.ID != "" {
					if err := components.Delete(row); err != nil {
						return types.WrapStorageError(err, "failed to delete instance %s", row.ID)
					}
					result.Pruned++
				}
				continue
			}
			if err := components.Put(row); err != nil {
				return types.WrapStorageError(err, "failed to write instance %s", row.Identity())
			}
			result.Written = append(result.Written, row)
		}

		stale, err := components.DeleteInState(req.ClusterID, types.StateUnselected)
		if err != nil {
			return types.WrapStorageError(err, "failed to prune unselected instances")
		}
		result.Pruned += stale
		return nil
	})
	if err != nil {
		logger.Warn("Component selection rejected", log.Err(err))
		return nil, err
	}

	for _, row := range result.Written {
		s.metrics.InstanceWritten(string(row.State))
	}
	s.metrics.Pruned(result.Pruned)
	logger.Info("Component selection committed",
		log.Int("written", len(result.Written)),
		log.Int("pruned", result.Pruned))
	return result, nil
}

// plan runs every (component, node) pair of req through the lifecycle table.
// proposed holds the resulting row of every pair; changed holds the rows
// that must be written or deleted.
func (s *Service) plan(req *types.ComponentSelectRequest, persisted []*types.ComponentInstance) (proposed, changed []*types.ComponentInstance, err error) {
	live := make(map[types.InstanceIdentity]*types.ComponentInstance)
	removed := make(map[types.InstanceIdentity]bool)
	deployed := make(map[string]bool)
	for _, row := range persisted {
		if row.IsLive() {
			live[row.Identity()] = row
		} else {
			removed[row.Identity()] = true
		}
		if row.State == types.StateDeployed {
			deployed[row.ComponentName] = true
		}
	}

	for _, sel := range req.Components {
		def, _ := s.catalog.ComponentByName(sel.ComponentName)
		for _, nodeID := range sel.NodeIDs {
			id := types.InstanceIdentity{
				ClusterID:     req.ClusterID,
				NodeID:        nodeID,
				ServiceName:   sel.ServiceName,
				ComponentName: sel.ComponentName,
			}
			current := live[id]

			if current == nil && removed[id] && sel.Intent == types.StateSelected && !s.allowReselect {
				return nil, nil, types.NewValidationErrorf("%s on node %d was removed and cannot be selected again",
					sel.ComponentName, nodeID).
					WithDetail("component", sel.ComponentName).
					WithDetail("node", nodeID)
			}

			next, dirty, err := lifecycle.Plan(current, sel.Intent, deployed[sel.ComponentName])
			if err != nil {
				return nil, nil, types.WrapValidationError(err, "%s on node %d", sel.ComponentName, nodeID)
			}

			var row *types.ComponentInstance
			if current != nil {
				cp := *current
				row = &cp
			} else {
				row = &types.ComponentInstance{
					ClusterID:     id.ClusterID,
					NodeID:        id.NodeID,
					ServiceName:   id.ServiceName,
					ComponentName: id.ComponentName,
					Priority:      def.Priority,
				}
			}
			row.State = next
			proposed = append(proposed, row)
			if dirty {
				changed = append(changed, row)
			}
		}
	}
	return proposed, changed, nil
}

// SelectServices opts services of a cluster in or out.
func (s *Service) SelectServices(ctx context.Context, req *types.ServiceSelectRequest) ([]*types.ServiceSelection, error) {
	if req == nil {
		return nil, types.NewValidationError("request is required")
	}
	logger := s.logger.WithContext(ctx).With(log.Cluster(req.ClusterID), log.Operation(OpSelectServices))
	var written []*types.ServiceSelection

	err := s.mutate(ctx, OpSelectServices, req.ClusterID, func(ctx context.Context, tx store.Transaction) error {
		meta, err := s.clusterMeta(ctx, txClusters{s.set.Clusters.WithTx(tx)}, req.ClusterID)
		if err != nil {
			return err
		}
		snap := newTxSnapshot(s.set, tx)
		if err := s.validateServices(meta, req, snap, s.set.Clusters.WithTx(tx)); err != nil {
			return err
		}

		selections := s.set.Selections.WithTx(tx)
		for _, in := range req.Services {
			def, _ := s.catalog.ServiceByName(in.ServiceName)
			current, err := selections.Get(req.ClusterID, in.ServiceName)
			if err != nil {
				return types.WrapStorageError(err, "failed to load selection of %s", in.ServiceName)
			}
			from := types.StateUnselected
			if current != nil {
				from = current.State
			}
			if from == types.StateRemoved && in.Intent == types.StateSelected {
				if !s.allowReselect {
					return types.NewValidationErrorf("service %s was removed and cannot be selected again", in.ServiceName).
						WithDetail("service", in.ServiceName)
				}
				from = types.StateUnselected
			}
			next, err := lifecycle.Transition(from, in.Intent)
			if err != nil {
				return types.WrapValidationError(err, "service %s", in.ServiceName)
			}

			if next == types.StateUnselected {
				if current != nil {
					if err := selections.Delete(req.ClusterID, in.ServiceName); err != nil {
						return types.WrapStorageError(err, "failed to delete selection of %s", in.ServiceName)
					}
				}
				continue
			}
			if current != nil && current.State == next {
				continue
			}
			sel := &types.ServiceSelection{
				ClusterID:   req.ClusterID,
				ServiceName: in.ServiceName,
				State:       next,
				Priority:    def.Priority,
			}
			if err := selections.Put(sel); err != nil {
				return types.WrapStorageError(err, "failed to write selection of %s", in.ServiceName)
			}
			written = append(written, sel)
		}
		return nil
	})
	if err != nil {
		logger.Warn("Service selection rejected", log.Err(err))
		return nil, err
	}
	logger.Info("Service selection committed", log.Int("written", len(written)))
	return written, nil
}

func (s *Service) validateServices(meta types.ClusterMeta, req *types.ServiceSelectRequest, snap snapshot, clusters *repos.ClusterTx) error {
	if len(req.Services) == 0 {
		return types.NewValidationError("no services in request")
	}

	intents := make(map[string]types.State, len(req.Services))
	for _, in := range req.Services {
		if _, ok := s.catalog.ServiceByName(in.ServiceName); !ok {
			return types.NewValidationErrorf("unknown service %s", in.ServiceName).WithDetail("service", in.ServiceName)
		}
		if _, dup := intents[in.ServiceName]; dup {
			return types.NewValidationErrorf("service %s appears more than once", in.ServiceName).WithDetail("service", in.ServiceName)
		}
		if !in.Intent.IsOperatorIntent() {
			return types.NewValidationErrorf("intent %q of %s is not allowed, use %s or %s",
				in.Intent, in.ServiceName, types.StateSelected, types.StateUnselected).WithDetail("service", in.ServiceName)
		}
		intents[in.ServiceName] = in.Intent
	}

	for _, in := range req.Services {
		def, _ := s.catalog.ServiceByName(in.ServiceName)
		switch in.Intent {
		case types.StateSelected:
			for _, dep := range def.Dependencies {
				if intents[dep] == types.StateSelected {
					continue
				}
				depDef, _ := s.catalog.ServiceByName(dep)
				ref, err := ResolutionCluster(meta, depDef)
				if err != nil {
					return err
				}
				if ref.ID == meta.Current.ID && intents[dep] == types.StateUnselected {
					return types.NewValidationErrorf("service %s depends on %s, which is being unselected", in.ServiceName, dep).
						WithDetail("service", in.ServiceName).
						WithDetail("dependency", dep)
				}
				state, known, err := serviceState(snap, ref.ID, dep)
				if err != nil {
					return err
				}
				if !known || state == types.StateUnselected || state == types.StateRemoved {
					return types.NewValidationErrorf("service %s depends on %s, which is not selected in cluster %s",
						in.ServiceName, dep, ref.Name).
						WithDetail("service", in.ServiceName).
						WithDetail("dependency", dep)
				}
			}

		case types.StateUnselected:
			placed, err := snap.instances(repos.ComponentQuery{
				ClusterID:     meta.Current.ID,
				ServiceName:   in.ServiceName,
				ExcludeStates: []types.State{types.StateUnselected, types.StateRemoved},
			})
			if err != nil {
				return types.WrapStorageError(err, "failed to load instances of %s", in.ServiceName)
			}
			if len(placed) > 0 {
				return types.NewValidationErrorf("service %s still has %d placed component instances", in.ServiceName, len(placed)).
					WithDetail("service", in.ServiceName)
			}
			// dependents only resolve this service here when it is local to the cluster
			if ref, err := ResolutionCluster(meta, def); err != nil || ref.ID != meta.Current.ID {
				continue
			}
			for _, other := range s.catalog.Services() {
				if other.Name == in.ServiceName || !dependsOn(other, in.ServiceName) || intents[other.Name] == types.StateUnselected {
					continue
				}
				sel, err := snap.selection(meta.Current.ID, other.Name)
				if err != nil {
					return types.WrapStorageError(err, "failed to load selection of %s", other.Name)
				}
				if sel != nil && sel.State.IsPlaced() {
					return types.NewValidationErrorf("service %s is required by %s", in.ServiceName, other.Name).
						WithDetail("service", in.ServiceName).
						WithDetail("dependent", other.Name)
				}
			}
			if def.Type == types.ServiceTypeStorage && meta.Current.Type == types.ClusterTypeStorage {
				if err := s.checkLinkedDependents(meta.Current, in.ServiceName, snap, clusters); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// checkLinkedDependents fails when a compute cluster linked to the storage
// cluster still selects a service depending on the storage service. The
// linked clusters are read in the same transaction, not under their locks.
func (s *Service) checkLinkedDependents(storage types.ClusterRef, service string, snap snapshot, clusters *repos.ClusterTx) error {
	all, err := clusters.List()
	if err != nil {
		return types.WrapStorageError(err, "failed to list clusters")
	}
	for _, c := range all {
		if c.RelativeClusterID != storage.ID {
			continue
		}
		for _, other := range s.catalog.Services() {
			if !dependsOn(other, service) {
				continue
			}
			sel, err := snap.selection(c.ID, other.Name)
			if err != nil {
				return types.WrapStorageError(err, "failed to load selection of %s", other.Name)
			}
			if sel != nil && sel.State.IsPlaced() {
				return types.NewValidationErrorf("service %s is required by %s in cluster %s", service, other.Name, c.Name).
					WithDetail("service", service).
					WithDetail("dependent", other.Name).
					WithDetail("cluster", c.Name)
			}
		}
	}
	return nil
}

// SwitchComponentState records a state reported by the deployment executor
// for one live instance. When every live instance of the service is DEPLOYED
// the service selection is marked DEPLOYED as well.
func (s *Service) SwitchComponentState(ctx context.Context, id types.InstanceIdentity, state types.State) (*types.ComponentInstance, error) {
	if _, err := types.ParseState(string(state)); err != nil {
		return nil, types.WrapValidationError(err, "invalid state")
	}
	if state == types.StateUnselected {
		return nil, types.NewValidationErrorf("state %s is set through a selection batch", state)
	}
	logger := s.logger.WithContext(ctx).With(log.Cluster(id.ClusterID), log.Operation(OpSwitchState))

	var out *types.ComponentInstance
	err := s.mutate(ctx, OpSwitchState, id.ClusterID, func(ctx context.Context, tx store.Transaction) error {
		components := s.set.Components.WithTx(tx)
		row, err := components.FindLive(id)
		if err != nil {
			return types.WrapStorageError(err, "failed to load instance %s", id)
		}
		if row == nil {
			return types.NewNotFoundError("component instance", id.String())
		}
		row.State = state
		if err := components.Put(row); err != nil {
			return types.WrapStorageError(err, "failed to write instance %s", id)
		}
		out = row
		return s.syncSelection(tx, id.ClusterID, id.ServiceName)
	})
	if err != nil {
		logger.Warn("Component state switch failed", log.Err(err))
		return nil, err
	}
	logger.Info("Component state switched",
		log.Str("instance", id.String()),
		log.Str("state", string(state)))
	return out, nil
}

func (s *Service) syncSelection(tx store.Transaction, clusterID int64, service string) error {
	selections := s.set.Selections.WithTx(tx)
	sel, err := selections.Get(clusterID, service)
	if err != nil {
		return types.WrapStorageError(err, "failed to load selection of %s", service)
	}
	if sel == nil || !sel.State.IsSelected() {
		return nil
	}

	rows, err := s.set.Components.WithTx(tx).List(repos.ComponentQuery{
		ClusterID:     clusterID,
		ServiceName:   service,
		ExcludeStates: []types.State{types.StateRemoved},
	})
	if err != nil {
		return types.WrapStorageError(err, "failed to load instances of %s", service)
	}
	if len(rows) == 0 {
		return nil
	}
	for _, row := range rows {
		if row.State != types.StateDeployed {
			return nil
		}
	}

	sel.State = types.StateDeployed
	if err := selections.Put(sel); err != nil {
		return types.WrapStorageError(err, "failed to write selection of %s", service)
	}
	return nil
}

// ServiceState reports the state of a service in a cluster.
func (s *Service) ServiceState(ctx context.Context, clusterID int64, service string) (types.State, error) {
	if _, ok := s.catalog.ServiceByName(service); !ok {
		return "", types.NewNotFoundError("service", service)
	}
	if err := s.validator.checkCluster(ctx, clusterID); err != nil {
		return "", err
	}
	state, _, err := serviceState(&storeSnapshot{ctx: ctx, set: s.set}, clusterID, service)
	return state, err
}

// ListComponents returns the component view of the selected services of a cluster.
func (s *Service) ListComponents(ctx context.Context, clusterID int64) (*types.ComponentView, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveQuery(OpListComponents, time.Since(start)) }()

	if err := s.validator.checkCluster(ctx, clusterID); err != nil {
		return nil, err
	}
	return s.summarizer.Summarize(ctx, clusterID)
}

// ResolveDependencies returns the ordered dependency closure of a service as
// seen from a cluster.
func (s *Service) ResolveDependencies(ctx context.Context, clusterID int64, service string) (*types.ServiceDependencies, error) {
	start := time.Now()
	defer func() { s.metrics.ObserveQuery(OpResolve, time.Since(start)) }()

	meta, err := s.clusterMeta(ctx, s.set.Clusters, clusterID)
	if err != nil {
		return nil, err
	}
	return s.resolver.Resolve(ctx, meta, service)
}

// ListServiceComponents returns the live instances of a service in a cluster.
func (s *Service) ListServiceComponents(ctx context.Context, clusterID int64, service string) ([]*types.ComponentInstance, error) {
	return s.listInstances(ctx, repos.ComponentQuery{ClusterID: clusterID, ServiceName: service})
}

// ListServiceComponentsOnNode returns the live instances of a service on one node.
func (s *Service) ListServiceComponentsOnNode(ctx context.Context, clusterID, nodeID int64, service string) ([]*types.ComponentInstance, error) {
	return s.listInstances(ctx, repos.ComponentQuery{ClusterID: clusterID, ServiceName: service, NodeID: nodeID})
}

func (s *Service) listInstances(ctx context.Context, q repos.ComponentQuery) ([]*types.ComponentInstance, error) {
	if q.ServiceName != "" {
		if _, ok := s.catalog.ServiceByName(q.ServiceName); !ok {
			return nil, types.NewNotFoundError("service", q.ServiceName)
		}
	}
	if err := s.validator.checkCluster(ctx, q.ClusterID); err != nil {
		return nil, err
	}
	q.ExcludeStates = []types.State{types.StateRemoved}
	rows, err := s.set.Components.List(ctx, q)
	return rows, types.WrapStorageError(err, "failed to list instances")
}

// clusterMeta loads a cluster and its relative cluster.
func (s *Service) clusterMeta(ctx context.Context, clusters ClusterLookup, clusterID int64) (types.ClusterMeta, error) {
	c, err := clusters.Get(ctx, clusterID)
	if store.IsNotFoundError(err) {
		return types.ClusterMeta{}, types.NewValidationErrorf("cluster %d does not exist", clusterID).WithDetail("cluster", clusterID)
	} else if err != nil {
		return types.ClusterMeta{}, types.WrapStorageError(err, "failed to load cluster %d", clusterID)
	}

	meta := types.ClusterMeta{Current: types.RefOf(c)}
	if c.RelativeClusterID == 0 {
		return meta, nil
	}
	rel, err := clusters.Get(ctx, c.RelativeClusterID)
	if err != nil {
		return types.ClusterMeta{}, types.NewConsistencyError(
			fmt.Sprintf("cluster %s references missing relative cluster %d", c.Name, c.RelativeClusterID))
	}
	ref := types.RefOf(rel)
	meta.Relative = &ref
	return meta, nil
}

func componentOf(err error) string {
	var typed *types.Error
	if errors.As(err, &typed) {
		if v, ok := typed.Details["component"].(string); ok {
			return v
		}
	}
	return ""
}

func dependsOn(svc *types.ServiceDefinition, dep string) bool {
	for _, d := range svc.Dependencies {
		if d == dep {
			return true
		}
	}
	return false
}
