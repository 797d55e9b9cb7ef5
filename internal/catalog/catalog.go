// Package catalog loads and serves the immutable set of goal definitions.
package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/R21Digital/Project-MorningStar-sub013/internal/types"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Catalog holds validated goals in their source order.
type Catalog struct {
	goals    []*types.Goal
	byName   map[string]*types.Goal
	order    map[string]int
	rejected []*types.ConfigurationError
	warnings []string
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	Type     types.GoalType
	Priority types.Priority
}

// LoadFile reads a catalog from a YAML file.
func LoadFile(path string, logger *zap.Logger) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	c, err := Load(bytes.NewReader(data), logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Load decodes a catalog document. Each entry is validated on its own: a
// malformed entry is rejected with a ConfigurationError, logged, and
// skipped. Only a document that cannot be parsed at all returns an error.
func Load(r io.Reader, logger *zap.Logger) (*Catalog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("catalog")

	var root yaml.Node
	if err := yaml.NewDecoder(r).Decode(&root); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	nodes, err := entryNodes(&root)
	if err != nil {
		return nil, err
	}

	c := newCatalog()
	warn := func(msg string) {
		c.warnings = append(c.warnings, msg)
		logger.Warn(msg)
	}

	for i, node := range nodes {
		var entry goalEntry
		if err := node.Decode(&entry); err != nil {
			c.reject(logger, &types.ConfigurationError{Index: i, Err: fmt.Errorf("line %d: %w", node.Line, err)})
			continue
		}
		goal, err := entry.toGoal(i, warn)
		if err != nil {
			var cfgErr *types.ConfigurationError
			if !errors.As(err, &cfgErr) {
				cfgErr = &types.ConfigurationError{Index: i, Goal: entry.Name, Err: err}
			}
			c.reject(logger, cfgErr)
			continue
		}
		if _, dup := c.byName[goal.Name]; dup {
			c.reject(logger, &types.ConfigurationError{
				Index: i, Goal: goal.Name, Field: "name",
				Err: fmt.Errorf("duplicate goal name (line %d)", node.Line),
			})
			continue
		}
		c.add(goal)
	}

	shared := c.SharedCollectionTargets()
	sharedTargets := make([]string, 0, len(shared))
	for target := range shared {
		sharedTargets = append(sharedTargets, target)
	}
	sort.Strings(sharedTargets)
	for _, target := range sharedTargets {
		warn(fmt.Sprintf("collection target %q is shared by goals %v; each goal confirms it against world state", target, shared[target]))
	}

	logger.Info("catalog loaded",
		zap.Int("goals", len(c.goals)),
		zap.Int("rejected", len(c.rejected)))
	return c, nil
}

// New builds a catalog from already-constructed goals, for callers that
// define goals in code. Duplicate or unnamed goals are an error.
func New(goals ...*types.Goal) (*Catalog, error) {
	c := newCatalog()
	for i, g := range goals {
		if g == nil || g.Name == "" {
			return nil, &types.ConfigurationError{Index: i, Field: "name", Err: fmt.Errorf("name is required")}
		}
		if _, dup := c.byName[g.Name]; dup {
			return nil, &types.ConfigurationError{Index: i, Goal: g.Name, Field: "name", Err: fmt.Errorf("duplicate goal name")}
		}
		c.add(g)
	}
	return c, nil
}

func newCatalog() *Catalog {
	return &Catalog{
		byName: make(map[string]*types.Goal),
		order:  make(map[string]int),
	}
}

func (c *Catalog) add(g *types.Goal) {
	c.order[g.Name] = len(c.goals)
	c.goals = append(c.goals, g)
	c.byName[g.Name] = g
}

func (c *Catalog) reject(logger *zap.Logger, err *types.ConfigurationError) {
	c.rejected = append(c.rejected, err)
	logger.Warn("catalog entry rejected",
		zap.Int("index", err.Index),
		zap.String("goal", err.Goal),
		zap.Error(err))
}

// Get returns the goal with the given name.
func (c *Catalog) Get(name string) (*types.Goal, error) {
	g, ok := c.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrGoalNotFound, name)
	}
	return g, nil
}

// List returns the goals matching f in catalog order.
func (c *Catalog) List(f Filter) []*types.Goal {
	out := make([]*types.Goal, 0, len(c.goals))
	for _, g := range c.goals {
		if f.Type != "" && g.Type != f.Type {
			continue
		}
		if f.Priority != "" && g.Priority != f.Priority {
			continue
		}
		out = append(out, g)
	}
	return out
}

// All returns every goal in catalog order.
func (c *Catalog) All() []*types.Goal {
	return c.List(Filter{})
}

// Len returns the number of loaded goals.
func (c *Catalog) Len() int { return len(c.goals) }

// Order returns the goal's position in the catalog, or -1.
func (c *Catalog) Order(name string) int {
	if i, ok := c.order[name]; ok {
		return i
	}
	return -1
}

// Rejected returns the entries skipped during Load.
func (c *Catalog) Rejected() []*types.ConfigurationError {
	return c.rejected
}

// Warnings returns non-fatal findings from Load.
func (c *Catalog) Warnings() []string {
	return c.warnings
}

// SharedCollectionTargets maps each collection target named by more than
// one goal to those goals' names.
func (c *Catalog) SharedCollectionTargets() map[string][]string {
	owners := make(map[string][]string)
	for _, g := range c.goals {
		for _, t := range g.CollectionTargets {
			owners[t] = append(owners[t], g.Name)
		}
	}
	shared := make(map[string][]string)
	for t, names := range owners {
		if len(names) > 1 {
			sort.Strings(names)
			shared[t] = names
		}
	}
	return shared
}
