package pipeline

import (
	"sync"

	"github.com/graphtext/graph2seq/internal/config"
	"github.com/graphtext/graph2seq/internal/construction"
	"github.com/graphtext/graph2seq/internal/models"
)

// BuilderFactory creates a graph construction strategy from the pipeline
// dependencies and configuration.
type BuilderFactory func(deps Deps, cfg config.Config) (construction.Builder, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]BuilderFactory{}
)

// RegisterBuilder makes a construction strategy available under the given
// name. Built-in strategies register themselves; callers may add their own
// before constructing a pipeline.
func RegisterBuilder(name string, factory BuilderFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	registry[name] = factory
}

func builderFor(name string, deps Deps, cfg config.Config) (construction.Builder, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()

	if !ok {
		return nil, models.ConfigErrorf("unknown graph construction strategy %q", name)
	}

	return factory(deps, cfg)
}

func staticOptions(deps Deps) []construction.StaticOption {
	var opts []construction.StaticOption
	if deps.MergeFunc != nil {
		opts = append(opts, construction.WithMergeFunc(deps.MergeFunc))
	}
	if deps.Logger != nil {
		opts = append(opts, construction.WithLogger(deps.Logger))
	}

	return opts
}

func init() {
	RegisterBuilder("dependency", func(deps Deps, cfg config.Config) (construction.Builder, error) {
		if deps.Parser == nil {
			return nil, models.ConfigErrorf("dependency construction requires a parser client")
		}

		return construction.NewDependencyBuilder(deps.Parser, deps.SourceVocab, cfg.Construction.Static, staticOptions(deps)...), nil
	})

	RegisterBuilder("constituency", func(deps Deps, cfg config.Config) (construction.Builder, error) {
		if deps.Parser == nil {
			return nil, models.ConfigErrorf("constituency construction requires a parser client")
		}

		return construction.NewConstituencyBuilder(deps.Parser, deps.SourceVocab, cfg.Construction.Static, staticOptions(deps)...), nil
	})

	RegisterBuilder("node_emb", func(deps Deps, cfg config.Config) (construction.Builder, error) {
		return construction.NewNodeEmbBuilder(deps.SourceEmb, deps.SourceVocab, cfg.Construction.NodeEmb, deps.Seed), nil
	})

	RegisterBuilder("node_emb_refined", func(deps Deps, cfg config.Config) (construction.Builder, error) {
		var initial construction.Builder
		if deps.Parser != nil {
			initial = construction.NewDependencyBuilder(deps.Parser, deps.SourceVocab, cfg.Construction.Static, staticOptions(deps)...)
		}

		return construction.NewNodeEmbRefinedBuilder(deps.SourceEmb, deps.SourceVocab, cfg.Construction.NodeEmb, deps.Seed, initial), nil
	})
}
