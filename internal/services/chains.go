package services

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/harmony-sds/workflow-core/internal/domain/work"
	"github.com/harmony-sds/workflow-core/internal/platform/logger"
)

// ChainStep is one stage of a service chain as declared in yaml. Operation
// is an opaque template forwarded to the service with each work item.
type ChainStep struct {
	ServiceID           string         `yaml:"service_id" validate:"required"`
	Kind                string         `yaml:"kind" validate:"required,oneof=sequential-query map aggregate batched-aggregate"`
	Operation           map[string]any `yaml:"operation"`
	MaxBatchInputs      *int           `yaml:"max_batch_inputs" validate:"omitempty,gt=0"`
	MaxBatchSizeInBytes *int64         `yaml:"max_batch_size_in_bytes" validate:"omitempty,gt=0"`
	ProgressWeight      float64        `yaml:"progress_weight" validate:"gte=0"`
}

func (s ChainStep) StepKind() work.StepKind { return work.StepKind(s.Kind) }

// Chain is a named pipeline of steps. The first step pages granules out of
// the source catalog; every later step consumes its predecessor's outputs.
type Chain struct {
	Name  string      `yaml:"name" validate:"required"`
	Steps []ChainStep `yaml:"steps" validate:"required,min=1,dive"`
}

type chainFile struct {
	Chains []Chain `yaml:"chains" validate:"required,min=1,dive"`
}

// ChainRegistry resolves chain names at job submission.
type ChainRegistry interface {
	Get(name string) (*Chain, bool)
	Names() []string
}

type chainRegistry struct {
	log    *logger.Logger
	chains map[string]*Chain
}

// LoadChains reads and validates the chain definitions at path. Beyond tag
// validation it enforces the pipeline shape: step 1 is the sequential query
// step and no later step is.
func LoadChains(path string, baseLog *logger.Logger) (ChainRegistry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service chains %q: %w", path, err)
	}
	var file chainFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse service chains %q: %w", path, err)
	}
	validate := validator.New()
	if err := validate.Struct(&file); err != nil {
		return nil, fmt.Errorf("validate service chains %q: %w", path, err)
	}

	chains := make(map[string]*Chain, len(file.Chains))
	for i := range file.Chains {
		c := file.Chains[i]
		name := strings.TrimSpace(c.Name)
		if _, dup := chains[name]; dup {
			return nil, fmt.Errorf("service chain %q declared twice", name)
		}
		if got := c.Steps[0].StepKind(); got != work.StepSequentialQuery {
			return nil, fmt.Errorf("service chain %q: first step must be %s, got %s", name, work.StepSequentialQuery, got)
		}
		for j := 1; j < len(c.Steps); j++ {
			if c.Steps[j].StepKind() == work.StepSequentialQuery {
				return nil, fmt.Errorf("service chain %q: step %d repeats the %s step", name, j+1, work.StepSequentialQuery)
			}
		}
		chains[name] = &c
	}

	log := baseLog.With("service", "ChainRegistry")
	log.Info("Loaded service chains", "path", path, "count", len(chains))
	return &chainRegistry{log: log, chains: chains}, nil
}

func (r *chainRegistry) Get(name string) (*Chain, bool) {
	c, ok := r.chains[strings.TrimSpace(name)]
	return c, ok
}

func (r *chainRegistry) Names() []string {
	out := make([]string, 0, len(r.chains))
	for name := range r.chains {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
