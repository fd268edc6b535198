package grove

import (
	"context"
	"fmt"

	"github.com/grovekit/grove/model"
	"github.com/grovekit/grove/policy"
	"github.com/grovekit/grove/runtime/engine"
	"github.com/grovekit/grove/runtime/execution"
	"github.com/grovekit/grove/service/approval"
	daostore "github.com/grovekit/grove/service/dao/store"
	"github.com/grovekit/grove/service/store"
	"github.com/viant/afs"
	"github.com/viant/afs/storage"
	"github.com/viant/afs/url"
)

// Runtime represents the workflow engine runtime: it loads definitions,
// starts runs and tracks them by id.
type Runtime struct {
	fs        afs.Service
	baseURL   string
	fsOptions []storage.Option
	engine    *engine.Engine
	store     store.Service
	approvals approval.Service
	policy    *policy.Policy
	runs      *daostore.MemoryStore[string, execution.Run]
}

// LoadWorkflow loads and validates a workflow definition. Relative
// locations resolve against the configured base URL; any afs scheme works,
// including file, mem and embed.
func (r *Runtime) LoadWorkflow(ctx context.Context, location string) (*model.Workflow, error) {
	URL := location
	if r.baseURL != "" && url.IsRelative(location) {
		URL = url.Join(r.baseURL, location)
	}
	data, err := r.fs.DownloadWithURL(ctx, URL, r.fsOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow %s: %w", URL, err)
	}
	workflow, err := model.DecodeYAML(data)
	if err != nil {
		return nil, err
	}
	workflow.Source = &model.Source{URL: URL}
	return workflow, nil
}

// DecodeYAMLWorkflow decodes and validates a workflow definition from YAML.
func (r *Runtime) DecodeYAMLWorkflow(data []byte) (*model.Workflow, error) {
	return model.DecodeYAML(data)
}

// StartRun validates the workflow and starts executing it asynchronously.
// init overrides entries of the workflow's declared Init payload. The
// returned run settles once the root finishes; use run.Wait to observe the
// terminal outcome.
func (r *Runtime) StartRun(ctx context.Context, workflow *model.Workflow, init map[string]interface{}) (*execution.Run, error) {
	if r.policy != nil {
		ctx = policy.WithPolicy(ctx, r.policy)
	}
	run, err := r.engine.Run(ctx, workflow, init)
	if err != nil {
		return nil, err
	}
	_ = r.runs.Save(ctx, run)
	return run, nil
}

// Run returns a previously started run by id.
func (r *Runtime) Run(ctx context.Context, id string) (*execution.Run, error) {
	run, err := r.runs.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("unknown run %s", id)
	}
	return run, nil
}

// Runs lists every run started through this runtime.
func (r *Runtime) Runs(ctx context.Context) ([]*execution.Run, error) {
	return r.runs.List(ctx)
}

// Store returns the output store shared by all runs.
func (r *Runtime) Store() store.Service {
	return r.store
}

// Approvals returns the approval service backing approval gates.
func (r *Runtime) Approvals() approval.Service {
	return r.approvals
}
