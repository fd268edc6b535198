// Package grove provides an embeddable workflow orchestration core.
//
// A workflow is a tree of nodes - tasks, sequences, parallels, convergence
// loops and approval gates - whose results are recorded in a versioned
// output store keyed by node identity and iteration. Nodes never talk to
// each other directly; downstream nodes read upstream results through the
// store, which makes iteration history a first-class, queryable artefact.
//
// Grove is designed to be embedded in host applications. End-users
// typically interact with the engine via the high-level Service façade
// exposed by the root package:
//
//	srv := grove.New()
//	rt := srv.Runtime()
//	wf, _ := rt.LoadWorkflow(ctx, "review.yaml")
//	run, _ := rt.StartRun(ctx, wf, nil)
//	outcome, _ := run.Wait(ctx, time.Minute)
//
// For more details see the README and individual sub-packages.
package grove
