// Package lib provides a Go SDK to watch remote deployment operations and infer
// their status from their logs.
//
// This package allows applications to launch and follow operations without
// shelling out to the deploywatch CLI binary. It is useful for deployment
// pipelines, chat ops bots and tools that need a reliable verdict of a remote
// operation that only exposes its logs.
//
// # Quick Start
//
// Create a client and watch an already running operation:
//
//	client, err := lib.New(lib.Config{BackendURL: "http://ops.internal:8080"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	st, err := client.Watch(ctx, lib.WatchOpts{
//	    OperationID: "op-42",
//	    TotalSteps:  3,
//	    OnUpdate: func(u lib.Update) {
//	        fmt.Printf("%s %d/%d\n", u.State.Status, u.State.Progress.Done, u.State.Progress.Total)
//	    },
//	})
//
// # Launching
//
// Launch a template (its steps give the expected step count) or an ad hoc
// operation and watch it until it finishes:
//
//	res, err := client.Launch(ctx, lib.LaunchOpts{Template: "web-stack"})
//
// # Classifying Logs
//
// [Classify] gives the verdict of a captured log buffer without any backend:
//
//	c := lib.Classify(lines)
//	if c.HasFailure {
//	    fmt.Println(c.FailureLine)
//	}
//
// # Error Handling
//
// All methods return errors that can be inspected with [errors.Is]:
//
//   - [ErrNotFound]: Template does not exist.
//   - [ErrNotValid]: Invalid input.
//   - [ErrTransport]: The backend could not be reached.
//
// A watched operation that fails is not an error, check [SessionState].Status.
//
// # Testing
//
// Use [BackendFake] to run scripted demo deployments without a backend:
//
//	client, _ := lib.New(lib.Config{
//	    Backend:      lib.BackendFake,
//	    PollInterval: time.Millisecond,
//	})
//
// # Thread Safety
//
// A [Client] is safe for concurrent use from multiple goroutines, every watch
// runs its own independent polling session.
package lib
