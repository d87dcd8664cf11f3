// Package termexec provides a secure, policy-driven shell command
// execution engine.
//
// TermExec is a production-grade Go library that centralizes shell
// command invocation behind a minimal API. Commands are validated
// against an executable allow-list before they reach the OS, run under
// a wall-clock deadline, have their combined stdout/stderr size capped,
// and can be bounded on CPU time, resident memory and process count of
// the whole process tree they spawn.
//
// # Quick Start
//
// The simplest way to use termexec:
//
//	// Create an engine with default settings
//	eng, err := termexec.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Shutdown(context.Background())
//
//	// Execute a command line
//	spec, _ := termexec.NewCommand("echo hello").Build()
//	result, err := eng.Execute(ctx, spec)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Stdout)
//
// # With Policy Configuration
//
// For production use, load a policy file:
//
//	loader, err := termexec.LoadPolicy("/etc/termexec", "policy.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	pol, err := loader.Load(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	eng, err := termexec.NewBuilderFromPolicy(pol).
//	    WithDefaultTimeout(30 * time.Second).
//	    Build()
//
// # Security Model
//
// Commands are interpreted by a shell, so validation happens on the
// command line itself:
//
//   - Executable Allow-listing: the first token of the command must be
//     on the allow-list when one is configured
//   - Operator Denial: shell chaining operators (&&, ||, |, ;, `) are
//     rejected anywhere in the command when an allow-list is active
//   - Environment Scrubbing: the child starts from a minimal
//     environment, never the parent's
//   - Resource Limits: wall clock, output size, CPU time, memory and
//     process count of the spawned process tree
//
// # Architecture
//
// The library is organized into focused packages:
//
//   - termexec (this package): Main entry point and convenience functions
//   - engine: Core Engine interface and implementation
//   - policy: Command validation and YAML policy loading
//   - pool: Concurrency gate with backpressure
//   - resilience: Rate limiting
//   - observability: OpenTelemetry metrics and audit logging
//   - hooks: Extension points for custom behavior
//   - config: Configuration presets
//
// # Thread Safety
//
// All types in this package are safe for concurrent use by multiple
// goroutines. The Engine can be shared across goroutines without
// additional synchronization.
//
// # File I/O
//
// All file operations in this library use
// github.com/victoralfred/gowritter/safepath for secure path handling.
package termexec
