package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/snaplock/pkg/async"
	"github.com/platinummonkey/snaplock/pkg/lock"
)

// Scenario is a YAML description of a lock workload to replay against
// a bundle's policy.
type Scenario struct {
	Description string            `yaml:"description,omitempty"`
	Requests    []ScenarioRequest `yaml:"requests"`
}

// ScenarioRequest is one lock request in a scenario. Repeat expands it
// into that many identical requests (default 1).
type ScenarioRequest struct {
	Path     string            `yaml:"path"`
	User     string            `yaml:"user"`
	Action   string            `yaml:"action"`
	Metadata map[string]string `yaml:"metadata,omitempty"`
	Repeat   int               `yaml:"repeat,omitempty"`
}

// LoadScenario reads and structurally checks a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}

	if len(scenario.Requests) == 0 {
		return nil, fmt.Errorf("scenario defines no requests")
	}
	for i, req := range scenario.Requests {
		if req.Path == "" || req.User == "" || req.Action == "" {
			return nil, fmt.Errorf("requests[%d]: path, user, and action are required", i)
		}
		if req.Repeat < 0 {
			return nil, fmt.Errorf("requests[%d]: repeat must not be negative", i)
		}
	}
	return &scenario, nil
}

// expand flattens repeats into the full request list.
func (s *Scenario) expand() []ScenarioRequest {
	var out []ScenarioRequest
	for _, req := range s.Requests {
		n := req.Repeat
		if n == 0 {
			n = 1
		}
		for i := 0; i < n; i++ {
			out = append(out, req)
		}
	}
	return out
}

// newSimulateCommand creates a new simulate command
func newSimulateCommand() *Command {
	fs := flag.NewFlagSet("simulate", flag.ExitOnError)

	var (
		bundlePath   = fs.String("bundle", "bundle.yaml", "Path to the policy bundle file")
		scenarioPath = fs.String("scenario", "", "Path to the scenario file")
		workers      = fs.Int("workers", 4, "Number of concurrent workers")
		timeout      = fs.Duration("timeout", 10*time.Second, "Per-request timeout")
		format       = fs.String("format", "text", "Output format: text, json")
		failOnDeny   = fs.Bool("fail-on-deny", false, "Exit with error code if any request is denied")
		verbose      = fs.Bool("verbose", false, "Print every individual outcome")
	)

	return &Command{
		Name:        "simulate",
		Description: "Replay a scenario of concurrent lock requests",
		Flags:       fs,
		Run: func(args []string) error {
			if err := fs.Parse(args); err != nil {
				return err
			}

			return runSimulate(*bundlePath, *scenarioPath, *workers, *timeout, *format, *failOnDeny, *verbose)
		},
	}
}

func runSimulate(bundlePath, scenarioPath string, workers int, timeout time.Duration, format string, failOnDeny, verbose bool) error {
	if scenarioPath == "" {
		return fmt.Errorf("simulate requires -scenario")
	}
	if workers < 1 {
		workers = 1
	}

	scenario, err := LoadScenario(scenarioPath)
	if err != nil {
		return err
	}

	ctx := context.Background()
	e, _, err := newPolicyEngine(ctx, bundlePath)
	if err != nil {
		return err
	}
	defer e.Close()

	requests := scenario.expand()
	tally := &simTally{byStatus: make(map[lock.Status]int), denials: make(map[string]int)}

	start := time.Now()
	errs := async.Batch(ctx, requests, workers, "lock simulation", timeout, nil,
		func(ctx context.Context, req ScenarioRequest) error {
			l, err := e.RequestLock(ctx, req.Path, req.User, req.Action, req.Metadata)
			if err != nil {
				return fmt.Errorf("%s %s by %s: %w", req.Action, req.Path, req.User, err)
			}
			tally.record(l)
			return nil
		})
	elapsed := time.Since(start)

	switch format {
	case "json":
		if err := simulateOutputJSON(scenario, tally, workers, elapsed, errs); err != nil {
			return err
		}
	default:
		simulateOutputText(scenario, tally, workers, elapsed, errs, verbose)
	}

	if len(errs) > 0 {
		return fmt.Errorf("simulation failed with %d errors", len(errs))
	}
	if failOnDeny && tally.count(lock.StatusDenied) > 0 {
		return fmt.Errorf("simulation saw %d denials", tally.count(lock.StatusDenied))
	}
	return nil
}

// simTally aggregates outcomes across workers.
type simTally struct {
	mu       sync.Mutex
	results  []*lock.Lock
	byStatus map[lock.Status]int

	// denials counts denied outcomes by deciding rule ID; holder
	// conflicts carry no rule and group under the empty key.
	denials map[string]int
}

func (t *simTally) record(l *lock.Lock) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.results = append(t.results, l)
	t.byStatus[l.Status]++
	if l.Status == lock.StatusDenied {
		t.denials[l.RuleID]++
	}
}

func (t *simTally) count(status lock.Status) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.byStatus[status]
}

func (t *simTally) total() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.results)
}

// causes returns a copy of the denial tally keyed by deciding rule ID.
func (t *simTally) causes() map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]int, len(t.denials))
	for cause, n := range t.denials {
		out[cause] = n
	}
	return out
}

// outcomes returns a copy of the per-status tally.
func (t *simTally) outcomes() map[lock.Status]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[lock.Status]int, len(t.byStatus))
	for status, n := range t.byStatus {
		out[status] = n
	}
	return out
}

// sorted returns the results ordered by path, user, then status so
// output is stable regardless of worker interleaving.
func (t *simTally) sorted() []*lock.Lock {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := append([]*lock.Lock(nil), t.results...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		if out[i].Owner != out[j].Owner {
			return out[i].Owner < out[j].Owner
		}
		return out[i].Status < out[j].Status
	})
	return out
}

func simulateOutputText(scenario *Scenario, tally *simTally, workers int, elapsed time.Duration, errs []error, verbose bool) {
	if scenario.Description != "" {
		fmt.Printf("Scenario: %s\n", scenario.Description)
	}

	results := tally.sorted()
	fmt.Printf("Simulated %d requests with %d workers in %s\n\n", len(results)+len(errs), workers, elapsed.Round(time.Microsecond))

	fmt.Printf("Outcomes:\n")
	for _, status := range []lock.Status{lock.StatusHeld, lock.StatusDenied} {
		fmt.Printf("  %-8s %d\n", string(status)+":", tally.count(status))
	}
	if len(errs) > 0 {
		fmt.Printf("  %-8s %d\n", "errors:", len(errs))
	}

	denials := tally.causes()
	if len(denials) > 0 {
		causes := make([]string, 0, len(denials))
		for cause := range denials {
			causes = append(causes, cause)
		}
		sort.Strings(causes)

		fmt.Printf("\nDenials by cause:\n")
		for _, cause := range causes {
			label := cause
			if label == "" {
				label = "(held-lock conflict)"
			}
			fmt.Printf("  %-24s %d\n", label+":", denials[cause])
		}
	}

	if verbose {
		fmt.Printf("\nResults:\n")
		for _, l := range results {
			fmt.Printf("  [%s] %s %s by %s", l.Status, l.Action, l.Path, l.Owner)
			if l.Reason != "" {
				fmt.Printf(" (%s)", l.Reason)
			}
			fmt.Printf("\n")
		}
	}

	for _, err := range errs {
		fmt.Printf("Error: %v\n", err)
	}
}

func simulateOutputJSON(scenario *Scenario, tally *simTally, workers int, elapsed time.Duration, errs []error) error {
	counts := make(map[string]int)
	for status, n := range tally.outcomes() {
		counts[string(status)] = n
	}
	denials := make(map[string]int)
	for cause, n := range tally.causes() {
		if cause == "" {
			cause = "conflict"
		}
		denials[cause] = n
	}
	total := tally.total()

	errMessages := make([]string, len(errs))
	for i, err := range errs {
		errMessages[i] = err.Error()
	}

	output := struct {
		Description string         `json:"description,omitempty"`
		Requests    int            `json:"requests"`
		Workers     int            `json:"workers"`
		DurationMS  float64        `json:"duration_ms"`
		Outcomes    map[string]int `json:"outcomes"`
		Denials     map[string]int `json:"denials,omitempty"`
		Errors      []string       `json:"errors,omitempty"`
	}{
		Description: scenario.Description,
		Requests:    total + len(errs),
		Workers:     workers,
		DurationMS:  float64(elapsed.Microseconds()) / 1000.0,
		Outcomes:    counts,
		Denials:     denials,
		Errors:      errMessages,
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}
