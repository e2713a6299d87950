// Package cli provides the Snaplock command-line interface for policy work.
//
// # Overview
//
// This package implements the `snaplock` CLI tool for operators to validate
// policy bundles, explain individual decisions, replay lock workloads, and
// inspect the effective rule set from the terminal. Every command works
// offline: it loads the bundle into an in-process engine, so probing policy
// never touches a running agent.
//
// # Commands
//
// validate: Check a bundle file before rollout
//
//	snaplock validate \
//		--bundle ./bundle.yaml \
//		--strict  # Warnings fail too
//
// explain: Show how the policy decides one request
//
//	snaplock explain \
//		--bundle ./bundle.yaml \
//		--path /etc/app.conf \
//		--user alice \
//		--action write \
//		--meta ticket=CHG-42
//
// simulate: Replay a scenario of concurrent requests
//
//	snaplock simulate \
//		--bundle ./bundle.yaml \
//		--scenario ./release-day.yaml \
//		--workers 8 \
//		--fail-on-deny
//
// rules: List the effective rules in evaluation order
//
//	snaplock rules --bundle ./bundle.yaml
//
// All commands take --format json for machine-readable output.
//
// # Scenario Files
//
// A scenario is a YAML list of lock requests; repeat expands an entry
// into that many identical requests:
//
//	description: release-day contention
//	requests:
//	  - path: /deploy/api
//	    user: alice
//	    action: write
//	    metadata:
//	      ticket: CHG-100
//	  - path: /deploy/api
//	    user: bob
//	    action: write
//	    repeat: 3
//
// # Plugin Rule Packs
//
// When the bundle names plugin directories, commands that evaluate policy
// (explain, simulate, rules) discover and register the activated rule
// packs, so the CLI sees the same effective rule set the agent would.
// Relative plugin directories resolve against the bundle file's location.
//
// # Related Packages
//
//   - pkg/config: Bundle loading and verification
//   - pkg/engine: The in-process engine commands query
package cli
