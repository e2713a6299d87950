// Package audit provides a durable trail of lock and policy activity for
// compliance review and incident forensics.
//
// # Overview
//
// This package records every lock decision (granted, denied, released,
// expired, revoked) and every policy change (rules, plugins, permissions)
// with the acting user and the deciding rule. The Recorder subscribes to
// the event bus, so call sites never log audit entries by hand.
//
// # Backends
//
// FileLogger writes JSON lines with size-based rotation for operators
// tailing the trail. DBLogger persists to SQLite and backs search, stats,
// and retention cleanup. MultiLogger fans out to several backends at once.
//
// # Usage Example
//
// Wire the recorder to an engine:
//
//	dbLogger, err := audit.NewDBLogger(db)
//	if err != nil {
//		return err
//	}
//	recorder := audit.NewRecorder(dbLogger, "db")
//	subID, err := eng.Subscribe(events.TypeWildcard, recorder.Handler())
//
// Search the trail:
//
//	denied := audit.EventStatusDenied
//	results, err := dbLogger.Search(ctx, audit.SearchFilter{
//		StartTime: &since,
//		Path:      "/secrets",
//		Status:    &denied,
//		Limit:     50,
//	})
//
// # Retention
//
// Default: 90 days active retention, enforced by Cleanup.
// Export: JSON, CSV, NDJSON formats for external analysis.
//
// # Related Packages
//
//   - pkg/events: the bus the Recorder subscribes to
//   - pkg/engine: publishes the events this package records
package audit
