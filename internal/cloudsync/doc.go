// Package cloudsync pushes the local store to the remote backend and pulls
// it back.
//
// Overview
//
// An Engine is attached to a store.Store as its change listener while a
// user is logged in. Every local mutation moves the engine to pending and
// restarts a debounce timer holding the latest snapshot. When the timer
// fires the engine runs one cycle:
//
//	store snapshot
//	     ├── backup blob   → backup_<fileID>.json   (whole snapshot, overwritten)
//	     └── collections   → tasks, events, notes…  (replace-all per collection)
//
// A failed backup upload ends the cycle in the error state. Collections are
// synced independently; a failing collection is tallied in the Report and
// does not stop the others. Remote records that already exist are skipped.
//
// States
//
//	idle ──mutation──▶ pending ──timer──▶ syncing ──▶ synced
//	                      ▲                  │  └────▶ error
//	                      └──mutation────────┘
//
// synced and error stay until the next mutation. Login and Logout reset
// to idle. Only one cycle runs at a time; a mutation during a cycle queues
// exactly one follow-up cycle carrying the newest snapshot.
//
// Hydration
//
// Login downloads the backup blob and replaces the local store when the
// backup is newer than local state (or local state was never written).
// Pull always replaces. A missing or unreadable backup is reported as "no
// data" and leaves the store untouched. Hydration goes through
// store.Hydrate, so it never triggers a push of its own.
//
// Usage
//
//	engine := cloudsync.New(st, backend, backend, cloudsync.Config{}, logger)
//	res, err := engine.Login(ctx, cloudsync.Session{Identity: "bob@example.com", Token: tok})
//	if err != nil {
//	    return err
//	}
//	if res.Applied {
//	    fmt.Println("restored", res.Entities, "entities from backup")
//	}
//	defer engine.Flush(context.Background())
package cloudsync
