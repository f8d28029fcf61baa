// Tributary - Multi-Source Reporting Data Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tributary

/*
Package supervisor runs Tributary's long-lived services under a suture v4
tree.

	RootSupervisor ("tributary")
	├── SyncSupervisor ("sync-layer")
	│   └── DailySchedulerService (if SCHEDULER_ENABLED)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Crashed services are restarted with backoff once FailureThreshold is
exceeded, and each layer counts failures on its own. Supervisor events are
logged through sutureslog into the zerolog-backed slog handler from the
logging package.

Usage:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	tree.AddSyncService(services.NewDailySchedulerService(coordinator, cfg.Scheduler))
	return tree.Serve(ctx)

Cancelling ctx stops every service; UnstoppedServiceReport names any that
did not return within ShutdownTimeout.
*/
package supervisor
