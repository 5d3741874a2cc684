// Package jobs provides scheduled background tasks for the dispatch service.
//
// Jobs run on github.com/robfig/cron/v3. Each courier session gets its own
// SessionValidityJob that re-checks the courier's approval on a fixed
// interval and revokes the session once approval is withdrawn.
//
// # Usage
//
//	jobManager, err := jobs.NewJobManager(authGateway, reconciler, sessionMarkers, 30*time.Second, logger)
//	if err != nil {
//		return err
//	}
//
//	stop, err := jobManager.StartValidityMonitor(courierID, func() {
//		// notify the courier and drop local state
//	})
//	if err != nil {
//		return err
//	}
//	defer stop()
//
//	// Stop every monitor on shutdown
//	defer jobManager.StopAll()
//
// # Scheduling
//
// The first check runs one interval after the monitor starts, then every
// interval. A check still running when the next one is due is skipped.
//
// # Error Handling
//
// - Gateway errors are logged and treated as "still approved"
// - On revocation the courier's feeds are closed, the session marker is
// cleared and onInvalid is called, in that order
// - Failing to clear the marker is logged and does not stop onInvalid
package jobs
