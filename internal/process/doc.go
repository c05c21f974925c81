// Package process supervises the tracking-service subprocess.
//
// Features:
//   - Start/stop with SIGTERM to the process group, then SIGKILL
//   - Optional restart on failure with a delay and an attempt cap
//   - Line-by-line capture of stdout/stderr into the logger
//   - Status reporting for the API
//
// Example usage:
//
//	mgr := process.NewManager(process.FromLaunchConfig(cfg.Tracking.Launch))
//	mgr.SetLogger(logger)
//
//	if err := mgr.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer mgr.Stop()
package process
