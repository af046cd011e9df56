// Package bootstrap runs finite command-line tasks with a managed lifecycle.
//
// An App applies config defaults, validates the config and initializes the
// logger. RunTask starts the registered components, runs the task with a
// context canceled on SIGINT or SIGTERM, and stops the components within a
// graceful timeout whatever the task returned.
//
//	app, err := bootstrap.NewApp(&cfg)
//	if err != nil {
//	    return err
//	}
//	_ = app.RegisterComponent(svc)
//	return app.RunTask(ctx, func(ctx context.Context) error {
//	    _, err := svc.Run(ctx, pipeline)
//	    return err
//	})
package bootstrap
