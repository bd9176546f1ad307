package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"framepipe/internal/daemonrun"
	"framepipe/internal/queue"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "run <video>",
		Short: "Submit a video and process it in this process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd.Context(), func(rt *daemonrun.Runtime) error {
				job, _, err := rt.Daemon.Submit(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				final, err := rt.Daemon.RunJob(cmd.Context(), job.ID)
				if err != nil {
					return err
				}
				if err := printJob(cmd, final, jsonOut); err != nil {
					return err
				}
				if final.Status == queue.StatusFailed {
					return fmt.Errorf("job %s failed: %s", final.ShortID(), final.ErrorMessage)
				}
				return nil
			})
		},
	}
	addJSONFlag(cmd, &jsonOut, "Output the final job as JSON")
	return cmd
}

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "submit <video>...",
		Short: "Queue videos for the worker",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd.Context(), func(rt *daemonrun.Runtime) error {
				out := cmd.OutOrStdout()
				for _, ref := range args {
					job, created, err := rt.Daemon.Submit(cmd.Context(), ref)
					if err != nil {
						return err
					}
					if created {
						fmt.Fprintf(out, "Queued %s (%s, run %d)\n", job.InputRef, job.ShortID(), job.Run)
					} else {
						fmt.Fprintf(out, "Already queued %s (%s, %s)\n", job.InputRef, job.ShortID(), job.Status)
					}
				}
				return nil
			})
		},
	}
}

func newWorkerCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the worker pool until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.loggerFor()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, logger)
		},
	}
}
