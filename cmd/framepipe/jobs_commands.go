package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"framepipe/internal/daemonrun"
	"framepipe/internal/queue"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and maintain jobs",
	}
	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsRetryCommand(ctx))
	jobsCmd.AddCommand(newJobsClearCommand(ctx))
	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var statusFilters []string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatuses(statusFilters)
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *queue.Store) error {
				jobs, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if jsonOut {
					views := make([]jobView, 0, len(jobs))
					for _, job := range jobs {
						views = append(views, newJobView(job))
					}
					return writeJSON(cmd, views)
				}
				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(out, "No jobs")
					return nil
				}
				fmt.Fprintln(out, renderJobTable(jobs))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statusFilters, "status", "s", nil, "Filter by status (repeatable)")
	addJSONFlag(cmd, &jsonOut, "")
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *queue.Store) error {
				job, err := resolveJob(cmd.Context(), store, args[0])
				if err != nil {
					return err
				}
				return printJob(cmd, job, jsonOut)
			})
		},
	}
	addJSONFlag(cmd, &jsonOut, "")
	return cmd
}

func newJobsRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [id...]",
		Short: "Start a new run for failed jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			var ids []string
			if len(args) > 0 {
				err := ctx.withStore(func(store *queue.Store) error {
					for _, arg := range args {
						job, err := resolveJob(cmd.Context(), store, arg)
						if err != nil {
							return err
						}
						ids = append(ids, job.ID)
					}
					return nil
				})
				if err != nil {
					return err
				}
			}
			return ctx.withRuntime(cmd.Context(), func(rt *daemonrun.Runtime) error {
				count, err := rt.Daemon.RetryFailed(cmd.Context(), ids...)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if count == 0 {
					fmt.Fprintln(out, "No failed jobs to retry")
					return nil
				}
				fmt.Fprintf(out, "Retried %d failed jobs\n", count)
				return nil
			})
		},
	}
}

func newJobsClearCommand(ctx *commandContext) *cobra.Command {
	var failed bool
	var all bool
	var keepFrames bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove completed jobs (or failed/all with flags)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if failed && all {
				return fmt.Errorf("--failed and --all are mutually exclusive")
			}
			return ctx.withStore(func(store *queue.Store) error {
				var (
					removed int64
					err     error
					label   string
				)
				switch {
				case all:
					removed, err = store.Clear(cmd.Context())
					label = "jobs"
				case failed:
					removed, err = store.ClearFailed(cmd.Context())
					label = "failed jobs"
				default:
					removed, err = store.ClearCompleted(cmd.Context())
					label = "completed jobs"
				}
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Cleared %d %s\n", removed, label)
				if keepFrames || removed == 0 {
					return nil
				}
				pruned, err := ctx.pruneFrames(cmd.Context(), store)
				if err != nil {
					return err
				}
				if pruned > 0 {
					fmt.Fprintf(out, "Removed %d frame directories\n", pruned)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&keepFrames, "keep-frames", false, "Keep extracted frames of removed jobs")
	cmd.Flags().BoolVar(&failed, "failed", false, "Remove failed jobs instead of completed ones")
	cmd.Flags().BoolVar(&all, "all", false, "Remove every job")
	return cmd
}

func parseStatuses(values []string) ([]queue.Status, error) {
	var statuses []queue.Status
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			status, ok := queue.ParseStatus(part)
			if !ok {
				return nil, fmt.Errorf("unknown status %q", part)
			}
			statuses = append(statuses, status)
		}
	}
	return statuses, nil
}
