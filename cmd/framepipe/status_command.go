package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"framepipe/internal/daemonrun"
	"framepipe/internal/preflight"
	"framepipe/internal/queue"
	"framepipe/internal/staging"
)

type statusView struct {
	ConfigPath string            `json:"config_path"`
	JobDBPath  string            `json:"job_db_path"`
	Jobs       map[string]int    `json:"jobs"`
	Leased     int               `json:"leased"`
	Stages     []checkView       `json:"stages"`
	Preflight  []checkView       `json:"preflight"`
	Backends   map[string]string `json:"backends"`
	Frames     framesView        `json:"frames"`
}

type framesView struct {
	Dir         string `json:"dir"`
	Directories int    `json:"directories"`
	Files       int    `json:"files"`
	Bytes       int64  `json:"bytes"`
}

type checkView struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show job counts, stage health, and preflight checks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return ctx.withRuntime(cmd.Context(), func(rt *daemonrun.Runtime) error {
				health, err := rt.Store.Health(cmd.Context())
				if err != nil {
					return err
				}
				status := rt.Daemon.Status(cmd.Context())

				view := statusView{
					ConfigPath: ctx.configPath,
					JobDBPath:  status.JobDBPath,
					Jobs:       make(map[string]int),
					Leased:     health.Leased,
					Backends: map[string]string{
						"stores":    cfg.Stores.Backend,
						"artifacts": cfg.Artifacts.Backend,
						"dispatch":  cfg.Dispatch.Backend,
						"embedding": cfg.Embedding.Provider,
					},
				}
				for _, s := range queue.AllStatuses() {
					view.Jobs[string(s)] = status.Workflow.JobStats[s]
				}
				names := make([]string, 0, len(status.Workflow.StageHealth))
				for name := range status.Workflow.StageHealth {
					names = append(names, name)
				}
				sort.Strings(names)
				for _, name := range names {
					h := status.Workflow.StageHealth[name]
					view.Stages = append(view.Stages, checkView{Name: name, Passed: h.Ready, Detail: h.Detail})
				}
				view.Frames = summarizeFrames(cfg.Paths.FramesDir)
				for _, r := range preflight.RunAll(cmd.Context(), cfg) {
					view.Preflight = append(view.Preflight, checkView{Name: r.Name, Passed: r.Passed, Detail: r.Detail})
				}

				if jsonOut {
					return writeJSON(cmd, view)
				}
				renderStatus(cmd, view)
				return nil
			})
		},
	}
	addJSONFlag(cmd, &jsonOut, "")
	return cmd
}

func renderStatus(cmd *cobra.Command, view statusView) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	for _, line := range renderSectionHeader("Jobs", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, s := range queue.AllStatuses() {
		count := view.Jobs[string(s)]
		kind := statusInfo
		if count > 0 {
			kind = jobStatusKind(s)
		}
		fmt.Fprintln(out, renderStatusLine(s.Label(), kind, fmt.Sprintf("%d", count), colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Leased", statusInfo, fmt.Sprintf("%d", view.Leased), colorize))

	fmt.Fprintln(out)
	for _, line := range renderSectionHeader("Stages", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, check := range view.Stages {
		fmt.Fprintln(out, renderCheck(check, colorize))
	}

	fmt.Fprintln(out)
	for _, line := range renderSectionHeader("Preflight", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, check := range view.Preflight {
		fmt.Fprintln(out, renderCheck(check, colorize))
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Frames: %d job directories, %d files, %s in %s\n",
		view.Frames.Directories, view.Frames.Files, humanBytes(view.Frames.Bytes), view.Frames.Dir)
	fmt.Fprintf(out, "Config: %s\n", view.ConfigPath)
	fmt.Fprintf(out, "Job DB: %s\n", view.JobDBPath)
	fmt.Fprintf(out, "Backends: stores=%s artifacts=%s dispatch=%s embedding=%s\n",
		view.Backends["stores"], view.Backends["artifacts"], view.Backends["dispatch"], view.Backends["embedding"])
}

func renderCheck(check checkView, colorize bool) string {
	kind := statusOK
	if !check.Passed {
		kind = statusError
	}
	return renderStatusLine(check.Name, kind, check.Detail, colorize)
}

func summarizeFrames(dir string) framesView {
	view := framesView{Dir: dir}
	dirs, err := staging.ListDirectories(dir)
	if err != nil {
		return view
	}
	for _, d := range dirs {
		view.Directories++
		view.Files += d.Files
		view.Bytes += d.Size
	}
	return view
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
