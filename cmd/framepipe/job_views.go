package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"framepipe/internal/queue"
)

// jobView is the JSON shape of a job for --json output.
type jobView struct {
	ID              string     `json:"id"`
	InputRef        string     `json:"input_ref"`
	Status          string     `json:"status"`
	Run             int        `json:"run"`
	Attempt         int        `json:"attempt"`
	ProgressStage   string     `json:"progress_stage,omitempty"`
	ProgressMessage string     `json:"progress_message,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	ErrorKind       string     `json:"error_kind,omitempty"`
	Units           int        `json:"units"`
	CompletedUnits  int        `json:"completed_units"`
	StoredRows      int        `json:"stored_rows"`
	Owner           string     `json:"owner,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

func newJobView(job *queue.Job) jobView {
	return jobView{
		ID:              job.ID,
		InputRef:        job.InputRef,
		Status:          string(job.Status),
		Run:             job.Run,
		Attempt:         job.Attempt,
		ProgressStage:   job.ProgressStage,
		ProgressMessage: job.ProgressMessage,
		ErrorMessage:    job.ErrorMessage,
		ErrorKind:       job.ErrorKind,
		Units:           len(job.Units),
		CompletedUnits:  len(job.CompletedUnits),
		StoredRows:      job.StoredRows,
		Owner:           job.Owner,
		CreatedAt:       job.CreatedAt,
		UpdatedAt:       job.UpdatedAt,
		CompletedAt:     job.CompletedAt,
	}
}

func renderJobTable(jobs []*queue.Job) string {
	columns := []tableColumn{
		{Title: "ID"},
		{Title: "Status"},
		{Title: "Stage"},
		{Title: "Attempt", Numeric: true},
		{Title: "Units", Numeric: true},
		{Title: "Rows", Numeric: true},
		{Title: "Input"},
		{Title: "Updated"},
	}
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			job.ShortID(),
			job.Status.Label(),
			job.ProgressStage,
			strconv.Itoa(job.Attempt),
			strconv.Itoa(len(job.Units)),
			strconv.Itoa(job.StoredRows),
			truncate(job.InputRef, 48),
			job.UpdatedAt.Local().Format(time.DateTime),
		})
	}
	return renderTable(columns, rows)
}

func renderJobDetail(job *queue.Job, colorize bool) []string {
	lines := []string{
		fmt.Sprintf("Job %s", job.ID),
		renderStatusLine("Status", jobStatusKind(job.Status), job.Status.Label(), colorize),
		fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Input:", job.InputRef),
		fmt.Sprintf("%s%-*s %d", statusIndent, statusLabelWidth, "Run:", job.Run),
		fmt.Sprintf("%s%-*s %s (attempt %d)", statusIndent, statusLabelWidth, "Stage:", job.ProgressStage, job.Attempt),
	}
	if job.ProgressMessage != "" {
		lines = append(lines, fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Progress:", job.ProgressMessage))
	}
	lines = append(lines,
		fmt.Sprintf("%s%-*s %d extracted, %d embedded, %d stored", statusIndent, statusLabelWidth, "Units:",
			len(job.Units), len(job.CompletedUnits), job.StoredRows),
	)
	if job.ErrorMessage != "" {
		lines = append(lines, renderStatusLine("Error", statusError, fmt.Sprintf("%s (%s)", job.ErrorMessage, job.ErrorKind), colorize))
	}
	if job.Owner != "" {
		lines = append(lines, fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Leased by:", job.Owner))
	}
	return lines
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if limit <= 3 || len(value) <= limit {
		return value
	}
	return "..." + value[len(value)-(limit-3):]
}
