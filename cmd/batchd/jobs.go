package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	_const "github.com/TimeWtr/batch_scheduler/const"
	"github.com/TimeWtr/batch_scheduler/domain"
	"github.com/TimeWtr/batch_scheduler/handler"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func NewJobsRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "Inspect job definitions and status",
	}
}

func NewJobsListCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all jobs with their last status",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, closer, err := openRepository(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			defer closer.Close()

			list, err := repo.ListAll(cmd.Context())
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs found.")
				return nil
			}

			printJobs(cmd.OutOrStdout(), list, time.Now())
			return nil
		},
	}
}

func printJobs(out io.Writer, list []domain.JobDefinition, now time.Time) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tENABLED\tCRON\tLAG\tSTATUS\tUPDATED")
	for _, j := range list {
		fmt.Fprintf(tw, "%d\t%s\t%t\t%s\t%ds\t%s\t%s\n",
			j.JobID, j.JobName, j.JobEnabled, j.JobCron, j.JobRunLagCheck,
			j.JobStatus, humanize.RelTime(j.LastUpdatedTs, now, "ago", "from now"))
	}
	_ = tw.Flush()
}

func NewJobsGetCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "get <jobID>",
		Short: "Show one job as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid job id %q: %w", args[0], err)
			}

			repo, closer, err := openRepository(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			defer closer.Close()

			job, err := repo.Get(cmd.Context(), jobID)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(handler.NewJobView(job))
		},
	}
}

// seedJob 种子文件中的一条任务定义
type seedJob struct {
	JobID          int64  `json:"job_id"`
	JobName        string `json:"job_name"`
	JobEnabled     *bool  `json:"job_enabled"`
	JobCron        string `json:"job_cron"`
	JobRunLagCheck int64  `json:"job_run_lag_check"`
	JobStatus      string `json:"job_status"`
}

func (s seedJob) toDomain() (domain.JobDefinition, error) {
	status := _const.JobStatusCompleted
	if s.JobStatus != "" {
		st, err := _const.ParseJobStatus(s.JobStatus)
		if err != nil {
			return domain.JobDefinition{}, fmt.Errorf("job %d: %w", s.JobID, err)
		}
		status = st
	}

	enabled := true
	if s.JobEnabled != nil {
		enabled = *s.JobEnabled
	}

	return domain.JobDefinition{
		JobID:          s.JobID,
		JobName:        s.JobName,
		JobEnabled:     enabled,
		JobCron:        s.JobCron,
		JobRunLagCheck: s.JobRunLagCheck,
		JobStatus:      status,
		LastUpdatedTs:  time.Now(),
	}, nil
}

func readSeedFile(path string) ([]domain.JobDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var seeds []seedJob
	if err = json.Unmarshal(data, &seeds); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	res := make([]domain.JobDefinition, 0, len(seeds))
	for _, s := range seeds {
		j, err := s.toDomain()
		if err != nil {
			return nil, err
		}
		res = append(res, j)
	}
	return res, nil
}

func NewJobsSeedCmd(cfg *Config) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert or overwrite job definitions from a JSON file (development only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := readSeedFile(file)
			if err != nil {
				return err
			}

			repo, closer, err := openRepository(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			defer closer.Close()

			for _, j := range list {
				if err = repo.Save(cmd.Context(), j); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Seeded job %d (%s)\n", j.JobID, j.JobName)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "jobs.json", "JSON array of job definitions")
	return cmd
}
