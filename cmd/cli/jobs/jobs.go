package jobs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/crucial707/dbkeeper/cmd/cli/config"
	"github.com/crucial707/dbkeeper/cmd/cli/output"
	"github.com/crucial707/dbkeeper/internal/models"
)

// job is the API's job representation plus the armed fire time.
type job struct {
	models.Job
	NextRun time.Time `json:"next_run"`
}

// InitJobs registers the jobs command group on the root command.
func InitJobs(rootCmd *cobra.Command) {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Manage backup jobs",
	}

	jobsCmd.AddCommand(
		listJobsCmd(),
		createJobCmd(),
		updateJobCmd(),
		deleteJobCmd(),
		runJobCmd(),
	)

	rootCmd.AddCommand(jobsCmd)
}

func listJobsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List backup jobs",
		Run: func(cmd *cobra.Command, args []string) {
			var out struct {
				Items []job `json:"items"`
				Total int   `json:"total"`
			}
			if err := apiRequest("GET", "/jobs", nil, &out); err != nil {
				fmt.Println(err)
				return
			}

			if asJSON {
				b, _ := json.MarshalIndent(out.Items, "", "  ")
				fmt.Println(string(b))
				return
			}

			rows := make([][]interface{}, 0, len(out.Items))
			for _, j := range out.Items {
				next := ""
				if !j.NextRun.IsZero() {
					next = j.NextRun.Format("2006-01-02 15:04")
				}
				rows = append(rows, []interface{}{
					j.ID, j.Title, j.Cadence,
					fmt.Sprintf("%02d:%02d", j.Hour, j.Minute),
					j.Storage, j.Format, next,
				})
			}
			output.RenderTable([]string{"ID", "Title", "Cadence", "Time", "Storage", "Format", "Next Run"}, rows)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output raw JSON")
	return cmd
}

func createJobCmd() *cobra.Command {
	var in jobFlags

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a backup job",
		RunE: func(cmd *cobra.Command, args []string) error {
			var created job
			if err := apiRequest("POST", "/jobs", in.payload(), &created); err != nil {
				return err
			}
			fmt.Printf("Created job %s, next run %s\n", created.ID, created.NextRun.Format(time.RFC3339))
			return nil
		},
	}

	in.register(cmd)
	return cmd
}

func updateJobCmd() *cobra.Command {
	var in jobFlags

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a backup job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var updated job
			if err := apiRequest("PUT", "/jobs/"+args[0], in.payload(), &updated); err != nil {
				return err
			}
			fmt.Printf("Updated job %s, next run %s\n", updated.ID, updated.NextRun.Format(time.RFC3339))
			return nil
		},
	}

	in.register(cmd)
	return cmd
}

func deleteJobCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a backup job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := apiRequest("DELETE", "/jobs/"+args[0], nil, nil); err != nil {
				return err
			}
			fmt.Println("Job deleted.")
			return nil
		},
	}
}

func runJobCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <id>",
		Short: "Run a backup job immediately",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("job id is required")
			}
			if err := apiRequest("POST", "/jobs/"+args[0]+"/run", nil, nil); err != nil {
				return err
			}
			fmt.Println("Backup started.")
			return nil
		},
	}
}

// jobFlags holds the shared create/update flag set.
type jobFlags struct {
	title    string
	cadence  string
	hour     int
	minute   int
	weekday  int
	monthDay int
	storage  string
	format   string
	email    string
}

func (f *jobFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "Job title")
	cmd.Flags().StringVar(&f.cadence, "cadence", "daily", "Cadence: daily, weekly or monthly")
	cmd.Flags().IntVar(&f.hour, "hour", 0, "Hour of day (0-23)")
	cmd.Flags().IntVar(&f.minute, "minute", 0, "Minute (0-59)")
	cmd.Flags().IntVar(&f.weekday, "weekday", 0, "Weekday for weekly jobs (0=Sunday)")
	cmd.Flags().IntVar(&f.monthDay, "month-day", 1, "Day of month for monthly jobs (1-31)")
	cmd.Flags().StringVar(&f.storage, "storage", "server", "Storage: server or email")
	cmd.Flags().StringVar(&f.format, "format", "zip", "Format: zip, tar or none")
	cmd.Flags().StringVar(&f.email, "email", "", "Recipient for email storage")
}

func (f *jobFlags) payload() map[string]interface{} {
	return map[string]interface{}{
		"title":     f.title,
		"cadence":   f.cadence,
		"hour":      f.hour,
		"minute":    f.minute,
		"weekday":   f.weekday,
		"month_day": f.monthDay,
		"storage":   f.storage,
		"format":    f.format,
		"email":     f.email,
	}
}

func apiRequest(method, path string, payload interface{}, out interface{}) error {
	token, err := config.LoadToken()
	if err != nil {
		return fmt.Errorf("please login first")
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, config.APIURL()+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(raw))
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return err
		}
	}

	return nil
}
