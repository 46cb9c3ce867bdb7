package files

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/crucial707/dbkeeper/cmd/cli/config"
	"github.com/crucial707/dbkeeper/cmd/cli/output"
)

type fileEntry struct {
	Name      string    `json:"name"`
	JobID     string    `json:"job_id"`
	Cadence   string    `json:"cadence"`
	Timestamp string    `json:"timestamp"`
	Size      int64     `json:"size"`
	ModTime   time.Time `json:"mod_time"`
}

// InitFiles registers the files command group on the root command.
func InitFiles(rootCmd *cobra.Command) {
	filesCmd := &cobra.Command{
		Use:   "files",
		Short: "Manage stored backup archives",
	}

	filesCmd.AddCommand(
		listFilesCmd(),
		downloadFileCmd(),
		deleteFileCmd(),
	)

	rootCmd.AddCommand(filesCmd)
}

func listFilesCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored archives",
		Run: func(cmd *cobra.Command, args []string) {
			resp, err := authedRequest("GET", "/files")
			if err != nil {
				fmt.Println(err)
				return
			}
			defer resp.Body.Close()

			var out struct {
				Items []fileEntry `json:"items"`
				Total int         `json:"total"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				fmt.Println(err)
				return
			}

			if asJSON {
				b, _ := json.MarshalIndent(out.Items, "", "  ")
				fmt.Println(string(b))
				return
			}

			rows := make([][]interface{}, 0, len(out.Items))
			for _, f := range out.Items {
				rows = append(rows, []interface{}{
					f.Name, f.JobID, f.Cadence, f.Size,
					f.ModTime.Format("2006-01-02 15:04"),
				})
			}
			output.RenderTable([]string{"Name", "Job", "Cadence", "Size", "Modified"}, rows)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output raw JSON")
	return cmd
}

func downloadFileCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "download <name>",
		Short: "Download one archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			resp, err := authedRequest("GET", "/files/"+name)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			dst := outPath
			if dst == "" {
				dst = name
			}
			f, err := os.Create(dst)
			if err != nil {
				return err
			}
			defer f.Close()

			n, err := io.Copy(f, resp.Body)
			if err != nil {
				return err
			}
			fmt.Printf("Saved %s (%d bytes)\n", dst, n)
			return nil
		},
	}

	cmd.Flags().StringVar(&outPath, "out", "", "Destination path (defaults to the archive name)")
	return cmd
}

func deleteFileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete one archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := authedRequest("DELETE", "/files/"+args[0])
			if err != nil {
				return err
			}
			resp.Body.Close()
			fmt.Println("Archive deleted.")
			return nil
		},
	}
}

func authedRequest(method, path string) (*http.Response, error) {
	token, err := config.LoadToken()
	if err != nil {
		return nil, fmt.Errorf("please login first")
	}

	req, err := http.NewRequest(method, config.APIURL()+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}
	return resp, nil
}
