package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"time"

	"github.com/spf13/cobra"
)

const (
	serverStartTimeout = 10 * time.Second
	serverPollInterval = 200 * time.Millisecond
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// apiBase returns --server, or the address from the config
func apiBase() (string, error) {
	if serverURL != "" {
		return serverURL, nil
	}
	config, err := loadConfig()
	if err != nil {
		return "", err
	}
	serverURL = fmt.Sprintf("http://%s:%d", config.Server.Host, config.Server.Port)
	return serverURL, nil
}

// isServerRunning checks if the server is responding to health checks
func isServerRunning(base string) bool {
	client := &http.Client{Timeout: 1 * time.Second}
	resp, err := client.Get(base + "/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// startServerBackground starts "ytpipe serve" as a detached process
func startServerBackground() error {
	execPath, err := os.Executable()
	if err != nil {
		return err
	}

	args := []string{"serve"}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	cmd := exec.Command(execPath, args...)
	setSysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	// Don't wait for the process - let it run in background
	go cmd.Wait()
	return nil
}

// ensureServer returns the API base URL, starting a local server first
// unless --no-auto-start is given
func ensureServer() (string, error) {
	base, err := apiBase()
	if err != nil {
		return "", err
	}
	if noAutoStart || isServerRunning(base) {
		return base, nil
	}

	fmt.Fprintln(os.Stderr, "Server not running, starting...")
	if err := startServerBackground(); err != nil {
		return "", err
	}

	deadline := time.Now().Add(serverStartTimeout)
	for time.Now().Before(deadline) {
		if isServerRunning(base) {
			fmt.Fprintln(os.Stderr, "Server started successfully")
			return base, nil
		}
		time.Sleep(serverPollInterval)
	}
	return "", fmt.Errorf("server did not start within %v", serverStartTimeout)
}

// callAPI sends a request and decodes the JSON response into out. Non-2xx
// responses are returned as errors carrying the server's message.
func callAPI(method, path string, payload, out interface{}) error {
	base, err := ensureServer()
	if err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, base+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server: %s", apiErr.Error)
		}
		return fmt.Errorf("server returned %s", resp.Status)
	}
	if out != nil {
		return json.Unmarshal(data, out)
	}
	return nil
}

type statusView struct {
	State   string `json:"state"`
	Active  bool   `json:"active"`
	Current *struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	} `json:"current"`
	LastResult *struct {
		ID         string `json:"id"`
		URL        string `json:"url"`
		State      string `json:"state"`
		OutputPath string `json:"output_path"`
		Error      string `json:"error"`
	} `json:"last_result"`
	Processes []struct {
		Tool       string  `json:"tool"`
		Pid        int     `json:"pid"`
		RSSBytes   uint64  `json:"rss_bytes"`
		CPUPercent float64 `json:"cpu_percent"`
	} `json:"processes"`
}

var submitCmd = &cobra.Command{
	Use:   "submit [url]",
	Short: "Start a download on the server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			State   string `json:"state"`
			Request struct {
				ID string `json:"id"`
			} `json:"request"`
		}
		if err := callAPI(http.MethodPost, "/api/v1/download", map[string]string{"url": args[0]}, &resp); err != nil {
			return err
		}
		fmt.Printf("Download started\n")
		fmt.Printf("ID:    %s\n", resp.Request.ID)
		fmt.Printf("State: %s\n", resp.State)
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the download running on the server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			State string `json:"state"`
		}
		if err := callAPI(http.MethodPost, "/api/v1/stop", nil, &resp); err != nil {
			return err
		}
		fmt.Printf("State: %s\n", resp.State)
		return nil
	},
}

var toggleCmd = &cobra.Command{
	Use:   "toggle [url]",
	Short: "Stop the running download, or start url when idle",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload := map[string]string{}
		if len(args) == 1 {
			payload["url"] = args[0]
		}
		var resp struct {
			Started bool   `json:"started"`
			State   string `json:"state"`
		}
		if err := callAPI(http.MethodPost, "/api/v1/toggle", payload, &resp); err != nil {
			return err
		}
		if resp.Started {
			fmt.Println("Download started")
		} else {
			fmt.Println("Download stopping")
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the server's download session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var st statusView
		if err := callAPI(http.MethodGet, "/api/v1/status", nil, &st); err != nil {
			return err
		}
		printStatus(os.Stdout, &st)
		return nil
	},
}

func printStatus(w io.Writer, st *statusView) {
	fmt.Fprintf(w, "State: %s\n", st.State)
	if st.Current != nil {
		fmt.Fprintf(w, "  ID:  %s\n", st.Current.ID)
		fmt.Fprintf(w, "  URL: %s\n", st.Current.URL)
	}
	for _, p := range st.Processes {
		fmt.Fprintf(w, "  %-8s pid %-7d %8s  %5.1f%% cpu\n", p.Tool, p.Pid, humanBytes(int64(p.RSSBytes)), p.CPUPercent)
	}
	if r := st.LastResult; r != nil {
		fmt.Fprintf(w, "Last: %s %s\n", r.State, truncate(r.URL, 60))
		if r.OutputPath != "" {
			fmt.Fprintf(w, "  File:  %s\n", r.OutputPath)
		}
		if r.Error != "" {
			fmt.Fprintf(w, "  Error: %s\n", r.Error)
		}
	}
}

func init() {
	rootCmd.AddCommand(submitCmd, stopCmd, toggleCmd, statusCmd)
}
