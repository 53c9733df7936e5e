package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	ingestOwner   string
	ingestContext string
	ingestTitle   string
	ingestServer  string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file|->",
	Short: "Submit a file (or stdin text) to a running engram server",
	Args:  cobra.ExactArgs(1),
	RunE:  runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestOwner, "owner", "local", "owner id for the capture")
	ingestCmd.Flags().StringVar(&ingestContext, "context", "", "workspace context id")
	ingestCmd.Flags().StringVar(&ingestTitle, "title", "", "capture title")
	ingestCmd.Flags().StringVar(&ingestServer, "server", "http://localhost:38800", "engram server address")
}

func runIngest(cmd *cobra.Command, args []string) error {
	req := map[string]any{
		"owner_id":   ingestOwner,
		"context_id": ingestContext,
		"title":      ingestTitle,
	}

	if args[0] == "-" {
		data, err := os.ReadFile("/dev/stdin")
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		req["type"] = "text"
		req["text"] = string(data)
	} else {
		path, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("stat %s: %w", args[0], err)
		}
		// The server reads the bytes itself; only the path travels.
		req["type"] = captureTypeFor(path)
		req["raw_ref"] = path
		req["filename"] = filepath.Base(path)
		req["source"] = path
		if ingestTitle == "" {
			req["title"] = filepath.Base(path)
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	resp, err := http.Post(ingestServer+"/api/captures", "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("submit capture: %w", err)
	}
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("server: %v", out["error"])
	}
	fmt.Printf("capture %v queued (job %v)\n", out["capture_id"], out["job_id"])
	return nil
}

func captureTypeFor(path string) string {
	switch filepath.Ext(path) {
	case ".pdf":
		return "pdf"
	case ".doc", ".docx":
		return "document"
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		return "image"
	default:
		return "text"
	}
}
