package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/engram-memory/engram/internal/queue"
)

var (
	dedupOwner   string
	dedupCapture string
)

var dedupCmd = &cobra.Command{
	Use:   "dedup",
	Short: "Queue a deduplication pass over stored chunks",
	RunE:  runDedup,
}

func init() {
	dedupCmd.Flags().StringVar(&dedupOwner, "owner", "local", "owner id")
	dedupCmd.Flags().StringVar(&dedupCapture, "capture", "", "limit to one capture (default: global scope)")
}

func runDedup(cmd *cobra.Command, args []string) error {
	db, err := openDefaultDB()
	if err != nil {
		return err
	}
	defer db.Close()

	payload := queue.DedupPayload{OwnerID: dedupOwner, Scope: queue.ScopeGlobal}
	if dedupCapture != "" {
		payload.Scope = queue.ScopeCapture
		payload.CaptureID = dedupCapture
	}

	broker := queue.NewBroker(db, queue.DefaultPolicy())
	jobID, err := broker.Enqueue(queue.QueueDedup, payload)
	if err != nil {
		return err
	}
	fmt.Printf("dedup job %s queued (%s scope) — a running server will pick it up\n", jobID, payload.Scope)
	return nil
}
