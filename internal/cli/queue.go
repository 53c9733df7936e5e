package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/engram-memory/engram/internal/queue"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect the job queue",
}

var queueStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show job counts per queue and status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDefaultDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := queue.NewBroker(db, queue.DefaultPolicy()).Stats()
		if err != nil {
			return err
		}
		if len(stats) == 0 {
			fmt.Println("no jobs")
			return nil
		}

		names := make([]string, 0, len(stats))
		for name := range stats {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			byStatus := stats[name]
			fmt.Printf("%s: pending=%d running=%d done=%d dead=%d\n",
				name, byStatus["pending"], byStatus["running"], byStatus["done"], byStatus["dead"])
		}
		return nil
	},
}

var queueDeadCmd = &cobra.Command{
	Use:   "dead",
	Short: "List dead-lettered jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDefaultDB()
		if err != nil {
			return err
		}
		defer db.Close()

		jobs, err := queue.NewBroker(db, queue.DefaultPolicy()).DeadLetters(50)
		if err != nil {
			return err
		}
		if len(jobs) == 0 {
			fmt.Println("no dead letters")
			return nil
		}
		for _, j := range jobs {
			fmt.Printf("%s  %s  attempts=%d  %s\n", j.ID, j.Queue, j.Attempts, j.LastError)
		}
		return nil
	},
}

var queueRetryCmd = &cobra.Command{
	Use:   "retry <job-id>",
	Short: "Re-queue a dead-lettered job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDefaultDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := queue.NewBroker(db, queue.DefaultPolicy()).RequeueDead(args[0]); err != nil {
			return err
		}
		fmt.Println("requeued")
		return nil
	},
}

func init() {
	queueCmd.AddCommand(queueStatsCmd)
	queueCmd.AddCommand(queueDeadCmd)
	queueCmd.AddCommand(queueRetryCmd)
}
