package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/engram-memory/engram/internal/recall"
	"github.com/engram-memory/engram/internal/store"
)

var (
	reviewOwner string
	reviewLimit int
)

var reviewCmd = &cobra.Command{
	Use:   "review [item-id quality]",
	Short: "List due recall items, or grade one (quality 0-5)",
	Args:  cobra.RangeArgs(0, 2),
	RunE:  runReview,
}

func init() {
	reviewCmd.Flags().StringVar(&reviewOwner, "owner", "local", "owner id")
	reviewCmd.Flags().IntVar(&reviewLimit, "limit", 20, "max items to list")
}

func runReview(cmd *cobra.Command, args []string) error {
	db, err := openDefaultDB()
	if err != nil {
		return err
	}
	defer db.Close()

	if len(args) == 2 {
		var quality int
		if _, err := fmt.Sscanf(args[1], "%d", &quality); err != nil {
			return fmt.Errorf("quality must be 0-5: %w", err)
		}
		item, err := recall.ApplyReview(db, args[0], quality, time.Now())
		if err != nil {
			return err
		}
		fmt.Printf("next review in %d day(s), ease %.2f, %d review(s)\n",
			item.IntervalDays, item.EaseFactor, item.ReviewCount)
		return nil
	}

	items, err := db.ListDueRecallItems(reviewOwner, time.Now().UnixMilli(), reviewLimit)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println("nothing due")
		return nil
	}
	for _, item := range items {
		fmt.Printf("%s  %s\n", item.ID, recallSubject(db, &item))
	}
	return nil
}

func recallSubject(db *store.DB, item *store.RecallItem) string {
	if item.ChunkID != "" {
		chunk, err := db.GetChunk(item.ChunkID)
		if err == nil && chunk != nil {
			return snippet(chunk.Content, 80)
		}
		return "chunk " + item.ChunkID
	}
	concept, err := db.GetConcept(item.ConceptID)
	if err == nil && concept != nil {
		return concept.Name
	}
	return "concept " + item.ConceptID
}

func snippet(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

func openDefaultDB() (*store.DB, error) {
	path, err := store.DefaultDBPath()
	if err != nil {
		return nil, fmt.Errorf("resolve db path: %w", err)
	}
	return store.Open(path)
}
