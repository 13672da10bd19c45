package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentmem/memcore-go/pkg/core"
	"github.com/agentmem/memcore-go/pkg/keys"
	"github.com/agentmem/memcore-go/pkg/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Replay a scripted write/retrieve/evict scenario",
		Long:  "Run a scripted scenario against an in-process store: writes across namespaces, a duplicate write, retrieval, a capacity overflow, and the resulting audit log. State is discarded on exit.",
		Run:   runDemo,
	}

	cmd.Flags().StringP("provider", "p", "list", "Store backend: list, kv, or sqlite")

	RootCmd.AddCommand(cmd)
}

func runDemo(cmd *cobra.Command, args []string) {
	provider, _ := cmd.Flags().GetString("provider")

	cfg := core.DefaultConfig()
	cfg.Store.Provider = provider
	cfg.Store.Capacities = map[string]int{"working": 3}

	client, err := core.New(cfg)
	if err != nil {
		exitErr("demo", err)
	}
	defer client.Close()

	ctx := cmd.Context()

	fmt.Printf("== writes (%s backend)\n", provider)
	id, err := client.Write(ctx, store.NamespaceSemantic,
		keys.SemanticKey("user", "alice", "language"),
		"Alice prefers Go",
		store.WithImportance(0.8))
	if err != nil {
		exitErr("write", err)
	}
	fmt.Printf("semantic fact stored, id=%d\n", id)

	dupID, err := client.Write(ctx, store.NamespaceSemantic,
		keys.SemanticKey("user", "alice", "language"),
		"Alice prefers Go",
		store.WithImportance(0.8))
	if err != nil {
		exitErr("write", err)
	}
	fmt.Printf("duplicate write returned existing id=%d\n", dupID)

	_, err = client.Write(ctx, store.NamespaceEpisodic,
		keys.EpisodicKey("team", "standup", "2026-08-30", "alice,bob"),
		"Discussed the rollout plan for the memory layer",
		store.WithSource(store.SourceUser))
	if err != nil {
		exitErr("write", err)
	}

	fmt.Println("\n== retrieval")
	results, err := client.Retrieve(ctx, "alice", 5)
	if err != nil {
		exitErr("retrieve", err)
	}
	for _, e := range results {
		fmt.Printf("[%s] %s = %q (accessed %d times)\n",
			e.Namespace, e.Key, e.Value, e.Metrics.AccessCount)
	}

	fmt.Println("\n== capacity overflow (working capped at 3)")
	for i := 0; i < 4; i++ {
		_, err := client.Write(ctx, store.NamespaceWorking,
			keys.WorkingKey("demo", fmt.Sprintf("%d-%d", i*5, i*5+4)),
			fmt.Sprintf("rolling summary of turns %d-%d", i*5, i*5+4))
		if err != nil {
			exitErr("write", err)
		}
	}
	fmt.Printf("working entries after overflow: %d\n",
		len(client.AllEntries(store.NamespaceWorking)))

	fmt.Println("\n== audit log")
	for _, rec := range client.Logs(0) {
		details, _ := json.Marshal(rec.Details)
		fmt.Printf("%s %-8s ns=%-9s key=%q %s\n",
			rec.Timestamp.Format("15:04:05.000"), rec.Operation, rec.Namespace,
			rec.EntryKey, details)
	}
}
