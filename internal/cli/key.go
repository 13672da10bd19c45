package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentmem/memcore-go/pkg/keys"
	"github.com/agentmem/memcore-go/pkg/store"
)

// keySpec describes one `memcore key <kind>` subcommand: the key
// builder for the kind and the namespace the store files it under.
// Backends derive slot hashes from the namespace name, so hashing with
// the same namespace keeps the printed hashes identical to what a
// write would assign.
type keySpec struct {
	kind      string
	namespace store.Namespace
	nArgs     int
	use       string
	build     func([]string) string
}

var keySpecs = []keySpec{
	{
		kind: "semantic", namespace: store.NamespaceSemantic, nArgs: 3,
		use:   "semantic <scope> <entity> <attribute>",
		build: func(args []string) string { return keys.SemanticKey(args[0], args[1], args[2]) },
	},
	{
		kind: "episodic", namespace: store.NamespaceEpisodic, nArgs: 4,
		use:   "episodic <scope> <event-type> <time-bucket> <participants>",
		build: func(args []string) string { return keys.EpisodicKey(args[0], args[1], args[2], args[3]) },
	},
	{
		kind: "procedural", namespace: store.NamespaceSkills, nArgs: 3,
		use:   "procedural <scope> <procedure> <version>",
		build: func(args []string) string { return keys.ProceduralKey(args[0], args[1], args[2]) },
	},
	{
		kind: "working", namespace: store.NamespaceWorking, nArgs: 2,
		use:   "working <thread-id> <turn-range>",
		build: func(args []string) string { return keys.WorkingKey(args[0], args[1]) },
	},
}

func init() {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Build canonical keys and inspect their hashes",
		Long:  "Build a canonical key from its fields and print the key, the namespace it is stored under, its slot hash, and (with --value) the content hash. Hashes are derived the way the store backends derive them, so they match what a write would assign.",
	}

	for _, spec := range keySpecs {
		cmd.AddCommand(keySubcommand(spec))
	}

	RootCmd.AddCommand(cmd)
}

// keySubcommand builds one `memcore key <kind>` command.
func keySubcommand(spec keySpec) *cobra.Command {
	cmd := &cobra.Command{
		Use:   spec.use,
		Short: fmt.Sprintf("Build a %s key", spec.kind),
		Args:  cobra.ExactArgs(spec.nArgs),
		Run: func(cmd *cobra.Command, args []string) {
			value, _ := cmd.Flags().GetString("value")
			metaJSON, _ := cmd.Flags().GetString("meta")

			out, err := keyOutput(spec, args, value, metaJSON)
			if err != nil {
				exitErr("parse --meta", err)
			}
			b, _ := json.MarshalIndent(out, "", "  ")
			fmt.Println(string(b))
		},
	}
	cmd.Flags().String("value", "", "Value to derive the content hash for")
	cmd.Flags().String("meta", "", "JSON metadata included in the content hash")
	return cmd
}

// keyOutput assembles the printed fields for one key inspection.
func keyOutput(spec keySpec, args []string, value, metaJSON string) (map[string]interface{}, error) {
	key := spec.build(args)
	slot := keys.SlotHash(keys.MemoryType(spec.namespace), key)

	out := map[string]interface{}{
		"kind":      spec.kind,
		"namespace": string(spec.namespace),
		"key":       key,
		"slot_hash": slot,
	}
	if value != "" {
		var metadata map[string]interface{}
		if metaJSON != "" {
			if err := json.Unmarshal([]byte(metaJSON), &metadata); err != nil {
				return nil, err
			}
		}
		out["content_hash"] = keys.ContentHash(slot, value, metadata)
	}
	return out, nil
}
