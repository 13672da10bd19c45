package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentmem/memcore-go/pkg/ranking"
)

// rankInput is one metric snapshot in the `rank` command's input file.
type rankInput struct {
	Label   string          `json:"label"`
	Metrics ranking.Metrics `json:"metrics"`
}

func (r *rankInput) RankMetrics() *ranking.Metrics { return &r.Metrics }

func init() {
	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Score and order metric snapshots",
		Long:  "Read a JSON array of labeled metric snapshots, score each with the composite ranker, and print ranked breakdowns. Reads stdin when --input is omitted.",
		Run:   runRank,
	}

	cmd.Flags().StringP("input", "i", "", "Path to the JSON snapshot file (default: stdin)")
	cmd.Flags().Float64("min-score", 0, "Drop results below this score")
	cmd.Flags().IntP("top", "k", 0, "Keep only the top k results (0 = all)")
	cmd.Flags().Float64("recency-weight", 0.3, "Raw recency weight")
	cmd.Flags().Float64("frequency-weight", 0.2, "Raw frequency weight")
	cmd.Flags().Float64("importance-weight", 0.3, "Raw importance weight")
	cmd.Flags().Float64("relevance-weight", 0.2, "Raw relevance weight")
	cmd.Flags().Float64("decay-days", 7, "Recency half-life in days")

	RootCmd.AddCommand(cmd)
}

func runRank(cmd *cobra.Command, args []string) {
	inputPath, _ := cmd.Flags().GetString("input")
	minScore, _ := cmd.Flags().GetFloat64("min-score")
	topK, _ := cmd.Flags().GetInt("top")

	var data []byte
	var err error
	if inputPath != "" {
		data, err = os.ReadFile(inputPath)
	} else {
		data, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		exitErr("read input", err)
	}

	var inputs []rankInput
	if err := json.Unmarshal(data, &inputs); err != nil {
		exitErr("parse input", err)
	}

	recency, _ := cmd.Flags().GetFloat64("recency-weight")
	frequency, _ := cmd.Flags().GetFloat64("frequency-weight")
	importance, _ := cmd.Flags().GetFloat64("importance-weight")
	relevance, _ := cmd.Flags().GetFloat64("relevance-weight")
	decayDays, _ := cmd.Flags().GetFloat64("decay-days")
	ranker := ranking.NewRanker(recency, frequency, importance, relevance, decayDays)

	rankables := make([]ranking.Rankable, len(inputs))
	for i := range inputs {
		rankables[i] = &inputs[i]
	}

	ranked := ranker.RankMemories(rankables, "", minScore, topK)
	for i, sm := range ranked {
		label := sm.Memory.(*rankInput).Label
		if label == "" {
			label = fmt.Sprintf("snapshot %d", i+1)
		}
		fmt.Printf("#%d %s\n%s\n\n", i+1, label, ranking.ExplainRanking(sm))
	}
}
