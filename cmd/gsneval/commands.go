package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"

	"gsneval/internal/catalog"
	"gsneval/internal/explore"
	"gsneval/internal/graph"
	"gsneval/internal/index"
	"gsneval/internal/perspective"
	"gsneval/internal/report"
	"gsneval/internal/scoring"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var (
	jsonOut     bool
	markdownOut bool
	datasetPath string
	metricsPath string
)

func init() {
	for _, c := range []*cobra.Command{exploreCmd, leavesCmd, scoreCmd, detailCmd, catalogCmd, nodeCmd} {
		c.Flags().BoolVar(&jsonOut, "json", false, "Print JSON instead of a table")
	}
	for _, c := range []*cobra.Command{exploreCmd, leavesCmd, scoreCmd, detailCmd, catalogCmd} {
		c.Flags().BoolVar(&markdownOut, "markdown", false, "Render tables as Markdown")
	}
	scoreCmd.Flags().StringVar(&metricsPath, "metrics-file", "", "Write Prometheus metrics of the run to this textfile")
	registerCmd.Flags().StringVar(&datasetPath, "dataset", "", "JSON array of dataset rows to attach to leaves")
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var exploreCmd = &cobra.Command{
	Use:   "explore <gsn.yaml>",
	Short: "List the leaves of a goal structure with their propagated score rates",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := graph.ParseFile(args[0])
		if err != nil {
			return err
		}
		ec, err := cfg.ExploreConfig()
		if err != nil {
			return err
		}
		reqs, err := explore.Explore(g, ec)
		if err != nil {
			return err
		}

		if jsonOut {
			return printJSON(reqs)
		}
		fmt.Println(report.LeafTable(tableMode(markdownOut), reqs))
		return nil
	},
}

var registerCmd = &cobra.Command{
	Use:   "register [gsn.yaml]",
	Short: "Register the leaves of a goal structure, or of the whole GSN directory, in the leaf registry",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var rows []index.DatasetRow
		if datasetPath != "" {
			f, err := os.Open(datasetPath)
			if err != nil {
				return fmt.Errorf("failed to open dataset: %w", err)
			}
			rows, err = index.LoadRows(f)
			f.Close()
			if err != nil {
				return err
			}
		}

		var graphs []*graph.Graph
		if len(args) == 1 {
			g, err := graph.ParseFile(args[0])
			if err != nil {
				return err
			}
			graphs = append(graphs, g)
		} else {
			cat, err := catalog.Load(ctx, cfg.GSN.Dir)
			if err != nil {
				return err
			}
			_ = cat.Each(func(_ perspective.Perspective, g *graph.Graph) error {
				graphs = append(graphs, g)
				return nil
			})
		}

		reg, err := initRegistry()
		if err != nil {
			return fmt.Errorf("failed to initialize registry: %w", err)
		}
		defer reg.Close()

		ec, err := cfg.ExploreConfig()
		if err != nil {
			return err
		}
		idx := index.NewIndexer(reg, index.Config{Explore: ec})

		for _, g := range graphs {
			summary, err := idx.IndexGraph(ctx, g, rows)
			if err != nil {
				return err
			}
			printSummary(summary)
		}
		return nil
	},
}

func printSummary(s index.Summary) {
	ids := make([]int, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		p, _ := perspective.ByID(id)
		c := s[id]
		fmt.Printf("✅ %s: %d quantitative, %d qualitative leaves registered\n", p.Name, c.Quantitative, c.Qualitative)
	}
}

var leavesCmd = &cobra.Command{
	Use:   "leaves <perspective-id>",
	Short: "List the registered GSN leaves of a perspective",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("perspective id: %w", err)
		}

		reg, err := initRegistry()
		if err != nil {
			return fmt.Errorf("failed to initialize registry: %w", err)
		}
		defer reg.Close()

		recs, err := index.NewIndexer(reg, index.DefaultConfig()).GSNData(cmd.Context(), id)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(recs)
		}
		fmt.Println(report.RecordTable(tableMode(markdownOut), recs))
		return nil
	},
}

func loadRun(path string) (*scoring.Run, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return scoring.DecodeRun(f)
}

var scoreCmd = &cobra.Command{
	Use:   "score <run.json>",
	Short: "Aggregate the raw results of a run into perspective scores",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		run, err := loadRun(args[0])
		if err != nil {
			return err
		}

		reg, err := initRegistry()
		if err != nil {
			return fmt.Errorf("failed to initialize registry: %w", err)
		}
		defer reg.Close()

		promReg := prometheus.NewRegistry()
		metrics, err := scoring.NewMetrics(promReg)
		if err != nil {
			return err
		}
		rep, err := scoring.NewAggregator(reg, scoring.WithMetrics(metrics)).Aggregate(cmd.Context(), run)
		if metricsPath != "" {
			if werr := prometheus.WriteToTextfile(metricsPath, promReg); werr != nil {
				return fmt.Errorf("failed to write metrics: %w", werr)
			}
		}
		if err != nil {
			return err
		}
		if jsonOut {
			return rep.WriteJSON(os.Stdout)
		}

		fmt.Printf("Run %s\n", rep.RunID)
		fmt.Println(rep.Table(tableMode(markdownOut)))
		for _, w := range rep.Warnings {
			fmt.Printf("⚠️  %s\n", w)
		}
		return nil
	},
}

var detailCmd = &cobra.Command{
	Use:   "detail <run.json>",
	Short: "Show every sample and answer of a run with its leaf and score",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		run, err := loadRun(args[0])
		if err != nil {
			return err
		}

		reg, err := initRegistry()
		if err != nil {
			return fmt.Errorf("failed to initialize registry: %w", err)
		}
		defer reg.Close()

		detail, err := scoring.NewAggregator(reg).Detail(cmd.Context(), run)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(detail)
		}

		for _, name := range perspective.Names() {
			items, ok := detail[name]
			if !ok {
				continue
			}
			fmt.Printf("## %s\n", name)
			t := report.NewTable(tableMode(markdownOut))
			t.Header("Type", "Leaf", "Rate", "Question", "Answer", "Score")
			for _, it := range items {
				score := "-"
				if it.Score != nil {
					score = strconv.FormatFloat(*it.Score, 'g', -1, 64)
				}
				t.Row(it.Type, it.LeafID, strconv.FormatFloat(it.ScoreRate, 'g', 6, 64), it.Question, it.Answer, score)
			}
			t.MaxWidth(4, 50)
			t.MaxWidth(5, 50)
			fmt.Println(t.String())
		}
		return nil
	},
}

var catalogCmd = &cobra.Command{
	Use:   "catalog [dir]",
	Short: "Load the perspective documents and summarize their leaves",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := cfg.GSN.Dir
		if len(args) == 1 {
			dir = args[0]
		}
		cat, err := catalog.Load(cmd.Context(), dir)
		if err != nil {
			return err
		}
		ec, err := cfg.ExploreConfig()
		if err != nil {
			return err
		}

		type entry struct {
			ID          int     `json:"perspective_id"`
			Perspective string  `json:"perspective"`
			File        string  `json:"file"`
			Leaves      int     `json:"leaves"`
			Paths       int     `json:"paths"`
			TotalRate   float64 `json:"total_score_rate"`
		}
		var entries []entry
		err = cat.Each(func(p perspective.Perspective, g *graph.Graph) error {
			reqs, err := explore.Explore(g, ec)
			if err != nil {
				return fmt.Errorf("%s: %w", catalog.FileNames[p.ID-1], err)
			}
			entries = append(entries, entry{
				ID:          p.ID,
				Perspective: p.Name,
				File:        catalog.FileNames[p.ID-1],
				Leaves:      len(g.Leaves()),
				Paths:       len(reqs),
				TotalRate:   explore.TotalScoreRate(reqs),
			})
			return nil
		})
		if err != nil {
			return err
		}

		if jsonOut {
			return printJSON(entries)
		}
		t := report.NewTable(tableMode(markdownOut))
		t.Header("#", "Perspective", "File", "Leaves", "Paths", "Total rate")
		for _, e := range entries {
			t.Row(e.ID, e.Perspective, e.File, e.Leaves, e.Paths, strconv.FormatFloat(e.TotalRate, 'f', 4, 64))
		}
		t.AlignRight(1, 4, 5, 6)
		fmt.Println(t.String())
		return nil
	},
}

var nodeCmd = &cobra.Command{
	Use:   "node <gsn-id>",
	Short: "Show a node of the perspective documents by its GSN ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := catalog.Load(cmd.Context(), cfg.GSN.Dir)
		if err != nil {
			return err
		}
		n, err := cat.Node(args[0])
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(n)
		}

		fmt.Printf("ID:           %s\n", n.ID)
		fmt.Printf("Kind:         %s\n", n.Kind)
		if n.Definition != "" {
			fmt.Printf("Definition:   %s\n", n.Definition)
		}
		if n.Question != "" {
			fmt.Printf("Question:     %s\n", n.Question)
		}
		for i, child := range n.SupportedBy {
			if n.HasScoreRate && i < len(n.ScoreRate) {
				fmt.Printf("Supported by: %s (%g)\n", child, n.ScoreRate[i])
			} else {
				fmt.Printf("Supported by: %s\n", child)
			}
		}
		return nil
	},
}
