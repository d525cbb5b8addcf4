package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gsneval/internal/graph"
	"gsneval/internal/logging"
	"gsneval/internal/perspective"

	"golang.org/x/sync/errgroup"
)

// FileNames are the goal-structure documents of the ten perspectives, indexed
// by perspective ID minus one.
var FileNames = [perspective.Count]string{
	"01_Control_of_Toxic_Output_GSN.yaml",
	"02_Prevention_of_Misinformation_Disinformation_and_Manipulation_GSN.yaml",
	"03_Fairness_and_Inclusion_GSN.yaml",
	"04_Addressing_High-risk_Use_and_Unintended_Use_GSN.yaml",
	"05_Privacy_Protection_GSN.yaml",
	"06_Ensuring_Security_GSN.yaml",
	"07_Explainability_GSN.yaml",
	"08_Robustness_GSN.yaml",
	"09_Data_Quality_GSN.yaml",
	"10_Verifiability_GSN.yaml",
}

// Catalog holds the parsed goal structures of a document directory.
type Catalog struct {
	Dir    string
	graphs map[int]*graph.Graph
}

// Load parses every perspective document found in dir concurrently.
// Missing documents are skipped; any parse error aborts the load.
func Load(ctx context.Context, dir string) (*Catalog, error) {
	logger := logging.New("catalog")

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("gsn directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("gsn directory %s is not a directory", dir)
	}

	c := &Catalog{Dir: dir, graphs: make(map[int]*graph.Graph)}
	var mu sync.Mutex

	eg, ctx := errgroup.WithContext(ctx)
	for i, name := range FileNames {
		name := name
		pid := i + 1
		path := filepath.Join(dir, name)
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			g, err := graph.ParseFile(path)
			if errors.Is(err, fs.ErrNotExist) {
				logger.Warn("gsn document missing", "perspective", pid, "file", name)
				return nil
			}
			if err != nil {
				return fmt.Errorf("perspective %d: %w", pid, err)
			}

			mu.Lock()
			c.graphs[pid] = g
			mu.Unlock()
			logger.Debug("loaded gsn document", "perspective", pid, "nodes", len(g.Nodes))
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	logger.Info("catalog loaded", "dir", dir, "documents", len(c.graphs))
	return c, nil
}

// Graph returns the goal structure of a perspective.
func (c *Catalog) Graph(perspectiveID int) (*graph.Graph, bool) {
	g, ok := c.graphs[perspectiveID]
	return g, ok
}

// Perspectives returns the IDs of the loaded documents in ascending order.
func (c *Catalog) Perspectives() []int {
	ids := make([]int, 0, len(c.graphs))
	for id := range c.graphs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Node returns a node by its GSN ID, looking it up in the document of the
// perspective named by the ID prefix.
func (c *Catalog) Node(id string) (*graph.Node, error) {
	p, err := perspective.FromLeafID(id)
	if err != nil {
		return nil, err
	}
	g, ok := c.graphs[p.ID]
	if !ok {
		return nil, fmt.Errorf("no document loaded for perspective %d (%s)", p.ID, p.Name)
	}
	n, ok := g.Node(id)
	if !ok {
		return nil, fmt.Errorf("node %q not found in %s", id, FileNames[p.ID-1])
	}
	return n, nil
}

// Each calls fn for every loaded document in perspective order.
func (c *Catalog) Each(fn func(p perspective.Perspective, g *graph.Graph) error) error {
	for _, id := range c.Perspectives() {
		p, _ := perspective.ByID(id)
		if err := fn(p, c.graphs[id]); err != nil {
			return err
		}
	}
	return nil
}

