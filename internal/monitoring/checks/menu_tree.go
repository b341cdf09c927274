package checks

import (
	"context"
	"fmt"
	"time"

	"github.com/charlesng35/backoffice/internal/monitoring"
	"github.com/charlesng35/backoffice/internal/permissions"
)

// NodeSource lists the resource nodes the menu is built from.
type NodeSource interface {
	Nodes(ctx context.Context) ([]permissions.ResourceNode, error)
}

// MenuTree reports the menu down when its parent links no longer form a forest.
// A cycle would make every menu request fail.
func MenuTree(source NodeSource) monitoring.Check {
	return monitoring.NewCheck("menu_tree", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		nodes, err := source.Nodes(ctx)
		if err != nil {
			return monitoring.ResultFromError("menu_tree", err, time.Since(start))
		}
		if _, err := permissions.BuildTree(nodes); err != nil {
			return monitoring.ResultFromError("menu_tree", err, time.Since(start))
		}
		return monitoring.ProbeResult{
			Status:   monitoring.StatusUp,
			Details:  fmt.Sprintf("%d nodes", len(nodes)),
			Duration: time.Since(start),
		}
	})
}
