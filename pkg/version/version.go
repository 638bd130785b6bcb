// Package version generates every version of a parametrized document, one
// per parameter combination.
package version

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coolbeans/normtree/internal/logging"
	"github.com/coolbeans/normtree/pkg/apply"
	"github.com/coolbeans/normtree/pkg/combination"
	"github.com/coolbeans/normtree/pkg/parametrization"
	"github.com/coolbeans/normtree/pkg/text"
)

// Version is the document as it holds for one combination.
type Version struct {
	Combination combination.Combination
	Tree        *text.StructuredText
}

// Label names the version after its combination.
func (v Version) Label() string {
	return v.Combination.Label()
}

// Generate applies p to tree for every generated combination, running at
// most workers applications at once. Results follow combination order. The
// first failure cancels the remaining work and is returned.
func Generate(ctx context.Context, tree *text.StructuredText, p *parametrization.Parametrization, workers int) ([]Version, error) {
	if p == nil {
		p = parametrization.Empty()
	}
	combinations, err := combination.Generate(p)
	if err != nil {
		return nil, fmt.Errorf("generating combinations: %w", err)
	}
	return ApplyAll(ctx, tree, p, combinations, workers)
}

// ApplyAll is Generate over a given list of combinations.
func ApplyAll(ctx context.Context, tree *text.StructuredText, p *parametrization.Parametrization, combinations []combination.Combination, workers int) ([]Version, error) {
	if workers < 1 {
		workers = 1
	}
	start := time.Now()
	logger := logging.LoggerFromContext(ctx)
	logger.Info("generating versions", "combinations", len(combinations), "workers", workers)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	versions := make([]Version, len(combinations))
	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	// Semaphore for limiting concurrent applications
	semaphore := make(chan struct{}, workers)

	for i, c := range combinations {
		select {
		case <-ctx.Done():
		case semaphore <- struct{}{}:
			wg.Add(1)
			go func(i int, c combination.Combination) {
				defer wg.Done()
				defer func() { <-semaphore }()

				if ctx.Err() != nil {
					return
				}
				out, err := apply.Apply(tree, p, c.Values)
				if err != nil {
					fail(fmt.Errorf("applying combination %s: %w", c.Label(), err))
					return
				}
				versions[i] = Version{Combination: c, Tree: out}
				logger.Debug("version generated", "combination", c.Label())
			}(i, c)
			continue
		}
		break
	}
	wg.Wait()

	if firstErr != nil {
		logger.Error("version generation failed", "error", firstErr)
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logging.LogDuration(ctx, "generate versions", start)
	return versions, nil
}
