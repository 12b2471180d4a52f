package kmeans

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/vecrag/distance"
)

// ErrTooFewVectors is returned when the training set holds fewer points than
// requested clusters.
var ErrTooFewVectors = errors.New("kmeans: fewer training vectors than clusters")

// assignChunk is the number of rows one assignment task handles.
const assignChunk = 1024

// Config controls training.
type Config struct {
	K       int
	MaxIter int
	// Workers bounds assignment parallelism. Zero means GOMAXPROCS.
	Workers int
	Rand    *rand.Rand
}

// Train learns cfg.K centroids from the flattened row-major vectors.
// It returns the flattened centroids (K * dim).
func Train(ctx context.Context, vectors []float32, dim int, cfg Config) ([]float32, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("kmeans: invalid dimension %d", dim)
	}
	n := len(vectors) / dim
	k := cfg.K
	if k <= 0 {
		return nil, fmt.Errorf("kmeans: invalid cluster count %d", k)
	}
	if n < k {
		return nil, fmt.Errorf("%w: %d < %d", ErrTooFewVectors, n, k)
	}
	maxIter := cfg.MaxIter
	if maxIter <= 0 {
		maxIter = 25
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(1)) //nolint:gosec // deterministic seeding
	}

	centroids := make([]float32, k*dim)
	perm := rng.Perm(n)
	for i := 0; i < k; i++ {
		copy(centroids[i*dim:(i+1)*dim], vectors[perm[i]*dim:(perm[i]+1)*dim])
	}

	assignments := make([]int32, n)
	for i := range assignments {
		assignments[i] = -1
	}
	sums := make([]float32, k*dim)
	counts := make([]int, k)

	for iter := 0; iter < maxIter; iter++ {
		changed, err := assign(ctx, vectors, dim, centroids, assignments, cfg.Workers)
		if err != nil {
			return nil, err
		}
		if !changed {
			break
		}

		clear(sums)
		clear(counts)
		for i := 0; i < n; i++ {
			c := int(assignments[i])
			vec := vectors[i*dim : (i+1)*dim]
			row := sums[c*dim : (c+1)*dim]
			for d := range row {
				row[d] += vec[d]
			}
			counts[c]++
		}

		for j := 0; j < k; j++ {
			center := centroids[j*dim : (j+1)*dim]
			if counts[j] == 0 {
				// Empty cell: reseed from a random training point.
				idx := rng.Intn(n)
				copy(center, vectors[idx*dim:(idx+1)*dim])
				continue
			}
			copy(center, sums[j*dim:(j+1)*dim])
			distance.NormalizeL2InPlace(center)
		}
	}

	return centroids, nil
}

// assign updates assignments in place and reports whether any changed.
func assign(ctx context.Context, vectors []float32, dim int, centroids []float32, assignments []int32, workers int) (bool, error) {
	n := len(assignments)
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	changed := make([]bool, (n+assignChunk-1)/assignChunk)
	for c := range changed {
		lo := c * assignChunk
		hi := min(lo+assignChunk, n)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for i := lo; i < hi; i++ {
				best := int32(Nearest(vectors[i*dim:(i+1)*dim], centroids, dim)) //nolint:gosec // bounded by K
				if assignments[i] != best {
					assignments[i] = best
					changed[c] = true
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return false, err
	}

	for _, c := range changed {
		if c {
			return true, nil
		}
	}
	return false, nil
}

// Nearest returns the centroid with the highest inner product with vec.
func Nearest(vec []float32, centroids []float32, dim int) int {
	k := len(centroids) / dim
	best := -1
	bestScore := float32(math.Inf(-1))
	for j := 0; j < k; j++ {
		s := distance.Dot(vec, centroids[j*dim:(j+1)*dim])
		if s > bestScore {
			bestScore = s
			best = j
		}
	}
	return best
}

// NearestN returns the indices of the n centroids with the highest inner
// product with query, best first.
func NearestN(query []float32, centroids []float32, dim int, n int) []int {
	k := len(centroids) / dim
	if n > k {
		n = k
	}
	if n <= 0 {
		return nil
	}

	type scored struct {
		id    int
		score float32
	}
	all := make([]scored, k)
	for j := 0; j < k; j++ {
		all[j] = scored{id: j, score: distance.Dot(query, centroids[j*dim:(j+1)*dim])}
	}
	sort.Slice(all, func(a, b int) bool {
		if all[a].score != all[b].score {
			return all[a].score > all[b].score
		}
		return all[a].id < all[b].id
	})

	out := make([]int, n)
	for i := range out {
		out[i] = all[i].id
	}
	return out
}
