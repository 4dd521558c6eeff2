package internal

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"
)

// Granularity selects the time-bucket width for drift analysis.
type Granularity string

const (
	GranularityMonthly   Granularity = "monthly"
	GranularityQuarterly Granularity = "quarterly"
)

// ParseGranularity validates a bucket granularity string.
func ParseGranularity(value string) (Granularity, error) {
	switch Granularity(value) {
	case GranularityMonthly, GranularityQuarterly:
		return Granularity(value), nil
	default:
		return "", fmt.Errorf("unsupported bucket granularity %q (supported: monthly, quarterly)", value)
	}
}

// bucketKey formats a publication date into its bucket identifier.
func bucketKey(t time.Time, g Granularity) string {
	if g == GranularityQuarterly {
		quarter := (int(t.Month())-1)/3 + 1
		return fmt.Sprintf("%04d-Q%d", t.Year(), quarter)
	}
	return t.Format("2006-01")
}

// Point is one video's position in the reduced coordinate space.
type Point struct {
	VideoID     string    `json:"video_id"`
	Title       string    `json:"title"`
	Label       string    `json:"label"`
	PublishedAt time.Time `json:"published_at"`
	Bucket      string    `json:"bucket"`
	Coords      []float64 `json:"coords"`
}

// BucketStats summarizes one time bucket in the reduced space.
type BucketStats struct {
	Bucket     string    `json:"bucket"`
	Count      int       `json:"count"`
	Centroid   []float64 `json:"centroid"`
	Dispersion float64   `json:"dispersion"`
	// Defined is false when the bucket has too few points for its
	// dispersion (and adjacent drift values) to mean anything.
	Defined bool `json:"defined"`
}

// Drift is the normalized centroid displacement between consecutive buckets.
type Drift struct {
	From    string  `json:"from"`
	To      string  `json:"to"`
	Value   float64 `json:"value"`
	Defined bool    `json:"defined"`
}

// Snapshot is the disposable output of one analysis run.
type Snapshot struct {
	Labels           []string      `json:"labels"`
	Granularity      Granularity   `json:"granularity"`
	EmbeddingModel   string        `json:"embedding_model"`
	Algorithm        string        `json:"algorithm"`
	Seed             int64         `json:"seed"`
	Dims             int           `json:"dims"`
	MinBucketSize    int           `json:"min_bucket_size"`
	CorpusDispersion float64       `json:"corpus_dispersion"`
	Points           []Point       `json:"points"`
	Buckets          []BucketStats `json:"buckets"`
	Drifts           []Drift       `json:"drifts"`
	CreatedAt        time.Time     `json:"created_at"`
}

// Reducer projects an embedding matrix into a low-dimensional space.
type Reducer interface {
	Name() string
	Reduce(matrix [][]float64, dims int) ([][]float64, error)
}

// Analyzer embeds classified transcripts, reduces them, and quantifies
// topical drift across time buckets.
type Analyzer struct {
	store         *Store
	ai            *AI
	reducer       Reducer
	model         string
	dims          int
	seed          int64
	minBucketSize int
	excerptChars  int
	verbose       bool
}

// NewAnalyzer creates a manifold analyzer using the configured reduction parameters.
func NewAnalyzer(store *Store, ai *AI, config *Config) *Analyzer {
	return &Analyzer{
		store:         store,
		ai:            ai,
		reducer:       NewPCAReducer(config.ReduceSeed),
		model:         config.EmbeddingModel,
		dims:          config.ReduceDims,
		seed:          config.ReduceSeed,
		minBucketSize: config.MinBucketSize,
		excerptChars:  config.EmbedExcerptSize,
		verbose:       config.Verbose,
	}
}

// Analyze computes a ManifoldSnapshot for all classified videos matching the
// label filter, bucketed by publication date at the requested granularity.
func (a *Analyzer) Analyze(ctx context.Context, labels []string, granularity Granularity) (*Snapshot, error) {
	videos, err := a.store.ClassifiedVideos(ctx, labels, "")
	if err != nil {
		return nil, err
	}
	// Videos without a publication date have no place on the time axis.
	dated := videos[:0]
	for _, cv := range videos {
		if cv.Video.PublishedAt.IsZero() {
			if a.verbose {
				fmt.Printf("Skipping %s: no publication date\n", cv.Video.VideoID)
			}
			continue
		}
		dated = append(dated, cv)
	}
	videos = dated
	if len(videos) == 0 {
		return nil, fmt.Errorf("no classified videos match labels %v", labels)
	}

	matrix := make([][]float64, 0, len(videos))
	for _, cv := range videos {
		vector, err := a.embed(ctx, cv)
		if err != nil {
			return nil, fmt.Errorf("embedding %s: %w", cv.Video.VideoID, err)
		}
		matrix = append(matrix, vector)
	}

	coords, err := a.reducer.Reduce(matrix, a.dims)
	if err != nil {
		return nil, fmt.Errorf("reducing embeddings: %w", err)
	}

	snapshot := &Snapshot{
		Labels:         labels,
		Granularity:    granularity,
		EmbeddingModel: a.model,
		Algorithm:      a.reducer.Name(),
		Seed:           a.seed,
		Dims:           a.dims,
		MinBucketSize:  a.minBucketSize,
		CreatedAt:      time.Now().UTC(),
	}

	for i, cv := range videos {
		snapshot.Points = append(snapshot.Points, Point{
			VideoID:     cv.Video.VideoID,
			Title:       cv.Video.Title,
			Label:       cv.Label,
			PublishedAt: cv.Video.PublishedAt,
			Bucket:      bucketKey(cv.Video.PublishedAt, granularity),
			Coords:      coords[i],
		})
	}

	a.computeBuckets(snapshot)
	a.computeDrift(snapshot)
	return snapshot, nil
}

// embed returns the cached embedding for a video or computes and caches it.
func (a *Analyzer) embed(ctx context.Context, cv *ClassifiedVideo) ([]float64, error) {
	if vector, err := a.store.GetEmbedding(ctx, cv.Video.VideoID, a.model); err == nil {
		return vector, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	excerpt := cv.Transcript.Text
	if a.excerptChars > 0 && len(excerpt) > a.excerptChars {
		excerpt = excerpt[:a.excerptChars]
	}

	if a.verbose {
		fmt.Printf("Embedding %s (%d chars)\n", cv.Video.VideoID, len(excerpt))
	}

	vector, err := a.ai.Embed(ctx, a.model, excerpt)
	if err != nil {
		return nil, err
	}
	if err := a.store.PutEmbedding(ctx, cv.Video.VideoID, a.model, vector); err != nil {
		return nil, err
	}
	return vector, nil
}

// computeBuckets fills per-bucket centroid and dispersion plus the corpus
// dispersion used to normalize drift.
func (a *Analyzer) computeBuckets(s *Snapshot) {
	grouped := make(map[string][]Point)
	for _, p := range s.Points {
		grouped[p.Bucket] = append(grouped[p.Bucket], p)
	}

	keys := make([]string, 0, len(grouped))
	for k := range grouped {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		points := grouped[key]
		centroid := centroidOf(points)
		stats := BucketStats{
			Bucket:   key,
			Count:    len(points),
			Centroid: centroid,
			Defined:  len(points) >= a.minBucketSize,
		}
		if stats.Defined {
			stats.Dispersion = dispersionAround(points, centroid)
		}
		s.Buckets = append(s.Buckets, stats)
	}

	all := centroidOf(s.Points)
	s.CorpusDispersion = dispersionAround(s.Points, all)
}

// computeDrift fills the ordered inter-bucket drift sequence. A transition
// into or out of an under-populated bucket is explicitly undefined, never a
// silent zero.
func (a *Analyzer) computeDrift(s *Snapshot) {
	for i := 1; i < len(s.Buckets); i++ {
		prev, curr := s.Buckets[i-1], s.Buckets[i]
		drift := Drift{From: prev.Bucket, To: curr.Bucket}
		if prev.Defined && curr.Defined {
			drift.Defined = true
			displacement := euclidean(prev.Centroid, curr.Centroid)
			if displacement == 0 {
				drift.Value = 0
			} else {
				norm := s.CorpusDispersion
				if norm == 0 {
					norm = 1
				}
				drift.Value = displacement / norm
			}
		}
		s.Drifts = append(s.Drifts, drift)
	}
}

func centroidOf(points []Point) []float64 {
	if len(points) == 0 {
		return nil
	}
	dims := len(points[0].Coords)
	centroid := make([]float64, dims)
	for _, p := range points {
		for j, v := range p.Coords {
			centroid[j] += v
		}
	}
	for j := range centroid {
		centroid[j] /= float64(len(points))
	}
	return centroid
}

func dispersionAround(points []Point, centroid []float64) float64 {
	if len(points) == 0 {
		return 0
	}
	var sum float64
	for _, p := range points {
		sum += euclidean(p.Coords, centroid)
	}
	return sum / float64(len(points))
}

func euclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// PCAReducer projects embeddings onto their top principal components using
// power iteration with Gram-Schmidt deflation. Deterministic for a fixed seed.
type PCAReducer struct {
	seed int64
}

// NewPCAReducer creates a PCA reducer with a fixed random seed.
func NewPCAReducer(seed int64) *PCAReducer {
	return &PCAReducer{seed: seed}
}

func (r *PCAReducer) Name() string { return "pca-power-iteration" }

const (
	pcaIterations = 100
	pcaTolerance  = 1e-9
)

// Reduce mean-centers the matrix and projects it onto its top dims principal
// components. dims is clamped to what the data supports.
func (r *PCAReducer) Reduce(matrix [][]float64, dims int) ([][]float64, error) {
	n := len(matrix)
	if n == 0 {
		return nil, errors.New("empty embedding matrix")
	}
	d := len(matrix[0])
	for _, row := range matrix {
		if len(row) != d {
			return nil, fmt.Errorf("inconsistent embedding dimensionality: %d vs %d", len(row), d)
		}
	}
	if dims > d {
		dims = d
	}
	if dims > n {
		dims = n
	}

	// Mean-center a copy.
	mean := make([]float64, d)
	for _, row := range matrix {
		for j, v := range row {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= float64(n)
	}
	centered := make([][]float64, n)
	for i, row := range matrix {
		centered[i] = make([]float64, d)
		for j, v := range row {
			centered[i][j] = v - mean[j]
		}
	}

	rng := rand.New(rand.NewSource(r.seed))
	components := make([][]float64, 0, dims)
	for len(components) < dims {
		comp := r.powerIteration(centered, components, rng, d)
		if comp == nil {
			// Remaining variance is numerically zero; pad with zero
			// components so output dimensionality stays stable.
			comp = make([]float64, d)
		}
		components = append(components, comp)
	}

	coords := make([][]float64, n)
	for i, row := range centered {
		coords[i] = make([]float64, dims)
		for k, comp := range components {
			coords[i][k] = dot(row, comp)
		}
	}
	return coords, nil
}

// powerIteration finds the dominant eigenvector of the covariance of centered,
// orthogonal to the components found so far. Returns nil when the data has no
// variance left in any remaining direction.
func (r *PCAReducer) powerIteration(centered [][]float64, previous [][]float64, rng *rand.Rand, d int) []float64 {
	v := make([]float64, d)
	for j := range v {
		v[j] = rng.NormFloat64()
	}
	orthogonalize(v, previous)
	if normalize(v) == 0 {
		return nil
	}

	next := make([]float64, d)
	for iter := 0; iter < pcaIterations; iter++ {
		// next = Xᵀ(Xv) without materializing the covariance matrix.
		for j := range next {
			next[j] = 0
		}
		for _, row := range centered {
			proj := dot(row, v)
			for j, x := range row {
				next[j] += proj * x
			}
		}
		orthogonalize(next, previous)
		if normalize(next) == 0 {
			return nil
		}

		delta := 0.0
		for j := range v {
			delta += math.Abs(next[j] - v[j])
		}
		copy(v, next)
		if delta < pcaTolerance {
			break
		}
	}
	return v
}

func orthogonalize(v []float64, basis [][]float64) {
	for _, b := range basis {
		proj := dot(v, b)
		for j := range v {
			v[j] -= proj * b[j]
		}
	}
}

func normalize(v []float64) float64 {
	norm := math.Sqrt(dot(v, v))
	if norm < pcaTolerance {
		return 0
	}
	for j := range v {
		v[j] /= norm
	}
	return norm
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
