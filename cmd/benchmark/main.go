package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strings"
	"time"

	"visearch/config"
	"visearch/internal/adapter/embedding"
	"visearch/internal/adapter/normalize"
	"visearch/internal/adapter/pixels"
	"visearch/internal/adapter/ranker"
	"visearch/internal/adapter/refsource"
	"visearch/internal/adapter/refstore"
	"visearch/internal/domain"
	"visearch/internal/port"
)

func main() {
	dir := flag.String("dir", ".", "Project directory holding visearch.yaml")
	refs := flag.String("refs", "", "Reference source (default from config, synthetic when -n is set)")
	synthetic := flag.Int("n", 0, "Rank against n random references instead of loading a dataset")
	dim := flag.Int("dim", 1280, "Dimension of synthetic references")
	imagePath := flag.String("image", "", "Query image (embedded with the configured model)")
	topK := flag.Int("k", 10, "Number of results")
	iters := flag.Int("iters", 100, "Rank iterations")
	flag.Parse()

	cfg, err := config.LoadFromDir(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *refs != "" {
		cfg.References.Source = *refs
	}

	ctx := context.Background()

	var records []domain.ReferenceRecord
	loadStart := time.Now()
	if *synthetic > 0 {
		records = randomRecords(*synthetic, *dim)
	} else {
		records, err = loadRecords(ctx, cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Reference data not available: %v\n", err)
			os.Exit(1)
		}
	}
	loadTime := time.Since(loadStart)

	fmt.Println("VISUAL SEARCH BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("References: %d (%s)\n", len(records), describe(cfg, *synthetic))
	fmt.Printf("Dimension:  %d\n", len(records[0].Embedding))
	fmt.Printf("Load time:  %v\n", loadTime.Round(time.Millisecond))
	fmt.Println()

	query := records[rand.Intn(len(records))].Embedding
	if *imagePath != "" {
		query, err = embedImage(ctx, cfg, *imagePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Embedding error: %v\n", err)
			os.Exit(1)
		}
	}

	durations := make([]time.Duration, 0, *iters)
	var results []domain.MatchResult
	for i := 0; i < *iters; i++ {
		start := time.Now()
		results, err = ranker.Rank(query, records, *topK)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Rank error: %v\n", err)
			os.Exit(1)
		}
		durations = append(durations, time.Since(start))
	}

	fmt.Printf("Top %d matches:\n\n", len(results))
	for i, r := range results {
		fmt.Printf("%2d. [%s %.3f] %s\n", i+1, rating(r.Score), r.Score, r.Code)
	}

	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
	var total time.Duration
	for _, d := range durations {
		total += d
	}

	fmt.Println()
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("RANK LATENCY (%d iterations):\n", len(durations))
	fmt.Printf("  Mean: %v\n", (total / time.Duration(len(durations))).Round(time.Microsecond))
	fmt.Printf("  p50:  %v\n", percentile(durations, 0.50).Round(time.Microsecond))
	fmt.Printf("  p95:  %v\n", percentile(durations, 0.95).Round(time.Microsecond))
	fmt.Printf("  Max:  %v\n", durations[len(durations)-1].Round(time.Microsecond))
}

func loadRecords(ctx context.Context, cfg *config.Config) ([]domain.ReferenceRecord, error) {
	src, key, err := refsource.Open(ctx, cfg.References)
	if err != nil {
		return nil, err
	}
	set, err := refstore.New(src, key).EnsureLoaded(ctx)
	if err != nil {
		return nil, err
	}
	return set.Records(), nil
}

func embedImage(ctx context.Context, cfg *config.Config, path string) ([]float32, error) {
	buf, err := pixels.DecodeFile(path)
	if err != nil {
		return nil, err
	}
	img, err := normalize.Normalize(buf)
	if err != nil {
		return nil, err
	}

	var embedder port.Embedder
	embedder, err = embedding.Open(ctx, cfg.Model)
	if err != nil {
		return nil, err
	}
	defer embedder.Close()

	start := time.Now()
	vec, err := embedder.Embed(ctx, img)
	if err != nil {
		return nil, err
	}
	fmt.Printf("Query embedded with %s in %v\n\n", embedder.ModelName(), time.Since(start).Round(time.Millisecond))
	return vec, nil
}

func randomRecords(n, dim int) []domain.ReferenceRecord {
	rng := rand.New(rand.NewSource(1))
	records := make([]domain.ReferenceRecord, n)
	for i := range records {
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = rng.Float32()
		}
		records[i] = domain.ReferenceRecord{Code: fmt.Sprintf("SYN%06d", i), Embedding: vec}
	}
	return records
}

func describe(cfg *config.Config, synthetic int) string {
	if synthetic > 0 {
		return "synthetic"
	}
	return cfg.References.Source
}

func rating(score float64) string {
	switch {
	case score > 0.9:
		return "HIGH"
	case score > 0.75:
		return "GOOD"
	case score > 0.5:
		return "OK"
	default:
		return "LOW"
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}
