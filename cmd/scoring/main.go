package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/tensorplex-labs/brainscore/internal/assembly"
	"github.com/tensorplex-labs/brainscore/internal/benchmark"
	"github.com/tensorplex-labs/brainscore/internal/catalog"
	"github.com/tensorplex-labs/brainscore/internal/config"
	"github.com/tensorplex-labs/brainscore/internal/metrics"
	"github.com/tensorplex-labs/brainscore/internal/server"
	"github.com/tensorplex-labs/brainscore/internal/store"
	"github.com/tensorplex-labs/brainscore/internal/testkit"
	"github.com/tensorplex-labs/brainscore/internal/utils/logger"
)

var (
	sourceFlag    = flag.String("source", "", "model assembly file, or catalog identifier with -catalog")
	targetFlag    = flag.String("target", "", "neural assembly file, or catalog identifier with -catalog")
	metricFlag    = flag.String("metric", "", "metric name, defaults to SCORING_METRIC")
	catalogFlag   = flag.Bool("catalog", false, "resolve -source and -target through the assembly catalog")
	syntheticFlag = flag.Bool("synthetic", false, "score a generated model against generated repeated recordings")
	ceilingFlag   = flag.Bool("ceiling", false, "normalize by the split-half consistency of the target")
	outFlag       = flag.String("out", "", "write the score record here, .zst compresses")
	remoteFlag    = flag.Bool("remote", false, "score on the server at SCORING_SERVER_URL instead of locally")
)

func main() {
	logger.Init()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load environment configuration")
	}
	name := cfg.Metric
	if *metricFlag != "" {
		name = *metricFlag
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	source, load, identifier, err := resolveInputs(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to resolve assemblies")
	}

	if *remoteFlag {
		scoreRemote(ctx, name, cfg.Options(), source, load)
		return
	}

	metric, err := metrics.New(name, cfg.Options())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build metric")
	}

	var ceiling benchmark.CeilingFunc
	if *ceilingFlag || *syntheticFlag {
		consistency := benchmark.NewSplitHalfConsistency()
		consistency.NSplits, consistency.Seed = cfg.Splits, cfg.Seed
		ceiling = consistency.Ceiling
		// repeated recordings are averaged before scoring
		metric = metrics.Characterized{
			Metric:           metric,
			Characterization: averageIfRepeated,
		}
	}

	b := benchmark.New(identifier, 1, metric, load, ceiling)
	score, err := b.Score(ctx, source)
	if err != nil {
		log.Fatal().Err(err).Str("metric", name).Msg("scoring failed")
	}

	report(name, score)

	if *outFlag != "" {
		if err := store.WriteScore(*outFlag, score); err != nil {
			log.Fatal().Err(err).Str("path", *outFlag).Msg("failed to write score")
		}
		log.Info().Str("path", *outFlag).Msg("score written")
	}
}

func scoreRemote(ctx context.Context, name string, opts metrics.Options, source *assembly.Assembly, load benchmark.Loader) {
	target, err := load(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load target")
	}
	client, err := server.NewClientFromEnv(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init scoring client")
	}
	defer client.Close()

	rec, err := client.Score(ctx, server.ScoreRequest{
		Metric:  name,
		Source:  store.NewAssemblyRecord(source),
		Target:  store.NewAssemblyRecord(target),
		Options: &opts,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("remote scoring failed")
	}
	fmt.Printf("metric: %s\n", name)
	fmt.Printf("score:  %.4f±%.4f\n", rec.Center, rec.Error)
	fmt.Printf("aggregation: %v\n", rec.Aggregation.Values)
}

func resolveInputs(ctx context.Context) (*assembly.Assembly, benchmark.Loader, string, error) {
	switch {
	case *syntheticFlag:
		return syntheticInputs()
	case *sourceFlag == "" || *targetFlag == "":
		return nil, nil, "", fmt.Errorf("-source and -target are required unless -synthetic is set")
	case *catalogFlag:
		client, err := catalog.NewClientFromEnv(ctx)
		if err != nil {
			return nil, nil, "", err
		}
		source, err := client.Load(ctx, *sourceFlag)
		if err != nil {
			return nil, nil, "", err
		}
		return source, client.Loader(*targetFlag), *targetFlag, nil
	default:
		source, err := store.ReadAssembly(*sourceFlag)
		if err != nil {
			return nil, nil, "", err
		}
		path := *targetFlag
		load := func(context.Context) (*assembly.Assembly, error) { return store.ReadAssembly(path) }
		return source, load, path, nil
	}
}

func syntheticInputs() (*assembly.Assembly, benchmark.Loader, string, error) {
	cfg := testkit.DefaultAssemblyConfig()
	cfg.Presentations, cfg.Repetitions = 100, 4
	target, err := testkit.RandomAssembly(cfg)
	if err != nil {
		return nil, nil, "", err
	}
	averaged, err := target.GroupMean(assembly.CoordImageID)
	if err != nil {
		return nil, nil, "", err
	}
	source, err := testkit.LinearMix(averaged, 40, 0.3, cfg.Seed+1, "model", "IT")
	if err != nil {
		return nil, nil, "", err
	}
	load := func(context.Context) (*assembly.Assembly, error) { return target, nil }
	return source, load, "synthetic.it-repeated", nil
}

func averageIfRepeated(a *assembly.Assembly) (*assembly.Assembly, error) {
	if _, ok := a.Coord(assembly.CoordRepetition); !ok {
		return a, nil
	}
	return metrics.AverageRepetitions(assembly.CoordImageID)(a)
}

func report(name string, score *metrics.Score) {
	unceiled := score
	if raw, ok := score.Attrs[metrics.AttrRaw]; ok {
		unceiled = raw
	}
	fmt.Printf("metric: %s\n", name)
	fmt.Printf("score:  %s\n", score)
	if ceiling, ok := score.Attrs[metrics.AttrCeiling]; ok {
		fmt.Printf("raw:    %s\n", unceiled)
		fmt.Printf("ceiling: %s\n", ceiling)
	}
	fmt.Printf("aggregation: %v\n", score.Aggregation.Values())
	fmt.Println()

	if err := metrics.PlotSplitScoresTerminal(os.Stdout, unceiled, "Unceiled split scores"); err != nil {
		log.Warn().Err(err).Msg("failed to plot split scores")
	}
}
