// Command cull runs automated outlier rejection over pulsar observation
// cubes: it loads each cube, iterates the enabled rejection strategies
// against a reference template, zero-weights the cells they flag, and
// records the run in a history database.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/banshee-data/pulsar.cull/internal/archive"
	"github.com/banshee-data/pulsar.cull/internal/cull"
	"github.com/banshee-data/pulsar.cull/internal/culldb"
	"github.com/banshee-data/pulsar.cull/internal/monitoring"
	"github.com/banshee-data/pulsar.cull/internal/report"
	"github.com/banshee-data/pulsar.cull/internal/version"
)

func main() {
	obs := flag.String("obs", "", "Observation cube file, or a directory of .json cubes")
	templatePath := flag.String("template", "", "Reference template profile (.json extension optional)")
	criterionName := flag.String("criterion", "chauvenet", "Rejection criterion: 'chauvenet' or 'dmad'")
	iterations := flag.Int("iterations", 10, "Maximum rejection passes per strategy")

	doFourier := flag.Bool("fourier", true, "Run Fourier-domain shape rejection")
	doRMS := flag.Bool("rms", true, "Run off-pulse RMS rejection")
	doBinShift := flag.Bool("binshift", true, "Run bin-shift rejection")

	configPath := flag.String("config", "", "Tuning JSON file (optional)")
	dbPath := flag.String("db", "cull_runs.db", "Run history database (empty disables recording)")
	plotsDir := flag.String("plots", "", "Directory for diagnostic plots (empty disables)")
	skipFrontends := flag.String("skip-frontend", "ROACH", "Comma-separated receiver names to skip")
	save := flag.Bool("save", true, "Write updated weights back to the cube files")
	verbose := flag.Bool("v", false, "Verbose per-cell logging")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("cull", version.String())
		return
	}

	if *obs == "" || *templatePath == "" {
		flag.Usage()
		log.Fatal("both -obs and -template are required")
	}
	monitoring.Verbose = *verbose

	var tuning *cull.Tuning
	if *configPath != "" {
		var err error
		tuning, err = cull.LoadTuning(*configPath)
		if err != nil {
			log.Fatalf("failed to load tuning: %v", err)
		}
	}

	criterion, err := tuning.Criterion(*criterionName)
	if err != nil {
		log.Fatalf("invalid criterion: %v", err)
	}

	template, err := archive.LoadTemplate(*templatePath)
	if err != nil {
		log.Fatalf("failed to load template: %v", err)
	}

	var store *culldb.Store
	if *dbPath != "" {
		store, err = culldb.Open(*dbPath)
		if err != nil {
			log.Fatalf("failed to open run store: %v", err)
		}
		defer store.Close()
	}

	files, err := observationFiles(*obs)
	if err != nil {
		log.Fatalf("failed to list observations: %v", err)
	}
	if len(files) == 0 {
		log.Fatalf("no observation cubes found at %s", *obs)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	job := culljob{
		template:  template,
		tuning:    tuning,
		criterion: criterion,
		store:     store,
		plotsDir:  *plotsDir,
		skip:      splitNames(*skipFrontends),
		save:      *save,
		request: cull.RejectRequest{
			Criterion:  criterion,
			Iterations: *iterations,
			Fourier:    *doFourier,
			RMS:        *doRMS,
			BinShift:   *doBinShift,
		},
	}

	var failures, processed int
	for _, file := range files {
		if ctx.Err() != nil {
			log.Printf("interrupted after %d of %d observations", processed, len(files))
			break
		}
		processed++
		if err := job.process(ctx, file); err != nil {
			log.Printf("failed to cull %s: %v", file, err)
			failures++
		}
	}
	if failures > 0 {
		os.Exit(1)
	}
}

type culljob struct {
	template  []float64
	tuning    *cull.Tuning
	criterion cull.Criterion
	store     *culldb.Store
	plotsDir  string
	skip      []string
	save      bool
	request   cull.RejectRequest
}

func (j *culljob) process(ctx context.Context, path string) error {
	ar, err := archive.Open(path)
	if err != nil {
		return err
	}

	for _, frontend := range j.skip {
		if strings.EqualFold(ar.Frontend(), frontend) {
			log.Printf("skipping %s: %s receiver", path, ar.Frontend())
			return nil
		}
	}

	opts := cull.Options{Tuning: j.tuning}
	if j.plotsDir != "" {
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		renderer, rErr := report.NewFileRenderer(filepath.Join(j.plotsDir, name))
		if rErr != nil {
			return rErr
		}
		opts.Renderer = renderer
	}

	c, err := cull.NewFromArchive(ar, j.template, opts)
	if err != nil {
		return err
	}
	if c.Status() == cull.QualityLowSN {
		log.Printf("skipping %s: signal/noise %.1f below floor", path, c.SN())
		return j.record(ctx, path, c, cull.RejectSummary{}, time.Now(), time.Now())
	}

	started := time.Now()
	summary, err := c.Reject(ctx, j.request)
	if err != nil {
		return err
	}
	finished := time.Now()

	log.Printf("culled %s: %d cells rejected in %s", path, summary.TotalRejected, finished.Sub(started).Round(time.Millisecond))

	if j.save && summary.TotalRejected > 0 {
		if err := ar.Save(); err != nil {
			return err
		}
	}
	return j.record(ctx, path, c, summary, started, finished)
}

func (j *culljob) record(ctx context.Context, path string, c *cull.Culler, summary cull.RejectSummary, started, finished time.Time) error {
	if j.store == nil {
		return nil
	}

	var iterations int
	passes := make([]culldb.StrategyPass, 0, len(summary.Passes))
	for _, p := range summary.Passes {
		if p.Iterations > iterations {
			iterations = p.Iterations
		}
		passes = append(passes, culldb.StrategyPass{
			Strategy:   p.Strategy,
			Iterations: p.Iterations,
			Rejected:   p.Rejected,
			Converged:  p.Converged,
		})
	}

	_, err := j.store.RecordRun(ctx, culldb.Run{
		Observation:   path,
		Frontend:      c.Frontend(),
		SN:            c.SN(),
		Status:        c.Status().String(),
		Criterion:     j.criterion.String(),
		Iterations:    iterations,
		TotalRejected: summary.TotalRejected,
		StartedAt:     started,
		FinishedAt:    finished,
	}, passes)
	return err
}

// observationFiles expands a path into the cube files to process: the
// path itself when it is a file, or every .json file directly inside it
// when it is a directory.
func observationFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		files = append(files, filepath.Join(path, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func splitNames(s string) []string {
	var names []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			names = append(names, part)
		}
	}
	return names
}
