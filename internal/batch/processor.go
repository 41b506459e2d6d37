package batch

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"rotsprite/internal/backend"
	"rotsprite/internal/cache"
	"rotsprite/internal/convert"
	"rotsprite/internal/engine"
	"rotsprite/internal/logging"
	"rotsprite/internal/patch"
	"rotsprite/internal/pixelmap"
	"rotsprite/internal/rotsprite"
	"rotsprite/internal/spriteinfo"
)

// Config holds all shared resources for a batch run.
type Config struct {
	Engine    *engine.Engine
	Backend   backend.Kind
	OutputDir string
	Format    convert.Format
	Workers   int
	Logger    *slog.Logger

	// ProgressInterval is how often progress is logged; zero uses 2s.
	ProgressInterval time.Duration
}

// Job is one rotation to export.
type Job struct {
	Name   string
	Bucket int
	Flip   bool
}

// Angle returns the canonical angle of the job's bucket.
func (j Job) Angle() float64 { return pixelmap.BucketAngle(j.Bucket) }

// Path returns the output path of the job relative to the output directory.
func (j Job) Path(f convert.Format) string {
	name := fmt.Sprintf("%03d", int(j.Angle()))
	if j.Flip {
		name += "_flip"
	}
	return filepath.Join(j.Name, name+"."+f.String())
}

// Result holds the outcome of processing one job.
type Result struct {
	Job
	Image      string
	Width      int
	Height     int
	LeftOffset int
	TopOffset  int
	Success    bool
	Error      string
}

// Jobs expands names by angles. Angles that fall in the same bucket are
// exported once.
func Jobs(names []string, angles []float64, flip bool) []Job {
	var jobs []Job
	for _, name := range names {
		seen := make(map[int]bool, len(angles))
		for _, a := range angles {
			b := pixelmap.Bucket(a)
			if seen[b] {
				continue
			}
			seen[b] = true
			jobs = append(jobs, Job{Name: name, Bucket: b})
			if flip {
				jobs = append(jobs, Job{Name: name, Bucket: b, Flip: true})
			}
		}
	}
	return jobs
}

// Run processes all jobs using a worker pool. Jobs not started before ctx
// is cancelled are reported as failed.
func Run(ctx context.Context, cfg Config, jobs []Job) []Result {
	log := cfg.Logger
	if log == nil {
		log = logging.Nop()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	interval := cfg.ProgressInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	total := len(jobs)
	results := make([]Result, total)
	var processed atomic.Int64

	start := time.Now()

	// Progress reporter
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				p := processed.Load()
				if p > 0 {
					elapsed := time.Since(start).Seconds()
					log.Info("export progress",
						slog.Int64("done", p),
						slog.Int("total", total),
						slog.Float64("per_sec", float64(p)/elapsed))
				}
			}
		}
	}()

	// Worker pool
	jobChan := make(chan int, workers*2)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobChan {
				if err := ctx.Err(); err != nil {
					results[idx] = Result{Job: jobs[idx], Error: err.Error()}
				} else {
					results[idx] = processJob(cfg, jobs[idx])
				}
				processed.Add(1)
			}
		}()
	}

	// Send work
	for i := range jobs {
		jobChan <- i
	}
	close(jobChan)

	wg.Wait()
	close(done)

	log.Info("export finished",
		slog.Int("total", total),
		slog.Duration("elapsed", time.Since(start)))
	return results
}

func processJob(cfg Config, job Job) Result {
	res := Result{Job: job, Image: job.Path(cfg.Format)}

	img, err := resolve(cfg, job)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Width, res.Height = img.Size()
	res.LeftOffset, res.TopOffset = img.Offsets()

	var buf bytes.Buffer
	if err := encode(&buf, img, cfg.Engine.Palette(), cfg.Format); err != nil {
		res.Error = err.Error()
		return res
	}

	outPath := filepath.Join(cfg.OutputDir, res.Image)
	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		res.Error = err.Error()
		return res
	}
	if err := os.WriteFile(outPath, buf.Bytes(), 0644); err != nil {
		res.Error = err.Error()
		return res
	}

	res.Success = true
	return res
}

// resolve rotates job.Name, using the sprite pivots when the name follows
// the NNNNF[R] sprite naming scheme.
func resolve(cfg Config, job Job) (patch.Image, error) {
	e := cfg.Engine
	o, err := e.Archives().ResolveName(job.Name)
	if err != nil {
		return nil, err
	}
	vars := rotsprite.Vars{Angle: job.Angle(), Flip: job.Flip}
	if len(job.Name) >= 5 {
		if frame, err := spriteinfo.FrameIndex(job.Name[4:5]); err == nil {
			img, _, err := e.ResolveRotatedForSprite(cfg.Backend, o, cache.TagCache, job.Name[:4], frame, vars)
			return img, err
		}
	}
	return e.ResolveRotated(cfg.Backend, o, cache.TagCache, vars)
}

func encode(buf *bytes.Buffer, img patch.Image, pal *convert.Palette, f convert.Format) error {
	switch im := img.(type) {
	case *patch.Patch:
		return convert.EncodePatch(buf, im, pal, f)
	case *backend.Texture:
		return convert.EncodeExternal(buf, im.Image, f)
	default:
		return fmt.Errorf("batch: cannot encode %T", img)
	}
}
