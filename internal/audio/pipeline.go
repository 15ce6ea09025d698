package audio

import (
	"context"
	"errors"
	"log"
	"sync"
)

// PipelineConfig controls frame slicing and analysis cadence.
type PipelineConfig struct {
	FrameSize    int            // samples per emitted frame
	MetricsEvery int            // analyze every Nth frame; 0 means 10
	Analyzer     AnalyzerConfig // thresholds for the periodic analysis
}

// Pipeline turns a continuous capture stream into fixed-size encoded PCM
// frames plus periodic signal metrics. It owns one Source at a time and
// runs a single consumer goroutine; frames come out in production order.
type Pipeline struct {
	cfg      PipelineConfig
	source   Source
	analyzer *Analyzer
	logger   *log.Logger

	frames  chan []byte
	metrics chan Metrics

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewPipeline creates a pipeline reading from src. The source is
// acquired on Start and released on Stop.
func NewPipeline(cfg PipelineConfig, src Source, logger *log.Logger) *Pipeline {
	if cfg.FrameSize <= 0 {
		cfg.FrameSize = 1024
	}
	if cfg.MetricsEvery <= 0 {
		cfg.MetricsEvery = 10
	}
	return &Pipeline{
		cfg:      cfg,
		source:   src,
		analyzer: NewAnalyzer(cfg.Analyzer),
		logger:   logger,
		frames:   make(chan []byte, 16),
		metrics:  make(chan Metrics, 4),
	}
}

// Frames returns the encoded PCM16 frame stream. The channel closes when
// the pipeline stops.
func (p *Pipeline) Frames() <-chan []byte { return p.frames }

// Analysis returns the periodic signal metrics stream.
func (p *Pipeline) Analysis() <-chan Metrics { return p.metrics }

// Start acquires the capture source and begins delivering frames.
// Acquisition failures surface synchronously as *DeviceError with no
// resources left half-held.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return errors.New("audio: pipeline already started")
	}

	samples, err := p.source.Start(ctx)
	if err != nil {
		var devErr *DeviceError
		if errors.As(err, &devErr) {
			return err
		}
		return &DeviceError{Op: "acquire", Err: err}
	}

	p.running = true
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	go p.run(ctx, samples, p.stop, p.done)
	return nil
}

// Stop halts frame delivery, discards any partially filled frame, and
// releases the capture source. Safe to call more than once.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	stop, done := p.stop, p.done
	p.mu.Unlock()

	err := p.source.Stop()
	close(stop)
	<-done
	return err
}

func (p *Pipeline) run(ctx context.Context, samples <-chan []float32, stop, done chan struct{}) {
	defer close(done)
	defer close(p.frames)
	defer close(p.metrics)

	framer := NewFramer(p.cfg.FrameSize)
	frameCount := 0

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case block, ok := <-samples:
			if !ok {
				return
			}
			for _, frame := range framer.Push(block) {
				frameCount++
				select {
				case p.frames <- EncodePCM16(frame):
				case <-stop:
					return
				case <-ctx.Done():
					return
				}
				if frameCount%p.cfg.MetricsEvery == 0 {
					select {
					case p.metrics <- p.analyzer.Analyze(frame):
					default:
						// Metrics are advisory; never stall the frame path.
					}
				}
			}
		}
	}
}
