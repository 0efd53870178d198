// Package producer turns a Beast/AVR byte stream - from a listening TCP
// socket, a dialed-out TCP fetch, or a replayed file - into a stream of
// tracker.FrameEvent values. It owns the "external collaborator" half of
// spec.md §4.6: actually opening sockets and files is left to the standard
// library, with the framing/decoding work delegated straight back to
// lib/tracker/beast and lib/tracker/mode_s.
package producer

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"ppup1090core/lib/tracker"
	"ppup1090core/lib/tracker/beast"
	"ppup1090core/lib/tracker/mode_s"
)

// SourceType selects the wire format a Producer reads.
type SourceType int

const (
	// Avr is the newline-delimited hex-text form ("*8D4840D6...;\n").
	Avr SourceType = iota
	// Beast is the binary 0x1A-framed protocol decoded by lib/tracker/beast.
	Beast
)

func (t SourceType) String() string {
	switch t {
	case Avr:
		return "avr"
	case Beast:
		return "beast"
	default:
		return "unknown"
	}
}

// reconnectDelay is how long a fetcher waits before redialing a dropped
// connection (mirrors the uploader's own reconnect pacing).
const reconnectDelay = time.Second

// Option configures a Producer.
type Option func(*Producer)

func WithSourceTag(tag string) Option {
	return func(p *Producer) { p.tag = tag }
}

func WithType(t SourceType) Option {
	return func(p *Producer) { p.sourceType = t }
}

// WithPrometheusCounters wires the avr/beast frame counters this producer
// increments as it decodes.
func WithPrometheusCounters(avr, beast prometheus.Counter) Option {
	return func(p *Producer) { p.avrCounter, p.beastCounter = avr, beast }
}

// WithReferenceLatLon records the receiver position this source was
// configured with. The Producer only stores it; CPR decode uses the
// reference given to the tracker itself (tracker.WithReferencePosition).
func WithReferenceLatLon(lat, lon float64) Option {
	return func(p *Producer) { p.refLat, p.refLon, p.hasRef = lat, lon, true }
}

// WithListener has the Producer accept inbound TCP connections on host:port
// (spec.md §4.6's "listen" source mode).
func WithListener(host, port string) Option {
	return func(p *Producer) { p.listenAddr = net.JoinHostPort(host, port) }
}

// WithFetcher has the Producer dial out to host:port, reconnecting on
// failure (spec.md §4.6's "fetch" source mode).
func WithFetcher(host, port string) Option {
	return func(p *Producer) { p.fetchAddr = net.JoinHostPort(host, port) }
}

// WithFiles has the Producer replay one or more files instead of reading a
// socket.
func WithFiles(paths []string) Option {
	return func(p *Producer) { p.files = append(p.files, paths...) }
}

// WithBeastDelay, when true, slows replay with a fixed 1ms sleep: before
// each Beast frame whose device timestamp is later than the previous frame's
// from the same read, and after each AVR line. The sleep length does not
// depend on the gap between timestamps.
func WithBeastDelay(delay bool) Option {
	return func(p *Producer) { p.beastDelay = delay }
}

// WithIcaoCache has this Producer decode frames against an explicit,
// caller-owned ICAO whitelist instead of the one it would otherwise build
// for itself. Pass the same *mode_s.IcaoCache to every Producer feeding a
// shared Tracker so they all recognise each other's recently-seen
// addresses (spec.md §4.1), rather than each falling back to an isolated
// cache of its own.
func WithIcaoCache(cache *mode_s.IcaoCache) Option {
	return func(p *Producer) { p.icaoCache = cache }
}

// Producer reads raw bytes from exactly one configured source and emits
// decoded frames on its Listen() channel. It implements tracker.Producer.
type Producer struct {
	tag        string
	sourceType SourceType

	listenAddr string
	fetchAddr  string
	files      []string
	beastDelay bool

	refLat, refLon float64
	hasRef         bool

	icaoCache *mode_s.IcaoCache

	avrCounter   prometheus.Counter
	beastCounter prometheus.Counter

	out     chan *tracker.FrameEvent
	stop    chan struct{}
	stopped sync.Once
	wg      sync.WaitGroup

	logger zerolog.Logger
}

// New builds a Producer from the supplied options and starts it running in
// the background. Exactly one of WithListener/WithFetcher/WithFiles should
// be set; if several are, listen takes priority, then fetch, then files.
func New(opts ...Option) *Producer {
	p := &Producer{
		out:  make(chan *tracker.FrameEvent, 1024),
		stop: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.icaoCache == nil {
		// no shared whitelist was supplied: this Producer's frames still
		// need one, it just won't be shared with any sibling Producer.
		p.icaoCache = mode_s.NewIcaoCache()
	}
	p.logger = log.With().Str("section", "producer").Str("tag", p.tag).Str("type", p.sourceType.String()).Logger()

	p.wg.Add(1)
	go p.run()
	return p
}

func (p *Producer) String() string         { return fmt.Sprintf("Producer(%s/%s)", p.tag, p.sourceType) }
func (p *Producer) HealthCheckName() string { return p.String() }
func (p *Producer) HealthCheck() bool       { return true }

// Listen returns the channel frame events are published on. Closed once the
// producer has fully stopped.
func (p *Producer) Listen() <-chan *tracker.FrameEvent {
	return p.out
}

// Stop halts the producer and closes its output channel once any
// in-progress read has unblocked.
func (p *Producer) Stop() {
	p.stopped.Do(func() { close(p.stop) })
	p.wg.Wait()
}

func (p *Producer) run() {
	defer p.wg.Done()
	defer close(p.out)

	switch {
	case p.listenAddr != "":
		p.runListener()
	case p.fetchAddr != "":
		p.runFetcher()
	case len(p.files) > 0:
		p.runFiles()
	default:
		p.logger.Error().Msg("producer configured with no listen/fetch/file source")
	}
}

func (p *Producer) runListener() {
	ln, err := net.Listen("tcp", p.listenAddr)
	if err != nil {
		p.logger.Error().Err(err).Str("addr", p.listenAddr).Msg("failed to listen")
		return
	}
	go func() {
		<-p.stop
		_ = ln.Close()
	}()

	var conns sync.WaitGroup
	defer conns.Wait()
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-p.stop:
				return
			default:
				p.logger.Error().Err(err).Msg("accept failed")
				return
			}
		}
		conns.Add(1)
		go func() {
			defer conns.Done()
			p.readFrom(conn, true)
		}()
	}
}

func (p *Producer) runFetcher() {
	for {
		select {
		case <-p.stop:
			return
		default:
		}

		conn, err := net.DialTimeout("tcp", p.fetchAddr, 10*time.Second)
		if err != nil {
			p.logger.Error().Err(err).Str("addr", p.fetchAddr).Msg("dial failed, retrying")
			if !p.sleepOrStop(reconnectDelay) {
				return
			}
			continue
		}
		p.readFrom(conn, false)
		if !p.sleepOrStop(reconnectDelay) {
			return
		}
	}
}

func (p *Producer) sleepOrStop(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-p.stop:
		return false
	case <-t.C:
		return true
	}
}

func (p *Producer) runFiles() {
	for _, path := range p.files {
		select {
		case <-p.stop:
			return
		default:
		}
		f, err := os.Open(path)
		if err != nil {
			p.logger.Error().Err(err).Str("file", path).Msg("failed to open")
			continue
		}
		p.readFrom(f, false)
		_ = f.Close()
	}
}

// readFrom consumes r until EOF, stop, or an unrecoverable read error,
// decoding frames as they're isolated and publishing them to p.out.
// closeOnStop controls whether a stop signal forces the reader closed (only
// meaningful for long-lived listener connections).
func (p *Producer) readFrom(r io.ReadCloser, closeOnStop bool) {
	defer r.Close()
	if closeOnStop {
		done := make(chan struct{})
		defer close(done)
		go func() {
			select {
			case <-p.stop:
				_ = r.Close()
			case <-done:
			}
		}()
	}

	switch p.sourceType {
	case Avr:
		p.readAvr(r)
	case Beast:
		p.readBeast(r)
	}
}

func (p *Producer) readAvr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1<<16)
	for scanner.Scan() {
		select {
		case <-p.stop:
			return
		default:
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		frame, err := beast.NewFrameWithCache([]byte(line), true, p.icaoCache)
		if err != nil {
			p.logger.Debug().Err(err).Str("line", line).Msg("failed to decode AVR line")
			continue
		}
		if err := frame.Decode(); err != nil {
			continue
		}
		if p.avrCounter != nil {
			p.avrCounter.Inc()
		}
		p.publish(frame)
		if p.beastDelay {
			time.Sleep(time.Millisecond)
		}
	}
}

func (p *Producer) readBeast(r io.Reader) {
	splitter := beast.NewSplitterWithCache(p.icaoCache)
	buf := make([]byte, 4096)
	for {
		select {
		case <-p.stop:
			return
		default:
		}
		n, err := r.Read(buf)
		if n > 0 {
			frames := splitter.Feed(buf[:n])
			var lastTicks uint64
			for _, frame := range frames {
				if err := frame.Decode(); err != nil {
					continue
				}
				if p.beastCounter != nil {
					p.beastCounter.Inc()
				}
				if p.beastDelay && frame.BeastTicks() > lastTicks && lastTicks != 0 {
					time.Sleep(time.Millisecond)
				}
				lastTicks = frame.BeastTicks()
				p.publish(frame)
			}
		}
		if err != nil {
			if err != io.EOF {
				p.logger.Debug().Err(err).Msg("beast read error")
			}
			return
		}
	}
}

func (p *Producer) publish(frame *beast.Frame) {
	fe := tracker.NewFrameEvent(frame, p.tag, time.Now())
	select {
	case p.out <- fe:
	case <-p.stop:
	}
}
