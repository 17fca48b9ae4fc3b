package analytics

import (
	"errors"
	"sync"
	"testing"
)

// failingSink errors on every write.
type failingSink struct{}

func (failingSink) Write(Sample) error { return errors.New("sink down") }
func (failingSink) Flush() error       { return nil }

func TestPipeline_DropsWhenFull(t *testing.T) {
	p := NewPipeline(2, 0.01)

	for i := 0; i < 5; i++ {
		p.Feed(Sample{Sequence: i})
	}

	fed, dropped, _, _ := p.Stats()
	if fed != 5 || dropped != 3 {
		t.Errorf("fed=%d dropped=%d, want 5 and 3", fed, dropped)
	}
	if !p.Degraded() {
		t.Error("60% drop rate should be degraded")
	}
	if got := p.DropRate(); got != 0.6 {
		t.Errorf("DropRate = %v, want 0.6", got)
	}

	sink := &MemorySink{}
	p.Close()
	p.Run(sink)
	if n := len(sink.Samples()); n != 2 {
		t.Errorf("written = %d, want 2", n)
	}
}

func TestPipeline_FeedAfterClose(t *testing.T) {
	p := NewPipeline(10, 0)
	p.Close()
	p.Close()
	if p.Feed(Sample{}) {
		t.Error("Feed after Close should drop")
	}
	if _, dropped, _, _ := p.Stats(); dropped != 1 {
		t.Errorf("dropped = %d, want 1", dropped)
	}
}

func TestPipeline_CountsSinkFailures(t *testing.T) {
	p := NewPipeline(10, 0)
	p.Feed(Sample{})
	p.Feed(Sample{})
	p.Close()
	p.Run(failingSink{})

	_, _, written, failed := p.Stats()
	if written != 0 || failed != 2 {
		t.Errorf("written=%d failed=%d, want 0 and 2", written, failed)
	}
}

func TestPipeline_ConcurrentFeed(t *testing.T) {
	p := NewPipeline(10000, 0)
	sink := &MemorySink{}
	done := make(chan struct{})
	go func() {
		p.Run(sink)
		close(done)
	}()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				p.Feed(Sample{Sequence: i})
			}
		}()
	}
	wg.Wait()
	p.Close()
	<-done

	fed, dropped, written, _ := p.Stats()
	if fed != 800 || written+dropped != 800 {
		t.Errorf("fed=%d written=%d dropped=%d", fed, written, dropped)
	}
}
