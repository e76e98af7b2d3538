// Command bufferfabric-demo demonstrates the buffer fabric end to end: a
// handful of producer goroutines feeding records into several streams while
// one consumer goroutine per stream drains them in batches, with a telemetry
// server exposing live occupancy.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/relaydata/bufferfabric/pkg/fabric"
	"github.com/relaydata/bufferfabric/pkg/telemetryserver"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a JSON config file (optional)")
		telemetry  = flag.String("telemetry-addr", "", "address to serve telemetry on, e.g. :8090 (optional)")
		streams    = flag.Int("streams", 4, "number of concurrent producer streams")
		duration   = flag.Duration("duration", 10*time.Second, "how long to run the demo")
		help       = flag.Bool("help", false, "show help")
	)
	flag.Parse()

	if *help {
		fmt.Println("bufferfabric-demo - exercises the buffer fabric with synthetic traffic")
		fmt.Println("\nUsage:")
		fmt.Println("  bufferfabric-demo -streams 8 -duration 30s")
		fmt.Println("  bufferfabric-demo -telemetry-addr :8090")
		return
	}

	cfg, err := fabric.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	cfg.InitLogging(os.Stderr)

	mgr, err := fabric.NewBufferManager(cfg.ToManagerConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start buffer fabric: %v\n", err)
		os.Exit(1)
	}
	defer mgr.Close(context.Background())

	telemetryAddr := *telemetry
	if telemetryAddr == "" {
		telemetryAddr = cfg.MonitorAddr
	}
	if telemetryAddr != "" {
		srv := telemetryserver.New(mgr, telemetryserver.Config{Addr: telemetryAddr})
		go func() {
			if err := srv.ListenAndServe(); err != nil {
				fmt.Fprintf(os.Stderr, "telemetry server stopped: %v\n", err)
			}
		}()
		fmt.Printf("telemetry available at http://%s/api/buffers\n", telemetryAddr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < *streams; i++ {
		sd := fabric.StreamDescriptor{Namespace: "demo", Name: fmt.Sprintf("stream-%d", i)}
		wg.Add(2)
		go produce(ctx, &wg, mgr.Enqueuer, sd)
		go consume(ctx, &wg, mgr.Dequeuer, sd)
	}
	wg.Wait()

	snap := mgr.Snapshot()
	fmt.Printf("final occupancy: %d/%d bytes across %d streams\n", snap.AllocatedBytes, snap.MaxBytes, len(snap.Streams))
}

func produce(ctx context.Context, wg *sync.WaitGroup, enq *fabric.Enqueuer, sd fabric.StreamDescriptor) {
	defer wg.Done()
	for {
		payload := make([]byte, 64+rand.Intn(4096))
		msg := fabric.Message{Kind: fabric.RecordKind, Payload: payload}
		if err := enq.AddRecord(ctx, sd, msg); err != nil {
			return
		}
	}
}

func consume(ctx context.Context, wg *sync.WaitGroup, deq *fabric.Dequeuer, sd fabric.StreamDescriptor) {
	defer wg.Done()
	const batchTarget = 256 * 1024
	for {
		batch, err := deq.Take(ctx, sd, batchTarget)
		if err != nil {
			return
		}
		for {
			_, ok, err := batch.Next()
			if err != nil || !ok {
				break
			}
		}
		batch.Close()
	}
}
