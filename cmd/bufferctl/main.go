// Command bufferctl is a small operator CLI for a running buffer fabric:
// it polls a telemetry server's snapshot endpoint and, with -drain, asks for
// confirmation of a drain. It only reports occupancy; it sends no drain
// request to the server.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/relaydata/bufferfabric/pkg/fabric"
	"github.com/relaydata/bufferfabric/pkg/util"
)

func main() {
	var (
		addr = flag.String("addr", "http://127.0.0.1:8090", "telemetry server base address")
		drain = flag.Bool("drain", false, "request confirmation to drain and report final occupancy")
		help  = flag.Bool("help", false, "show help")
	)
	flag.Parse()

	if *help {
		fmt.Println("bufferctl - inspect a running buffer fabric")
		fmt.Println("\nUsage:")
		fmt.Println("  bufferctl -addr http://127.0.0.1:8090")
		fmt.Println("  bufferctl -addr http://127.0.0.1:8090 -drain")
		return
	}

	snap, err := fetchSnapshot(*addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to reach telemetry server: %v\n", err)
		os.Exit(1)
	}
	printSnapshot(snap)

	if *drain {
		confirmed, err := util.PromptYesNo(fmt.Sprintf("drain all %d registered streams", len(snap.Streams)))
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		if !confirmed {
			fmt.Println("aborted")
			return
		}
		fmt.Println("drain must be issued from the host process; bufferctl only reports occupancy")
	}
}

func fetchSnapshot(addr string) (fabric.Snapshot, error) {
	client := http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(addr + "/api/buffers")
	if err != nil {
		return fabric.Snapshot{}, err
	}
	defer resp.Body.Close()

	var snap fabric.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return fabric.Snapshot{}, fmt.Errorf("decoding snapshot: %w", err)
	}
	return snap, nil
}

func printSnapshot(snap fabric.Snapshot) {
	fmt.Printf("allocated: %d / %d bytes\n", snap.AllocatedBytes, snap.MaxBytes)
	for _, s := range snap.Streams {
		fmt.Printf("  %-40s size=%-4d used=%-10d cap=%d\n", s.Descriptor.String(), s.Size, s.UsedBytes, s.CapacityBytes)
	}
}
