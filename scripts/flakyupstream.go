// Flakyupstream is a simple test HTTP server used for circuit breaker drills.
// It provides a /health endpoint that can be switched between healthy and
// failing at runtime, so a breaker guarding it can be watched tripping open
// and recovering.
//
// Usage:
//
//	go run flakyupstream.go -port 8081
//
//	curl -X POST localhost:8081/fail     # /health starts returning 503
//	curl -X POST localhost:8081/recover  # /health returns 200 again
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync/atomic"
)

func main() {
	port := flag.Int("port", 8081, "port to listen on")
	startFailing := flag.Bool("failing", false, "start in the failing state")
	flag.Parse()

	var healthy atomic.Bool
	healthy.Store(!*startFailing)

	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if healthy.Load() {
			log.Printf("health check from %s: healthy", r.RemoteAddr)
			w.WriteHeader(http.StatusOK)
			fmt.Fprintln(w, "ok")
			return
		}

		log.Printf("health check from %s: failing", r.RemoteAddr)
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintln(w, "unavailable")
	})

	mux.HandleFunc("/fail", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		healthy.Store(false)
		log.Printf("switched to failing (requested by %s)", r.RemoteAddr)
		writeState(w, false)
	})

	mux.HandleFunc("/recover", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		healthy.Store(true)
		log.Printf("switched to healthy (requested by %s)", r.RemoteAddr)
		writeState(w, true)
	})

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("flaky upstream listening on %s (healthy=%v)", addr, healthy.Load())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal(err)
	}
}

func writeState(w http.ResponseWriter, healthy bool) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"healthy": healthy})
}
