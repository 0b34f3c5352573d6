package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/kartoza/brb-engine/internal/brb"
	"github.com/kartoza/brb-engine/internal/config"
	"github.com/kartoza/brb-engine/internal/ruletable"
	"github.com/kartoza/brb-engine/internal/server"
	"github.com/kartoza/brb-engine/internal/vocab"
)

var version = "dev"

func main() {
	// Parse command-line flags
	serve := flag.Bool("serve", false, "Run the HTTP inference service")
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "", "Path to the rule-base database (sqlite)")
	vocabPath := flag.String("vocab", "", "Vocabulary YAML file (one-shot mode)")
	rulesPath := flag.String("rules", "", "Rule table CSV file (one-shot mode)")
	evidencePath := flag.String("evidence", "", "Evidence record JSON file (one-shot mode)")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("BRB Engine v%s\n", version)
		os.Exit(0)
	}

	if !*serve {
		if *vocabPath == "" || *rulesPath == "" || *evidencePath == "" {
			log.Fatalf("One-shot mode needs -vocab, -rules and -evidence (or use -serve)")
		}
		if err := runOnce(*vocabPath, *rulesPath, *evidencePath); err != nil {
			log.Fatalf("Inference failed: %v", err)
		}
		return
	}

	// Resolve the database path: explicit flag, otherwise the default
	// location in the user data directory.
	resolvedDBPath := *dbPath
	if resolvedDBPath == "" {
		storeDir, err := config.DataStoreDir()
		if err != nil {
			log.Fatalf("Could not determine data directory: %v", err)
		}
		resolvedDBPath = filepath.Join(storeDir, "rulebases.db")
	}

	// Find an available port (try up to 10 ports starting from the requested one)
	availablePort, err := findAvailablePort(*port, 10)
	if err != nil {
		log.Fatalf("Failed to find available port: %v", err)
	}
	if availablePort != *port {
		log.Printf("Port %d in use, using port %d instead", *port, availablePort)
	}

	cfg := config.Config{
		Port:    availablePort,
		DBPath:  resolvedDBPath,
		Version: version,
	}

	log.Printf("BRB Engine v%s starting on port %d", version, cfg.Port)
	log.Printf("Rule-base database: %s", cfg.DBPath)

	srv, err := server.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	// Graceful shutdown on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Server error: %v", err)
		}
	case sig := <-stop:
		log.Printf("Received %v signal, shutting down...", sig)
		if err := srv.Stop(); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
	}
}

// runOnce loads a rule base and one evidence record, runs inference,
// and prints the combined belief distribution.
func runOnce(vocabPath, rulesPath, evidencePath string) error {
	v, err := vocab.Load(vocabPath)
	if err != nil {
		return err
	}
	table, err := ruletable.LoadCSV(rulesPath)
	if err != nil {
		return err
	}
	model, err := v.NewModel()
	if err != nil {
		return err
	}
	if err := table.Populate(model); err != nil {
		return err
	}

	data, err := os.ReadFile(evidencePath)
	if err != nil {
		return fmt.Errorf("failed to read evidence file: %w", err)
	}
	var evidence map[string][]brb.BeliefPair
	if err := json.Unmarshal(data, &evidence); err != nil {
		return fmt.Errorf("failed to parse evidence file: %w", err)
	}
	input, err := brb.NewAttributeInput(evidence)
	if err != nil {
		return err
	}

	result, err := model.Run(input)
	if err != nil {
		return err
	}

	fmt.Printf("Rule base: %s (%d rules)\n", v.Name, model.RuleCount())
	fmt.Println("Combined belief distribution:")
	for _, consequent := range model.Consequents() {
		fmt.Printf("  %-20s %.6f\n", consequent, result.Beliefs[consequent])
	}
	fmt.Printf("Residual ignorance:    %.6f\n", result.Ignorance)

	activated := make([]brb.RuleActivation, 0, len(result.Activations))
	for _, act := range result.Activations {
		if act.MatchingDegree > 0 {
			activated = append(activated, act)
		}
	}
	sort.Slice(activated, func(i, j int) bool {
		return activated[i].Weight > activated[j].Weight
	})
	if len(activated) > 0 {
		fmt.Println("Activated rules:")
		for _, act := range activated {
			fmt.Printf("  rule %-4d alpha=%.4f weight=%.4f\n",
				act.RuleID, act.MatchingDegree, act.Weight)
		}
	} else {
		fmt.Println("No rule activated by the supplied evidence.")
	}
	return nil
}

// findAvailablePort finds an available port, starting from the given port.
// If the port is in use, it tries subsequent ports up to maxAttempts times.
func findAvailablePort(startPort int, maxAttempts int) (int, error) {
	for i := 0; i < maxAttempts; i++ {
		port := startPort + i
		addr := fmt.Sprintf(":%d", port)
		listener, err := net.Listen("tcp", addr)
		if err == nil {
			listener.Close()
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available port found after %d attempts starting from %d", maxAttempts, startPort)
}
