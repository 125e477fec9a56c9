package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/tarifflane/corpuslane/pkg/domain"
	"github.com/tarifflane/corpuslane/services/corpus/internal/evidence"
)

const usage = "usage: corpusctl bundle verify --bundle <path> | corpusctl decision verify --decision <path>"

func main() {
	if len(os.Args) < 3 {
		failSummary("", usage)
		os.Exit(2)
	}
	switch os.Args[1] + " " + os.Args[2] {
	case "bundle verify":
		runBundleVerify(os.Args[3:])
	case "decision verify":
		runDecisionVerify(os.Args[3:])
	default:
		failSummary("", usage)
		os.Exit(2)
	}
}

func runBundleVerify(args []string) {
	fs := flag.NewFlagSet("bundle verify", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	bundlePath := fs.String("bundle", "", "path to evidence bundle json")
	if err := fs.Parse(args); err != nil {
		failSummary("", err.Error())
		os.Exit(2)
	}
	if strings.TrimSpace(*bundlePath) == "" {
		failSummary("", "--bundle is required")
		os.Exit(2)
	}

	raw, err := os.ReadFile(*bundlePath)
	if err != nil {
		failSummary("", "read bundle failed: "+err.Error())
		os.Exit(1)
	}
	var bundle domain.EvidenceBundle
	if err := json.Unmarshal(raw, &bundle); err != nil {
		failSummary("", "parse bundle failed: "+err.Error())
		os.Exit(1)
	}

	result := evidence.VerifyBundle(bundle)
	printSummary(map[string]any{
		"status":         result.Status,
		"bundle_id":      bundle.BundleID,
		"request_id":     bundle.RequestID,
		"corpus_version": bundle.CorpusVersion,
		"details":        result.Details,
	})
	if result.Status != evidence.StatusVerified {
		os.Exit(1)
	}
}

func runDecisionVerify(args []string) {
	fs := flag.NewFlagSet("decision verify", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	decisionPath := fs.String("decision", "", "path to decision record json")
	if err := fs.Parse(args); err != nil {
		failSummary("", err.Error())
		os.Exit(2)
	}
	if strings.TrimSpace(*decisionPath) == "" {
		failSummary("", "--decision is required")
		os.Exit(2)
	}

	raw, err := os.ReadFile(*decisionPath)
	if err != nil {
		failSummary("", "read decision failed: "+err.Error())
		os.Exit(1)
	}
	var d domain.Decision
	if err := json.Unmarshal(raw, &d); err != nil {
		failSummary("", "parse decision failed: "+err.Error())
		os.Exit(1)
	}

	result := evidence.VerifyDecision(d)
	printSummary(map[string]any{
		"status":     result.Status,
		"request_id": d.RequestID,
		"decision":   string(d.Status),
		"details":    result.Details,
	})
	if result.Status != evidence.StatusVerified {
		os.Exit(1)
	}
}

func printSummary(v map[string]any) {
	b, _ := json.Marshal(v)
	fmt.Println(string(b))
}

func failSummary(id, reason string) {
	printSummary(map[string]any{"status": "FAIL", "id": id, "reason": reason})
}
