// Package main replays questions from a CSV file against the catalog assistant API.
// Each row is sent to POST /v1/questions the way the chat front end would send it.
//
// CSV columns: user_id, question (header row optional).
//
// Usage:
//
//	go run scripts/ask_csv.go -file questions.csv -api-url http://localhost:8080 -api-key YOUR_API_KEY
package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the CLI configuration
type Config struct {
	FilePath   string
	APIBaseURL string
	APIKey     string
	DelayMS    int
	DryRun     bool
	Verbose    bool
}

// QuestionRequest matches the AskRequest body
type QuestionRequest struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username,omitempty"`
	Question string `json:"question"`
}

// QuestionResponse holds the fields of the answer the tool reports on
type QuestionResponse struct {
	Text          string   `json:"text"`
	ResponseType  string   `json:"response_type"`
	Sources       []Source `json:"sources"`
	ResponseID    *string  `json:"response_id"`
	ExecutionTime float64  `json:"execution_time"`
}

// Source is the product part of a cited chunk
type Source struct {
	ProductName string `json:"product_name"`
}

// Stats tracks replay statistics
type Stats struct {
	TotalRows  int
	Skipped    int
	Answered   int
	Failed     int
	ByResponse map[string]int
}

func main() {
	cfg := parseFlags()

	if cfg.FilePath == "" || (cfg.APIKey == "" && !cfg.DryRun) {
		fmt.Println("Error: -file and -api-key are required")
		flag.Usage()
		os.Exit(1)
	}

	fmt.Printf("Catalog assistant question replay\n")
	fmt.Printf("   API URL: %s\n", cfg.APIBaseURL)
	fmt.Printf("   CSV File: %s\n", cfg.FilePath)
	if cfg.DryRun {
		fmt.Printf("   DRY RUN MODE - no API calls will be made\n")
	}
	fmt.Println()

	stats, err := processCSV(cfg)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("Summary")
	fmt.Printf("   Total rows:  %d\n", stats.TotalRows)
	fmt.Printf("   Skipped:     %d\n", stats.Skipped)
	fmt.Printf("   Answered:    %d\n", stats.Answered)
	fmt.Printf("   Failed:      %d\n", stats.Failed)
	for kind, n := range stats.ByResponse {
		fmt.Printf("   %-12s %d\n", kind+":", n)
	}

	if stats.Failed > 0 {
		os.Exit(1)
	}
}

func parseFlags() Config {
	cfg := Config{}

	flag.StringVar(&cfg.FilePath, "file", "", "Path to CSV file (required)")
	flag.StringVar(&cfg.APIBaseURL, "api-url", "http://localhost:8080", "API base URL")
	flag.StringVar(&cfg.APIKey, "api-key", "", "API key for authentication (required)")
	flag.IntVar(&cfg.DelayMS, "delay", 500, "Delay in milliseconds between questions")
	flag.BoolVar(&cfg.DryRun, "dry-run", false, "Parse CSV but don't call the API")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "Print every answer")

	flag.Parse()

	return cfg
}

func processCSV(cfg Config) (Stats, error) {
	stats := Stats{ByResponse: map[string]int{}}

	file, err := os.Open(cfg.FilePath)
	if err != nil {
		return stats, fmt.Errorf("open csv: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	client := &http.Client{Timeout: 90 * time.Second}

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return stats, fmt.Errorf("read csv: %w", err)
		}

		stats.TotalRows++

		req, ok := parseRow(row)
		if !ok {
			stats.Skipped++

			continue
		}

		if cfg.DryRun {
			fmt.Printf("   [dry-run] user=%d %q\n", req.UserID, req.Question)
			stats.Answered++

			continue
		}

		resp, err := ask(client, cfg, req)
		if err != nil {
			fmt.Printf("   FAIL row %d: %v\n", stats.TotalRows, err)
			stats.Failed++
		} else {
			stats.Answered++
			stats.ByResponse[resp.ResponseType]++

			if cfg.Verbose {
				names := make([]string, 0, len(resp.Sources))
				for _, src := range resp.Sources {
					names = append(names, src.ProductName)
				}

				fmt.Printf("   Q: %s\n   A (%s, %.2fs, %s): %s\n\n",
					req.Question, resp.ResponseType, resp.ExecutionTime, strings.Join(names, ", "), resp.Text)
			}
		}

		time.Sleep(time.Duration(cfg.DelayMS) * time.Millisecond)
	}

	return stats, nil
}

// parseRow skips the header and blank questions.
func parseRow(row []string) (QuestionRequest, bool) {
	if len(row) < 2 {
		return QuestionRequest{}, false
	}

	userID, err := strconv.ParseInt(strings.TrimSpace(row[0]), 10, 64)
	if err != nil || userID <= 0 {
		return QuestionRequest{}, false
	}

	question := strings.TrimSpace(row[1])
	if question == "" {
		return QuestionRequest{}, false
	}

	return QuestionRequest{UserID: userID, Question: question}, true
}

func ask(client *http.Client, cfg Config, q QuestionRequest) (*QuestionResponse, error) {
	body, err := json.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, strings.TrimRight(cfg.APIBaseURL, "/")+"/v1/questions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))
	}

	var out QuestionResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &out, nil
}
