package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/hive-corporation/spyglass/internal/core/domain"
)

type queryVerdict struct {
	Score     int    `json:"score"`
	RiskLevel string `json:"risk_level"`
}

func main() {
	_ = godotenv.Load() // Pega a API key do .env se existir

	targetFile := flag.String("file", "iocs.txt", "Arquivo com um indicador por linha")
	serverAddr := flag.String("server", "http://localhost:8080", "Endereço da API Spyglass")
	apiKey := flag.String("api-key", os.Getenv("API_KEY"), "API key enviada no header X-API-Key")
	flag.Parse()

	file, err := os.Open(*targetFile)
	if err != nil {
		log.Fatalf("❌ error reading file: %v", err)
	}
	defer file.Close()

	client := &http.Client{Timeout: 30 * time.Second}

	fmt.Printf("🔍 analyzing %s against Spyglass at %s...\n\n", *targetFile, *serverAddr)

	scanner := bufio.NewScanner(file)
	threatsFound := 0
	scanned := 0

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		ioc, err := domain.ExtractIOC(line)
		if err != nil {
			fmt.Printf("⚠️ [SKIPPED] %s (not an IP or domain)\n", line)
			continue
		}

		scanned++
		verdict, err := queryIOC(client, *serverAddr, *apiKey, ioc)
		if err != nil {
			log.Printf("⚠️ error checking %s: %v", ioc.Value, err)
			continue
		}

		switch verdict.RiskLevel {
		case "high", "critical":
			fmt.Printf("🚨 [%s] %s (Score: %d)\n", strings.ToUpper(verdict.RiskLevel), ioc.Value, verdict.Score)
			threatsFound++
		case "medium":
			fmt.Printf("🟡 [MEDIUM] %s (Score: %d)\n", ioc.Value, verdict.Score)
		default:
			fmt.Printf("✅ [CLEAN] %s (Score: %d)\n", ioc.Value, verdict.Score)
		}
	}

	fmt.Println("------------------------------------------------")
	if threatsFound > 0 {
		fmt.Printf("❌ FAIL: %d high-risk indicators found.\n", threatsFound)
		os.Exit(1)
	}

	fmt.Printf("✅ SUCCESS: %d indicators checked. No high-risk indicators found.\n", scanned)
	os.Exit(0)
}

func queryIOC(client *http.Client, server, apiKey string, ioc domain.IOC) (queryVerdict, error) {
	payload, err := json.Marshal(map[string]string{
		"value": ioc.Value,
		"type":  string(ioc.Type),
	})
	if err != nil {
		return queryVerdict{}, err
	}

	req, err := http.NewRequest(http.MethodPost, server+"/api/v1/iocs/query", bytes.NewReader(payload))
	if err != nil {
		return queryVerdict{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return queryVerdict{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return queryVerdict{}, fmt.Errorf("server returned %s", resp.Status)
	}

	var verdict queryVerdict
	if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
		return queryVerdict{}, err
	}
	return verdict, nil
}
