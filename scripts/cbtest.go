// cbtest is a tool to verify circuit breaker behavior end to end by
// driving a running lmsilo-core server through its open, half-open and
// closed states using the admin endpoints.
//
// Usage:
//
//	go run cbtest.go -server http://localhost:8080 -circuit model-loader
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const (
	colorReset = "\033[0m"
	colorRed   = "\033[31m"
	colorGreen = "\033[32m"
	colorBlue  = "\033[34m"
	colorCyan  = "\033[36m"
)

func main() {
	var (
		serverURL = flag.String("server", "http://localhost:8080", "lmsilo-core server URL")
		circuit   = flag.String("circuit", "model-loader", "Circuit name to exercise")
		requests  = flag.Int("requests", 10, "Requests per phase")
	)
	flag.Parse()

	client := &http.Client{Timeout: 5 * time.Second}

	fmt.Println(colorCyan + "╔════════════════════════════════════════════════════════════════╗" + colorReset)
	fmt.Println(colorCyan + "║                  CIRCUIT BREAKER TEST                          ║" + colorReset)
	fmt.Println(colorCyan + "╚════════════════════════════════════════════════════════════════╝" + colorReset)
	fmt.Println()

	// PHASE 1: Verify normal operation
	fmt.Println(colorBlue + "━━━ PHASE 1: Normal Operation ━━━" + colorReset)
	okCount := 0
	for i := 0; i < *requests; i++ {
		code, _, err := sendRequest(client, *serverURL+"/upstreams/"+*circuit+"/health")
		if err != nil {
			fmt.Printf(colorRed+"  Request %d: ERROR - %v\n"+colorReset, i+1, err)
			continue
		}
		if code < 500 {
			okCount++
		}
	}
	if okCount == 0 {
		fmt.Println(colorRed + "  ✗ No successful requests! Is the server running?" + colorReset)
		os.Exit(1)
	}
	fmt.Printf(colorGreen+"  ✓ %d/%d requests passed through\n"+colorReset, okCount, *requests)
	printStatus(client, *serverURL, *circuit)
	fmt.Println()

	// PHASE 2: Force the circuit open and verify rejections
	fmt.Println(colorBlue + "━━━ PHASE 2: Forced Open ━━━" + colorReset)
	if err := postAdmin(client, *serverURL+"/circuits/"+*circuit+"/force-open"); err != nil {
		fmt.Printf(colorRed+"  ✗ force-open failed: %v\n"+colorReset, err)
		os.Exit(1)
	}

	rejected := 0
	for i := 0; i < *requests; i++ {
		code, retryAfter, err := sendRequest(client, *serverURL+"/upstreams/"+*circuit+"/health")
		if err != nil {
			fmt.Printf(colorRed+"  Request %d: ERROR - %v\n"+colorReset, i+1, err)
			continue
		}
		if code == http.StatusServiceUnavailable && retryAfter != "" {
			rejected++
		}
	}
	if rejected == *requests {
		fmt.Printf(colorGreen+"  ✓ All %d requests rejected with 503 + Retry-After\n"+colorReset, rejected)
	} else {
		fmt.Printf(colorRed+"  ✗ Only %d/%d requests were rejected\n"+colorReset, rejected, *requests)
	}
	printStatus(client, *serverURL, *circuit)
	fmt.Println()

	// PHASE 3: Reset and verify recovery
	fmt.Println(colorBlue + "━━━ PHASE 3: Reset & Recovery ━━━" + colorReset)
	if err := postAdmin(client, *serverURL+"/circuits/"+*circuit+"/reset"); err != nil {
		fmt.Printf(colorRed+"  ✗ reset failed: %v\n"+colorReset, err)
		os.Exit(1)
	}

	code, _, err := sendRequest(client, *serverURL+"/upstreams/"+*circuit+"/health")
	if err == nil && code < 500 {
		fmt.Println(colorGreen + "  ✓ Circuit recovered, requests pass through again" + colorReset)
	} else {
		fmt.Printf(colorRed+"  ✗ Request after reset failed (status=%d err=%v)\n"+colorReset, code, err)
	}
	printStatus(client, *serverURL, *circuit)
}

func sendRequest(client *http.Client, url string) (status int, retryAfter string, err error) {
	resp, err := client.Get(url)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, resp.Header.Get("Retry-After"), nil
}

func postAdmin(client *http.Client, url string) error {
	resp, err := client.Post(url, "application/json", bytes.NewReader(nil))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}
	return nil
}

func printStatus(client *http.Client, serverURL, circuit string) {
	resp, err := client.Get(serverURL + "/circuits/" + circuit)
	if err != nil {
		return
	}
	defer resp.Body.Close()

	var status struct {
		State          string        `json:"state"`
		FailureCount   int           `json:"failure_count"`
		TimeUntilRetry time.Duration `json:"time_until_retry"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return
	}
	fmt.Printf("  Circuit %q: state=%s failures=%d time_until_retry=%s\n",
		circuit, status.State, status.FailureCount, status.TimeUntilRetry)
}
