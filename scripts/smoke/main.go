// Command smoke walks the read endpoints for one enrollment against a
// running instance and checks response shape plus a few domain invariants.
// It is meant for post-deploy verification, not as a test suite.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type check struct {
	Name string
	Err  error
}

var certNumberPattern = regexp.MustCompile(`^(VRT|CMP)-\d{4}-\d{5}-\d{14}$`)

func main() {
	var (
		base         string
		enrollmentID string
		timeout      time.Duration
	)
	flag.StringVar(&base, "base", "http://localhost:8080/api/v1", "API base URL including prefix")
	flag.StringVar(&enrollmentID, "enrollment", "", "Enrollment ID to walk")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	if enrollmentID == "" {
		fmt.Fprintln(os.Stderr, "usage: smoke -enrollment <id> [-base <url>]")
		os.Exit(2)
	}

	client := &http.Client{Timeout: timeout}
	checks := []check{
		{Name: "enrollment", Err: checkEnrollment(client, base, enrollmentID)},
		{Name: "progress summary", Err: checkSummary(client, base, enrollmentID)},
		{Name: "certificates", Err: checkCertificates(client, base, enrollmentID)},
	}

	failed := 0
	for _, c := range checks {
		status := "OK"
		if c.Err != nil {
			status = "FAIL"
			failed++
		}
		fmt.Printf("[%s] %s\n", status, c.Name)
		if c.Err != nil {
			fmt.Printf("  %v\n", c.Err)
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}

func fetch(client *http.Client, url string) (*envelope, error) {
	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("response is not an envelope: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		code := "unknown"
		if env.Error != nil {
			code = env.Error.Code
		}
		return nil, fmt.Errorf("status %d (%s)", resp.StatusCode, code)
	}
	return &env, nil
}

func checkEnrollment(client *http.Client, base, id string) error {
	env, err := fetch(client, join(base, "/enrollments/"+id))
	if err != nil {
		return err
	}
	var enrollment struct {
		Status             string  `json:"status"`
		ProgressPercentage float64 `json:"progress_percentage"`
	}
	if err := json.Unmarshal(env.Data, &enrollment); err != nil {
		return fmt.Errorf("decode enrollment: %w", err)
	}
	if enrollment.ProgressPercentage < 0 || enrollment.ProgressPercentage > 100 {
		return fmt.Errorf("progress %.2f outside [0, 100]", enrollment.ProgressPercentage)
	}
	switch enrollment.Status {
	case "ACTIVE", "COMPLETED", "DROPPED":
	default:
		return fmt.Errorf("unexpected status %q", enrollment.Status)
	}
	return nil
}

func checkSummary(client *http.Client, base, id string) error {
	env, err := fetch(client, join(base, "/enrollments/"+id+"/progress/summary"))
	if err != nil {
		return err
	}
	var summary struct {
		Overall             float64 `json:"overall"`
		ComponentsCompleted int     `json:"components_completed"`
		TotalComponents     int     `json:"total_components"`
	}
	if err := json.Unmarshal(env.Data, &summary); err != nil {
		return fmt.Errorf("decode summary: %w", err)
	}
	if summary.Overall < 0 || summary.Overall > 100 {
		return fmt.Errorf("overall %.2f outside [0, 100]", summary.Overall)
	}
	if summary.ComponentsCompleted > summary.TotalComponents {
		return fmt.Errorf("completed %d exceeds total %d", summary.ComponentsCompleted, summary.TotalComponents)
	}
	return nil
}

func checkCertificates(client *http.Client, base, id string) error {
	env, err := fetch(client, join(base, "/enrollments/"+id+"/certificates"))
	if err != nil {
		return err
	}
	var certificates []struct {
		Number string `json:"certificate_number"`
		Type   string `json:"type"`
		Valid  bool   `json:"valid"`
	}
	if err := json.Unmarshal(env.Data, &certificates); err != nil {
		return fmt.Errorf("decode certificates: %w", err)
	}
	for _, cert := range certificates {
		if !certNumberPattern.MatchString(cert.Number) {
			return fmt.Errorf("malformed certificate number %q", cert.Number)
		}
	}
	return nil
}

func join(base, path string) string {
	return strings.TrimRight(base, "/") + path
}
