package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

func statusCmd(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	baseURL := fs.String("url", "http://127.0.0.1:8080", "server base url")
	_ = fs.Parse(args)

	base := strings.TrimRight(strings.TrimSpace(*baseURL), "/")
	cl := &http.Client{Timeout: 5 * time.Second}
	ok := true
	for _, p := range []string{"/healthz", "/metrics"} {
		body, err := fetch(cl, base+p)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", p, err)
			ok = false
			continue
		}
		fmt.Printf("== %s\n%s\n", p, strings.TrimSpace(body))
	}
	if !ok {
		os.Exit(1)
	}
}

func fetch(cl *http.Client, u string) (string, error) {
	resp, err := cl.Get(u)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return string(b), nil
}
