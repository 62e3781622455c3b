package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

type client struct {
	base string
	http *http.Client
}

func (c *client) call(ctx context.Context, method, path, token string, body any, want int) (map[string]any, error) {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	out := map[string]any{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil && err != io.EOF {
		return nil, fmt.Errorf("%s %s: decode: %w", method, path, err)
	}
	if resp.StatusCode != want {
		return out, fmt.Errorf("%s %s: status %d (want %d): %v", method, path, resp.StatusCode, want, out["message"])
	}
	return out, nil
}

func (c *client) login(ctx context.Context, name, password string) (string, error) {
	out, err := c.call(ctx, http.MethodPost, "/api/login", "", map[string]string{
		"user_name": name, "password": password,
	}, http.StatusOK)
	if err != nil {
		return "", err
	}
	tok, _ := out["token"].(string)
	return tok, nil
}

func (c *client) register(ctx context.Context, token, name, password, role string) (int64, error) {
	out, err := c.call(ctx, http.MethodPost, "/api/register", token, map[string]string{
		"user_name": name, "password": password, "user_type": role,
	}, http.StatusCreated)
	if err != nil {
		return 0, err
	}
	user, _ := out["user"].(map[string]any)
	id, _ := user["id"].(float64)
	return int64(id), nil
}

func main() {
	var (
		base       = flag.String("base", envOr("CLAIMDESK_SMOKE_URL", "http://localhost:8080"), "API base URL")
		itName     = flag.String("it-user", envOr("CLAIMDESK_SMOKE_IT_USER", "root"), "IT account name")
		itPassword = flag.String("it-password", os.Getenv("CLAIMDESK_SMOKE_IT_PASSWORD"), "IT account password")
	)
	flag.Parse()
	if *itPassword == "" {
		log.Fatal("missing IT password: provide via -it-password or CLAIMDESK_SMOKE_IT_PASSWORD")
	}

	c := &client{base: strings.TrimRight(*base, "/"), http: &http.Client{Timeout: 10 * time.Second}}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	itToken, err := c.login(ctx, *itName, *itPassword)
	if err != nil {
		// Fresh deployment: the first registration becomes IT.
		if _, regErr := c.register(ctx, "", *itName, *itPassword, "IT"); regErr != nil {
			log.Fatalf("login IT: %v; bootstrap: %v", err, regErr)
		}
		if itToken, err = c.login(ctx, *itName, *itPassword); err != nil {
			log.Fatalf("login IT after bootstrap: %v", err)
		}
	}

	suffix := uuid.NewString()[:8]
	adminName, clientName := "smoke-admin-"+suffix, "smoke-client-"+suffix
	const pw = "smoke-pass"

	adminID, err := c.register(ctx, itToken, adminName, pw, "Admin")
	if err != nil {
		log.Fatalf("register admin: %v", err)
	}
	clientID, err := c.register(ctx, itToken, clientName, pw, "Client")
	if err != nil {
		log.Fatalf("register client: %v", err)
	}
	defer func() {
		for _, id := range []int64{adminID, clientID} {
			if _, err := c.call(context.Background(), http.MethodDelete, fmt.Sprintf("/api/admin/users/%d", id), itToken, nil, http.StatusOK); err != nil {
				log.Printf("cleanup user %d: %v", id, err)
			}
		}
	}()

	adminToken, err := c.login(ctx, adminName, pw)
	if err != nil {
		log.Fatalf("login admin: %v", err)
	}
	clientToken, err := c.login(ctx, clientName, pw)
	if err != nil {
		log.Fatalf("login client: %v", err)
	}

	out, err := c.call(ctx, http.MethodPost, "/api/client/submit", clientToken, map[string]string{
		"claim_code":    "SMOKE-" + suffix,
		"claim_amount":  "420.00",
		"hospital_name": "Smoke General",
		"patient_name":  "Smoke Patient",
		"date_of_claim": time.Now().UTC().Format("2006-01-02"),
	}, http.StatusCreated)
	if err != nil {
		log.Fatalf("submit claim: %v", err)
	}
	claim, _ := out["claim"].(map[string]any)
	claimID, _ := claim["claim_id"].(float64)

	if _, err := c.call(ctx, http.MethodPut, fmt.Sprintf("/api/admin2/claims/%d/approve", int64(claimID)), adminToken, nil, http.StatusOK); err != nil {
		log.Fatalf("approve claim: %v", err)
	}

	stats, err := c.call(ctx, http.MethodGet, "/api/client/stats", clientToken, nil, http.StatusOK)
	if err != nil {
		log.Fatalf("client stats: %v", err)
	}
	if stats["approved"] != float64(1) || stats["total"] != float64(1) {
		log.Fatalf("unexpected client stats: %v", stats)
	}

	fmt.Printf("claimdesk smoke test passed: claim=%d admin=%s client=%s\n", int64(claimID), adminName, clientName)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
