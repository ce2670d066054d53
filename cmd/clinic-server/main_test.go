package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/eyecare/clinic/internal/config"
	"github.com/eyecare/clinic/internal/domain/clinic"
	"github.com/eyecare/clinic/internal/platform/auth"
	"github.com/eyecare/clinic/internal/platform/snapshot"
)

func testConfig(env string) *config.Config {
	return &config.Config{
		Port:           "0",
		Env:            env,
		LogLevel:       "info",
		StoreBackend:   "memory",
		TokenTTL:       time.Hour,
		CORSOrigins:    []string{"http://localhost:3000"},
		BodyLimit:      "1M",
		RequestTimeout: 5 * time.Second,
	}
}

func testServer(t *testing.T, env string) (*httptest.Server, []byte) {
	t.Helper()
	backend := snapshot.NewMemory()
	store := clinic.NewMemoryStore(backend)
	if err := store.Seed(context.Background(), clinic.SampleData(time.Now())); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	key := []byte("0123456789abcdef0123456789abcdef")
	svc := clinic.NewService(store.Repositories(), zerolog.Nop())
	e := newServer(testConfig(env), zerolog.Nop(), svc, backend, key)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv, key
}

func TestServer_Health(t *testing.T) {
	srv, _ := testServer(t, "production")

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "healthy" || body["backend"] != "memory" {
		t.Errorf("unexpected health body: %v", body)
	}
	if resp.Header.Get("Strict-Transport-Security") == "" {
		t.Error("expected HSTS header in production")
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestServer_RequiresTokenOutsideDev(t *testing.T) {
	srv, key := testServer(t, "production")

	resp, err := http.Get(srv.URL + "/api/v1/patients")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	issuer := auth.NewTokenIssuer(auth.JWTConfig{Issuer: auth.DefaultIssuer, SigningKey: key}, time.Hour)
	token, _, err := issuer.Issue("dr-lee", []string{auth.RoleDoctor})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/patients", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", resp.StatusCode)
	}
}

func TestServer_LoginIsPublic(t *testing.T) {
	srv, _ := testServer(t, "production")

	body := strings.NewReader(`{"username":"frontdesk","password":"x","role":"billing"}`)
	resp, err := http.Post(srv.URL+"/api/v1/auth/login", "application/json", body)
	if err != nil {
		t.Fatalf("POST login: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out auth.LoginResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.AccessToken == "" || out.TokenType != "Bearer" {
		t.Errorf("unexpected login response: %+v", out)
	}
}

func TestServer_MetricsCountMutations(t *testing.T) {
	srv, _ := testServer(t, "development")

	body := strings.NewReader(`{"firstName":"Ada","lastName":"Moss","dob":"1990-02-03"}`)
	resp, err := http.Post(srv.URL+"/api/v1/patients", "application/json", body)
	if err != nil {
		t.Fatalf("POST patient: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("read: %v", err)
	}
	want := `clinic_store_mutations_total{entity="patient",op="create",outcome="ok"} 1`
	if !strings.Contains(buf.String(), want) {
		t.Errorf("metrics missing %q", want)
	}
}

func TestResolveSigningKey_Hex(t *testing.T) {
	raw := []byte("a signing key of thirty-two byte")
	key, generated, err := resolveSigningKey(hex.EncodeToString(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if generated {
		t.Error("expected generated=false for a configured key")
	}
	if !bytes.Equal(key, raw) {
		t.Errorf("decoded key mismatch")
	}
}

func TestResolveSigningKey_Generated(t *testing.T) {
	key, generated, err := resolveSigningKey("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !generated {
		t.Error("expected generated=true")
	}
	if len(key) != 32 {
		t.Errorf("expected 32 byte key, got %d", len(key))
	}
}

func TestResolveSigningKey_InvalidHex(t *testing.T) {
	if _, _, err := resolveSigningKey("not-hex"); err == nil {
		t.Fatal("expected error for invalid hex")
	}
}

func TestSeedCmd_PrintsSampleData(t *testing.T) {
	cmd := seedCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(nil)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	var d clinic.Dataset
	if err := json.Unmarshal(out.Bytes(), &d); err != nil {
		t.Fatalf("output is not a dataset: %v", err)
	}
	if len(d.Patients) == 0 || len(d.Billing) == 0 {
		t.Errorf("expected sample rows, got %d patients %d bills", len(d.Patients), len(d.Billing))
	}
}

func TestTokenCmd(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	t.Setenv("AUTH_SIGNING_KEY", hex.EncodeToString(key))

	cmd := tokenCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{"--user", "dr-lee", "--role", auth.RoleDoctor})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	claims, err := auth.ParseToken(auth.JWTConfig{Issuer: auth.DefaultIssuer, SigningKey: key}, strings.TrimSpace(out.String()))
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.Subject != "dr-lee" {
		t.Errorf("expected subject dr-lee, got %q", claims.Subject)
	}
}

func TestTokenCmd_RejectsUnknownRole(t *testing.T) {
	t.Setenv("AUTH_SIGNING_KEY", "00ff")
	cmd := tokenCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--user", "x", "--role", "janitor"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestExportBillingCmd_SQLite(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("STORE_BACKEND", "sqlite")
	t.Setenv("STORE_DSN", filepath.Join(dir, "clinic.db"))

	out := filepath.Join(dir, "billing.xlsx")
	cmd := exportCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"billing", "--out", out})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	info, err := os.Stat(out)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() == 0 {
		t.Error("expected a non-empty workbook")
	}
}

func TestSnapshotCmds_SaveThenShow(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("STORE_BACKEND", "sqlite")
	t.Setenv("STORE_DSN", filepath.Join(dir, "clinic.db"))

	save := snapshotCmd()
	save.SetOut(&bytes.Buffer{})
	save.SetArgs([]string{"save"})
	if err := save.Execute(); err != nil {
		t.Fatalf("save: %v", err)
	}

	show := snapshotCmd()
	var out bytes.Buffer
	show.SetOut(&out)
	show.SetArgs([]string{"show"})
	if err := show.Execute(); err != nil {
		t.Fatalf("show: %v", err)
	}
	for _, bucket := range []string{"patients", "billing", "counters"} {
		if !strings.Contains(out.String(), bucket) {
			t.Errorf("show output missing bucket %q:\n%s", bucket, out.String())
		}
	}
}
