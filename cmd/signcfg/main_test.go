package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/eugenenazirov/signcfg/internal/application"
	"github.com/eugenenazirov/signcfg/internal/buildenv"
	"github.com/eugenenazirov/signcfg/internal/signing"
)

var testKeystore = []byte("cli-keystore-bytes")

// TestHelperProcess is not a real test; exec runs it as the build command.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("SIGNCFG_HELPER_PROCESS") != "1" {
		return
	}

	content, err := os.ReadFile(os.Getenv(application.EnvSigningStoreFile))
	if err != nil {
		fmt.Fprintf(os.Stderr, "read keystore: %v\n", err)
		os.Exit(90)
	}
	fmt.Fprintf(os.Stdout, "%s|%s\n", content, os.Getenv(application.EnvSigningKeyAlias))

	code, _ := strconv.Atoi(os.Getenv("SIGNCFG_HELPER_EXIT"))
	os.Exit(code)
}

func ciLookup(t *testing.T, keystoreDir string) buildenv.LookupFunc {
	t.Helper()
	return buildenv.MapLookup(map[string]string{
		"CI":                   "",
		"KEYSTORE_BASE64":      base64.StdEncoding.EncodeToString(testKeystore),
		"KEY_ALIAS":            "upload",
		"KEY_PASSWORD":         "key-pass",
		"STORE_PASSWORD":       "store-pass",
		"SIGNCFG_KEYSTORE_DIR": keystoreDir,
	})
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func runCLI(t *testing.T, lookup buildenv.LookupFunc, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, strings.NewReader(""), &stdout, &stderr, lookup)
	return code, stdout.String(), stderr.String()
}

func TestRunResolveCIRemovesKeystore(t *testing.T) {
	dir := t.TempDir()

	code, stdout, stderr := runCLI(t, ciLookup(t, dir), "--log-level=error", "resolve", "--format=json")
	if code != exitOK {
		t.Fatalf("expected exit code 0, got %d (stderr: %s)", code, stderr)
	}

	var summary signing.Summary
	if err := json.Unmarshal([]byte(stdout), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.Environment != "ci" || !summary.Complete || !summary.TemporaryKeystore {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if strings.Contains(stdout, "key-pass") || strings.Contains(stdout, "store-pass") {
		t.Fatalf("summary leaked a password: %s", stdout)
	}
	if left := dirEntries(t, dir); len(left) != 0 {
		t.Fatalf("expected keystore to be removed, found %v", left)
	}
}

func TestRunResolveKeepKeystore(t *testing.T) {
	dir := t.TempDir()

	code, stdout, stderr := runCLI(t, ciLookup(t, dir), "--log-level=error", "resolve", "--format=properties", "--keep-keystore")
	if code != exitOK {
		t.Fatalf("expected exit code 0, got %d (stderr: %s)", code, stderr)
	}

	left := dirEntries(t, dir)
	if len(left) != 1 {
		t.Fatalf("expected one kept keystore, found %v", left)
	}
	kept := filepath.Join(dir, left[0])
	if !strings.Contains(stdout, kept) {
		t.Fatalf("expected properties output to reference %s, got %s", kept, stdout)
	}
	content, err := os.ReadFile(kept)
	if err != nil || !bytes.Equal(content, testKeystore) {
		t.Fatalf("unexpected kept keystore content %q (err %v)", content, err)
	}
}

func TestRunResolvePropertiesKeepsKeystore(t *testing.T) {
	dir := t.TempDir()

	code, stdout, stderr := runCLI(t, ciLookup(t, dir), "--log-level=error", "resolve", "--format=properties")
	if code != exitOK {
		t.Fatalf("expected exit code 0, got %d (stderr: %s)", code, stderr)
	}

	path := filepath.Join(t.TempDir(), "key.properties")
	if err := os.WriteFile(path, []byte(stdout), 0o600); err != nil {
		t.Fatalf("write properties: %v", err)
	}
	props, ok, err := signing.LoadProperties(path)
	if err != nil || !ok {
		t.Fatalf("LoadProperties failed: ok=%v err=%v", ok, err)
	}
	if filepath.Dir(props.StoreFile) != dir {
		t.Fatalf("expected store file in %s, got %s", dir, props.StoreFile)
	}
	content, err := os.ReadFile(props.StoreFile)
	if err != nil {
		t.Fatalf("expected printed keystore to exist after exit: %v", err)
	}
	if !bytes.Equal(content, testKeystore) {
		t.Fatalf("unexpected keystore content %q", content)
	}
}

func TestRunResolveMissingSecret(t *testing.T) {
	lookup := buildenv.MapLookup(map[string]string{
		"CI":              "true",
		"KEYSTORE_BASE64": base64.StdEncoding.EncodeToString(testKeystore),
	})

	code, _, stderr := runCLI(t, lookup, "--log-level=error", "resolve")
	if code != exitFailure {
		t.Fatalf("expected exit code %d, got %d", exitFailure, code)
	}
	if !strings.Contains(stderr, "KEY_ALIAS secret not found") {
		t.Fatalf("expected missing secret to be named, got %s", stderr)
	}
}

func TestRunResolveLocal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key.properties")
	content := "storePassword=sp\nkeyPassword=kp\nkeyAlias=upload\nstoreFile=upload.jks\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write properties: %v", err)
	}

	code, stdout, stderr := runCLI(t, buildenv.MapLookup(nil), "--log-level=error", "--properties", path, "resolve")
	if code != exitOK {
		t.Fatalf("expected exit code 0, got %d (stderr: %s)", code, stderr)
	}
	for _, want := range []string{"environment:    local", "store file:     upload.jks", "status:         complete"} {
		if !strings.Contains(stdout, want) {
			t.Fatalf("expected %q in output, got %s", want, stdout)
		}
	}
}

func TestRunExecPassesCredentials(t *testing.T) {
	t.Setenv("SIGNCFG_HELPER_PROCESS", "1")
	t.Setenv("SIGNCFG_HELPER_EXIT", "7")
	dir := t.TempDir()

	code, stdout, stderr := runCLI(t, ciLookup(t, dir),
		"--log-level=error", "exec", "--", os.Args[0], "-test.run=TestHelperProcess")
	if code != 7 {
		t.Fatalf("expected child exit code 7, got %d (stderr: %s)", code, stderr)
	}
	if want := string(testKeystore) + "|upload"; !strings.HasPrefix(stdout, want) {
		t.Fatalf("expected child output %q, got %q", want, stdout)
	}
	if left := dirEntries(t, dir); len(left) != 0 {
		t.Fatalf("expected keystore to be removed after exec, found %v", left)
	}
}

func TestRunExecRefusesIncompleteConfiguration(t *testing.T) {
	code, _, stderr := runCLI(t, buildenv.MapLookup(nil),
		"--log-level=error", "--properties", filepath.Join(t.TempDir(), "absent.properties"),
		"exec", "--", "true")
	if code != exitFailure {
		t.Fatalf("expected exit code %d, got %d", exitFailure, code)
	}
	if !strings.Contains(stderr, "incomplete") {
		t.Fatalf("expected incomplete credentials error, got %s", stderr)
	}
}

func TestRunOutputName(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantOut  string
	}{
		{
			name:     "default prefix",
			args:     []string{"output-name", "app-arm64-v8a-release.apk", "app-x86_64-release.apk"},
			wantCode: exitOK,
			wantOut:  "minex-arm64-v8a.apk\nminex-x86_64.apk\n",
		},
		{
			name:     "custom prefix",
			args:     []string{"--output-prefix", "demo", "output-name", "app-armeabi-v7a-release.apk"},
			wantCode: exitOK,
			wantOut:  "demo-armeabi-v7a.apk\n",
		},
		{
			name:     "no architecture",
			args:     []string{"output-name", "app-release.apk"},
			wantCode: exitFailure,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			args := append([]string{"--log-level=error"}, tc.args...)
			code, stdout, stderr := runCLI(t, buildenv.MapLookup(nil), args...)
			if code != tc.wantCode {
				t.Fatalf("expected exit code %d, got %d (stderr: %s)", tc.wantCode, code, stderr)
			}
			if stdout != tc.wantOut {
				t.Fatalf("expected output %q, got %q", tc.wantOut, stdout)
			}
		})
	}
}

func TestRunRename(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"app-arm64-v8a-release.apk", "output-metadata.json"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	code, stdout, stderr := runCLI(t, buildenv.MapLookup(nil), "--log-level=error", "rename", dir)
	if code != exitOK {
		t.Fatalf("expected exit code 0, got %d (stderr: %s)", code, stderr)
	}
	if !strings.Contains(stdout, "minex-arm64-v8a.apk") {
		t.Fatalf("expected rename to be reported, got %s", stdout)
	}

	got := dirEntries(t, dir)
	want := []string{"minex-arm64-v8a.apk", "output-metadata.json"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestRunUsageErrors(t *testing.T) {
	for _, args := range [][]string{
		{"--no-such-flag"},
		{"--environment", "staging", "resolve"},
		{"resolve", "--format", "xml"},
	} {
		code, _, _ := runCLI(t, buildenv.MapLookup(nil), args...)
		if code != exitUsage {
			t.Fatalf("args %v: expected exit code %d, got %d", args, exitUsage, code)
		}
	}
}
