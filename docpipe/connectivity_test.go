package docpipe

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hazyhaar/structura/connectivity"
	"github.com/hazyhaar/structura/horosafe"
)

func TestConn_Extract(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("Hello connectivity"), 0o644)

	router := connectivity.New()
	New(Config{Root: dir}).RegisterConnectivity(router)

	payload, _ := json.Marshal(map[string]any{"path": "hello.txt"})
	resp, err := router.Call(context.Background(), "docpipe_extract", payload)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	var doc Document
	json.Unmarshal(resp, &doc)
	if doc.Format != FormatTXT || doc.RawText != "Hello connectivity" {
		t.Errorf("doc = %+v", doc)
	}
}

func TestConn_RootConfinesPaths(t *testing.T) {
	router := connectivity.New()
	New(Config{Root: t.TempDir()}).RegisterConnectivity(router)

	payload, _ := json.Marshal(map[string]any{"path": "../../etc/passwd"})
	if _, err := router.Call(context.Background(), "docpipe_extract", payload); !errors.Is(err, horosafe.ErrPathTraversal) {
		t.Fatalf("err = %v", err)
	}
}

func TestConn_Validate(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.csv"), []byte("x,y\n1,2\n"), 0o644)
	router := connectivity.New()
	New(Config{Root: dir}).RegisterConnectivity(router)

	payload, _ := json.Marshal(map[string]any{"path": "a.csv"})
	resp, err := router.Call(context.Background(), "docpipe_validate", payload)
	if err != nil {
		t.Fatal(err)
	}
	var v Validation
	json.Unmarshal(resp, &v)
	if !v.Valid || v.Kind != KindSpreadsheet {
		t.Errorf("validation = %+v", v)
	}
}

func TestConn_InvalidJSON(t *testing.T) {
	router := connectivity.New()
	New(Config{}).RegisterConnectivity(router)
	if _, err := router.Call(context.Background(), "docpipe_validate", []byte(`not json`)); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}
