package testsupport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// FixturePath returns filename inside the calling package's testdata dir.
func FixturePath(filename string) string {
	return filepath.Join("testdata", filename)
}

// LoadFixture returns the raw contents of path or fails the test.
func LoadFixture(t testing.TB, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture %s: %v", path, err)
	}
	return data
}

// LoadFixtureJSON decodes the JSON fixture at path into dest.
func LoadFixtureJSON(t testing.TB, path string, dest any) {
	t.Helper()
	if err := json.Unmarshal(LoadFixture(t, path), dest); err != nil {
		t.Fatalf("decode fixture %s: %v", path, err)
	}
}

// SeedFromFixture decodes a JSON array of records into a new MemoryAdapter
// and returns the records as stored, ids filled in.
func SeedFromFixture[T any](t testing.TB, path string) (*MemoryAdapter[T], []T) {
	t.Helper()
	var records []T
	LoadFixtureJSON(t, path, &records)
	adapter := NewMemoryAdapter[T]()
	return adapter, adapter.Seed(records...)
}
