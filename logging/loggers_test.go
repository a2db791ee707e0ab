package logging

import "testing"

func TestCPrintWithoutInit(t *testing.T) {
	// CPrint must self-initialize and not panic, including on a nil
	// field map.
	CPrint(INFO, "uninitialized logger message", nil)
	CPrint(DEBUG, "with fields", LogFormat{"key": "value"})
}

func TestFileRotateHookerEmptyPath(t *testing.T) {
	if hook := NewFileRotateHooker("", "name", 0); hook != nil {
		t.Fatal("expected nil hook for empty path")
	}
}

func TestInitAndLog(t *testing.T) {
	dir := t.TempDir()
	Init(dir, "bitj-test.log", "debug", 1)
	CPrint(INFO, "post-init message", LogFormat{"n": 1})
}
