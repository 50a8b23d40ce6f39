package transcript

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
}

func appendFile(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("open for append: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("append: %v", err)
	}
}

func TestTailFollowsAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	writeFile(t, path, `{"seq":1,"agent":"him","text":"hey"}`+"\n")

	tail, err := OpenTail(path)
	if err != nil {
		t.Fatalf("open tail: %v", err)
	}
	defer tail.Close()

	first, err := tail.Next()
	if err != nil {
		t.Fatalf("first next: %v", err)
	}
	if len(first) != 1 || first[0].Text != "hey" {
		t.Fatalf("unexpected first batch: %+v", first)
	}

	if again, _ := tail.Next(); len(again) != 0 {
		t.Fatalf("expected empty batch, got %+v", again)
	}

	appendFile(t, path, `{"seq":2,"agent":"her","text":"hi back"}`+"\n")
	second, err := tail.Next()
	if err != nil {
		t.Fatalf("second next: %v", err)
	}
	if len(second) != 1 || second[0].Seq != 2 {
		t.Fatalf("unexpected second batch: %+v", second)
	}
}

func TestTailHoldsPartialLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	writeFile(t, path, `{"seq":1,"agent":"him","text":"done"}`+"\n"+`{"seq":2,"agent":"her"`)

	tail, err := OpenTail(path)
	if err != nil {
		t.Fatalf("open tail: %v", err)
	}
	defer tail.Close()

	batch, err := tail.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if len(batch) != 1 || batch[0].Seq != 1 {
		t.Fatalf("expected only the complete line, got %+v", batch)
	}

	appendFile(t, path, `,"text":"finished"}`+"\n")
	batch, err = tail.Next()
	if err != nil {
		t.Fatalf("next after completion: %v", err)
	}
	if len(batch) != 1 || batch[0].Text != "finished" {
		t.Fatalf("expected completed line, got %+v", batch)
	}
}

func TestTailSkipsCorruptLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	writeFile(t, path, "not json\n"+`{"seq":1,"agent":"him","text":"ok"}`+"\n")

	tail, err := OpenTail(path)
	if err != nil {
		t.Fatalf("open tail: %v", err)
	}
	defer tail.Close()

	batch, err := tail.Next()
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if len(batch) != 1 || batch[0].Text != "ok" {
		t.Fatalf("expected good line only, got %+v", batch)
	}
	if tail.Skipped() != 1 {
		t.Fatalf("expected 1 skipped line, got %d", tail.Skipped())
	}
}

func TestTailResetsOnTruncation(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	writeFile(t, path, `{"seq":1,"agent":"him","text":"old old old old"}`+"\n")

	tail, err := OpenTail(path)
	if err != nil {
		t.Fatalf("open tail: %v", err)
	}
	defer tail.Close()

	if _, err := tail.Next(); err != nil {
		t.Fatalf("next: %v", err)
	}

	writeFile(t, path, `{"seq":9,"agent":"her","text":"new"}`+"\n")
	batch, err := tail.Next()
	if err != nil {
		t.Fatalf("next after truncate: %v", err)
	}
	if len(batch) != 1 || batch[0].Seq != 9 {
		t.Fatalf("expected restarted tail, got %+v", batch)
	}
}
