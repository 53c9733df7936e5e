package store

import (
	"testing"
)

func TestCaptureLifecycle(t *testing.T) {
	db := testDB(t)

	c := &Capture{OwnerID: "u1", Type: CapturePDF, Title: "paper", Source: "paper.pdf"}
	if err := db.CreateCapture(c); err != nil {
		t.Fatalf("CreateCapture: %v", err)
	}
	if c.ID == "" {
		t.Fatal("expected generated id")
	}
	if c.Status != CaptureProcessing {
		t.Errorf("status = %q, want %q", c.Status, CaptureProcessing)
	}

	if err := db.MarkCaptureCompleted(c.ID, "extracted text", 3); err != nil {
		t.Fatalf("MarkCaptureCompleted: %v", err)
	}
	got, err := db.GetCapture(c.ID)
	if err != nil {
		t.Fatalf("GetCapture: %v", err)
	}
	if got.Status != CaptureCompleted {
		t.Errorf("status = %q, want %q", got.Status, CaptureCompleted)
	}
	if got.RawText != "extracted text" {
		t.Errorf("raw_text = %q", got.RawText)
	}
	if got.PageCount != 3 {
		t.Errorf("page_count = %d, want 3", got.PageCount)
	}
}

func TestCaptureFailed(t *testing.T) {
	db := testDB(t)

	c := &Capture{OwnerID: "u1", Type: CaptureDocument}
	if err := db.CreateCapture(c); err != nil {
		t.Fatalf("CreateCapture: %v", err)
	}
	if err := db.MarkCaptureFailed(c.ID, "unsupported format"); err != nil {
		t.Fatalf("MarkCaptureFailed: %v", err)
	}

	got, _ := db.GetCapture(c.ID)
	if got.Status != CaptureFailed {
		t.Errorf("status = %q, want %q", got.Status, CaptureFailed)
	}
	if got.Error != "unsupported format" {
		t.Errorf("error = %q", got.Error)
	}
}

func TestCaptureInvalidType(t *testing.T) {
	db := testDB(t)

	c := &Capture{OwnerID: "u1", Type: "spreadsheet"}
	if err := db.CreateCapture(c); err == nil {
		t.Error("expected error for unknown capture type")
	}
}

func TestGetCaptureMissing(t *testing.T) {
	db := testDB(t)

	got, err := db.GetCapture("nope")
	if err != nil {
		t.Fatalf("GetCapture: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing capture, got %+v", got)
	}
}

func TestListCaptures(t *testing.T) {
	db := testDB(t)

	for i := 0; i < 3; i++ {
		c := &Capture{OwnerID: "u1", Type: CaptureText}
		if err := db.CreateCapture(c); err != nil {
			t.Fatalf("CreateCapture: %v", err)
		}
	}
	other := &Capture{OwnerID: "u2", Type: CaptureText}
	if err := db.CreateCapture(other); err != nil {
		t.Fatalf("CreateCapture: %v", err)
	}

	captures, err := db.ListCaptures("u1", 10)
	if err != nil {
		t.Fatalf("ListCaptures: %v", err)
	}
	if len(captures) != 3 {
		t.Errorf("len = %d, want 3", len(captures))
	}
	for _, c := range captures {
		if c.OwnerID != "u1" {
			t.Errorf("owner = %q, want u1", c.OwnerID)
		}
	}
}
