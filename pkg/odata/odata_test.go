package odata

import (
	"testing"
)

func TestExtract_V2Collection(t *testing.T) {
	body := []byte(`{"d": {"results": [{"ID": 1}, {"ID": 2}], "__next": "https://upstream/Orders?$skiptoken=2"}}`)

	page, err := Extract(body)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if len(page.Records) != 2 {
		t.Errorf("Records length = %d, want 2", len(page.Records))
	}
	if page.NextURL != "https://upstream/Orders?$skiptoken=2" {
		t.Errorf("NextURL = %q, want skiptoken link", page.NextURL)
	}
}

func TestExtract_V2CollectionLastPage(t *testing.T) {
	body := []byte(`{"d": {"results": [{"ID": 3}]}}`)

	page, err := Extract(body)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if len(page.Records) != 1 {
		t.Errorf("Records length = %d, want 1", len(page.Records))
	}
	if page.NextURL != "" {
		t.Errorf("NextURL = %q, want empty", page.NextURL)
	}
}

func TestExtract_V2SingleEntity(t *testing.T) {
	body := []byte(`{"d": {"OrderID": "42", "Status": "open"}}`)

	page, err := Extract(body)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if len(page.Records) != 1 {
		t.Fatalf("Records length = %d, want 1 (single entity wrapped)", len(page.Records))
	}
	if page.Records[0]["OrderID"] != "42" {
		t.Errorf("OrderID = %v, want \"42\"", page.Records[0]["OrderID"])
	}
}

func TestExtract_V4Collection(t *testing.T) {
	body := []byte(`{"value": [{"ID": 1}], "@odata.nextLink": "https://upstream/Orders?$skip=1"}`)

	page, err := Extract(body)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if len(page.Records) != 1 {
		t.Errorf("Records length = %d, want 1", len(page.Records))
	}
	if page.NextURL != "https://upstream/Orders?$skip=1" {
		t.Errorf("NextURL = %q, want skip link", page.NextURL)
	}
}

func TestExtract_V4NullNextLink(t *testing.T) {
	body := []byte(`{"value": [{"ID": 1}], "@odata.nextLink": null}`)

	page, err := Extract(body)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if page.NextURL != "" {
		t.Errorf("NextURL = %q, want empty for null link", page.NextURL)
	}
}

// A v2 container must never pick up a v4-style next link, and vice versa.
func TestExtract_NoCrossFamilyNextLink(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "v2 container ignores @odata.nextLink",
			body: `{"d": {"results": [{"ID": 1}]}, "@odata.nextLink": "https://upstream/next"}`,
		},
		{
			name: "v4 container ignores __next",
			body: `{"value": [{"ID": 1}], "__next": "https://upstream/next"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := Extract([]byte(tt.body))
			if err != nil {
				t.Fatalf("Extract() error = %v", err)
			}
			if page.NextURL != "" {
				t.Errorf("NextURL = %q, want empty", page.NextURL)
			}
		})
	}
}

func TestExtract_UnknownShape(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "empty object", body: `{}`},
		{name: "unrelated keys", body: `{"error": {"message": "gone"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := Extract([]byte(tt.body))
			if err != nil {
				t.Fatalf("Extract() error = %v", err)
			}
			if len(page.Records) != 0 {
				t.Errorf("Records length = %d, want 0", len(page.Records))
			}
			if page.NextURL != "" {
				t.Errorf("NextURL = %q, want empty", page.NextURL)
			}
		})
	}
}

func TestExtract_InvalidJSON(t *testing.T) {
	if _, err := Extract([]byte(`not json`)); err == nil {
		t.Error("Extract() expected error for invalid JSON")
	}
}

func TestExtract_RecordOrderPreserved(t *testing.T) {
	body := []byte(`{"value": [{"ID": 1}, {"ID": 2}, {"ID": 3}]}`)

	page, err := Extract(body)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	for i, rec := range page.Records {
		want := float64(i + 1)
		if rec["ID"] != want {
			t.Errorf("Records[%d].ID = %v, want %v", i, rec["ID"], want)
		}
	}
}
