package handlers

import (
	"math"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
)

// ========================================
// Helper Function Tests
// ========================================

func TestAtoiDefault(t *testing.T) {
	tests := []struct {
		input    string
		def      int
		expected int
	}{
		{"10", 5, 10},
		{"1", 0, 1},
		{"", 5, 5},
		{"abc", 10, 10},
		{"-1", 5, 5},
		{"0", 5, 5},
		{"12.5", 5, 5},
	}

	for _, tt := range tests {
		result := atoiDefault(tt.input, tt.def)
		if result != tt.expected {
			t.Errorf("atoiDefault(%q, %d) = %d, expected %d", tt.input, tt.def, result, tt.expected)
		}
	}
}

func TestPageWindow(t *testing.T) {
	tests := []struct {
		page, limit                   int
		wantPage, wantLimit, wantOffs int
	}{
		{1, 24, 1, 24, 0},
		{3, 10, 3, 10, 20},
		{1, 1000000, 1, maxPageSize, 0},
		{math.MaxInt, 24, math.MaxInt32 / 24, 24, (math.MaxInt32/24 - 1) * 24},
	}

	for _, tt := range tests {
		page, limit, offset := pageWindow(tt.page, tt.limit)
		if page != tt.wantPage || limit != tt.wantLimit || offset != tt.wantOffs {
			t.Errorf("pageWindow(%d, %d) = %d, %d, %d, expected %d, %d, %d",
				tt.page, tt.limit, page, limit, offset, tt.wantPage, tt.wantLimit, tt.wantOffs)
		}
		if offset < 0 {
			t.Errorf("pageWindow(%d, %d) offset overflowed: %d", tt.page, tt.limit, offset)
		}
	}
}

func TestParseDate(t *testing.T) {
	tests := []struct {
		input    string
		expected time.Time
	}{
		{"", time.Time{}},
		{"2024-05-01", time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{"2024-05-01T10:30:00Z", time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)},
		{"01-05-2024", time.Time{}},
	}

	for _, tt := range tests {
		if result := parseDate(tt.input); !result.Equal(tt.expected) {
			t.Errorf("parseDate(%q) = %v, expected %v", tt.input, result, tt.expected)
		}
	}
}

func TestResultID(t *testing.T) {
	tests := []struct {
		id    string
		want  int64
		valid bool
	}{
		{"7", 7, true},
		{"0", 0, false},
		{"x", 0, false},
	}

	for _, tt := range tests {
		req := mux.SetURLVars(httptest.NewRequest("GET", "/api/results/"+tt.id, nil), map[string]string{"id": tt.id})
		got, ok := resultID(req)
		if ok != tt.valid || (ok && got != tt.want) {
			t.Errorf("resultID(%q) = %d, %v", tt.id, got, ok)
		}
	}
}
