package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestResponseWriterCapturesStatus(t *testing.T) {
	t.Parallel()

	rw := newResponseWriter(httptest.NewRecorder())
	rw.WriteHeader(http.StatusNotFound)
	rw.WriteHeader(http.StatusOK) // second call must not overwrite

	if rw.statusCode != http.StatusNotFound {
		t.Errorf("statusCode = %d, want 404", rw.statusCode)
	}
}

func TestResponseWriterCountsBytes(t *testing.T) {
	t.Parallel()

	rw := newResponseWriter(httptest.NewRecorder())
	rw.Write([]byte("hello "))
	rw.Write([]byte("world"))

	if rw.bytesWritten != 11 {
		t.Errorf("bytesWritten = %d, want 11", rw.bytesWritten)
	}
	if rw.statusCode != http.StatusOK {
		t.Errorf("implicit statusCode = %d, want 200", rw.statusCode)
	}
}

func TestSanitizeLogField(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"clean string", "GET /api/videos", "GET /api/videos"},
		{"newline injection", "evil\nFAKE LOG LINE", "evil FAKE LOG LINE"},
		{"carriage return", "evil\rvalue", "evil value"},
		{"null byte", "evil\x00value", "evilvalue"},
		{"ansi escape", "evil\x1b[31mred", "evil[31mred"},
		{"tab preserved", "a\tb", "a\tb"},
		{"control chars stripped", "a\x01\x02b", "ab"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeLogField(tt.input); got != tt.expected {
				t.Errorf("sanitizeLogField(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestGetClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		headers  map[string]string
		remote   string
		expected string
	}{
		{"remote addr only", nil, "192.0.2.10:4321", "192.0.2.10"},
		{"x-forwarded-for single", map[string]string{"X-Forwarded-For": "203.0.113.5"}, "192.0.2.10:4321", "203.0.113.5"},
		{"x-forwarded-for chain takes first", map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.1"}, "192.0.2.10:4321", "203.0.113.5"},
		{"x-real-ip", map[string]string{"X-Real-IP": "198.51.100.7"}, "192.0.2.10:4321", "198.51.100.7"},
		{"xff wins over x-real-ip", map[string]string{"X-Forwarded-For": "203.0.113.5", "X-Real-IP": "198.51.100.7"}, "192.0.2.10:4321", "203.0.113.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", http.NoBody)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := getClientIP(req); got != tt.expected {
				t.Errorf("getClientIP() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestEscapeW3CField(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected string
	}{
		{"curl/8.0", "curl/8.0"},
		{"Mozilla Firefox", `"Mozilla Firefox"`},
		{`agent "quoted"`, `"agent ""quoted"""`},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := escapeW3CField(tt.input); got != tt.expected {
				t.Errorf("escapeW3CField(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestShouldSkip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		path     string
		config   LoggingConfig
		expected bool
	}{
		{"normal path", "/api/videos", DefaultLoggingConfig(), false},
		{"health logged by default", "/healthz", DefaultLoggingConfig(), false},
		{"health muted", "/healthz", LoggingConfig{LogHealthChecks: false}, true},
		{"liveness muted", "/livez", LoggingConfig{LogHealthChecks: false}, true},
		{"explicit skip prefix", "/api/videos", LoggingConfig{SkipPaths: []string{"/api/videos"}, LogHealthChecks: true}, true},
		{"skip prefix matches children", "/api/videos/movie.mp4", LoggingConfig{SkipPaths: []string{"/api/videos"}, LogHealthChecks: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldSkip(tt.path, tt.config); got != tt.expected {
				t.Errorf("shouldSkip(%q) = %v, want %v", tt.path, got, tt.expected)
			}
		})
	}
}

func TestLoggerPassesThrough(t *testing.T) {
	t.Parallel()

	handler := Logger(DefaultLoggingConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))

	req := httptest.NewRequest("GET", "/api/videos", http.NoBody)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusTeapot {
		t.Errorf("status = %d, want 418", w.Code)
	}
	if w.Body.String() != "short and stout" {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestMetricsPassesThrough(t *testing.T) {
	t.Parallel()

	handler := Metrics(DefaultMetricsConfig())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest("POST", "/api/thumbnail", http.NoBody)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", w.Code)
	}
}

func TestNormalizePath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path     string
		expected string
	}{
		{"/api/videos", "/api/videos"},
		{"/api/videos/movie.mp4", "/api/videos/{name}"},
		{"/api/thumbnails/movie.jpg", "/api/thumbnails/{name}"},
		{"/api/sprite/progress/movie.mp4", "/api/sprite/{name}"},
		{"/api/metadata/movie.mp4", "/api/metadata/{name}"},
		{"/health", "/health"},
		{"/", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := normalizePath(tt.path); got != tt.expected {
				t.Errorf("normalizePath(%q) = %q, want %q", tt.path, got, tt.expected)
			}
		})
	}
}
