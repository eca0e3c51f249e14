package endpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want []string
	}{
		{
			name: "no override",
			cfg:  Config{Origin: "http://localhost:5173"},
			want: []string{"http://localhost:8000", "http://localhost:5173"},
		},
		{
			name: "override first",
			cfg:  Config{Override: "https://api.nebula.test/", Origin: "http://localhost:5173"},
			want: []string{"https://api.nebula.test", "http://localhost:8000", "http://localhost:5173"},
		},
		{
			name: "origin already on backend port",
			cfg:  Config{Origin: "http://localhost:8000/"},
			want: []string{"http://localhost:8000"},
		},
		{
			name: "override equal to host guess",
			cfg:  Config{Override: "http://localhost:8000", Origin: "http://localhost:5173"},
			want: []string{"http://localhost:8000", "http://localhost:5173"},
		},
		{
			name: "same-origin deployment",
			cfg:  Config{Origin: "https://nebula.example.com"},
			want: []string{"https://nebula.example.com:8000", "https://nebula.example.com"},
		},
		{
			name: "custom backend port",
			cfg:  Config{Origin: "http://10.0.0.5:3000", BackendPort: 9100},
			want: []string{"http://10.0.0.5:9100", "http://10.0.0.5:3000"},
		},
		{
			name: "ipv6 host",
			cfg:  Config{Origin: "http://[::1]:5173"},
			want: []string{"http://[::1]:8000", "http://[::1]:5173"},
		},
		{
			name: "blank override ignored",
			cfg:  Config{Override: "   ", Origin: "http://localhost:5173"},
			want: []string{"http://localhost:8000", "http://localhost:5173"},
		},
		{
			name: "unparseable origin keeps override",
			cfg:  Config{Override: "http://api", Origin: "::not a url"},
			want: []string{"http://api", "::not a url"},
		},
		{
			name: "nothing configured",
			cfg:  Config{},
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.cfg))
		})
	}
}

func TestResolve_OverrideAlwaysFirst(t *testing.T) {
	origins := []string{
		"http://localhost:5173",
		"https://nebula.example.com",
		"http://192.168.1.20:8080/",
		"https://api.nebula.test",
	}

	for _, origin := range origins {
		got := Resolve(Config{Override: "https://api.nebula.test/", Origin: origin})
		assert.Equal(t, "https://api.nebula.test", got[0], origin)
	}
}

func TestResolve_NoDuplicates(t *testing.T) {
	got := Resolve(Config{Override: "http://localhost:5173/", Origin: "http://localhost:5173"})

	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:8000"}, got)
}

func TestConfig_Candidates(t *testing.T) {
	cfg := Config{Origin: "http://localhost:5173"}
	assert.Equal(t, Resolve(cfg), cfg.Candidates())
}
