package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandEnv(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		envVars map[string]string
		want    string
	}{
		{
			name:    "simple substitution",
			input:   "token: ${HUB_API_TOKEN}",
			envVars: map[string]string{"HUB_API_TOKEN": "s3cret"},
			want:    "token: s3cret",
		},
		{
			name:  "default when unset",
			input: "url: ${HUB_URL:-http://127.0.0.1:8000}",
			want:  "url: http://127.0.0.1:8000",
		},
		{
			name:    "default when empty",
			input:   "url: ${HUB_URL:-http://127.0.0.1:8000}",
			envVars: map[string]string{"HUB_URL": ""},
			want:    "url: http://127.0.0.1:8000",
		},
		{
			name:    "value beats default",
			input:   "url: ${HUB_URL:-http://127.0.0.1:8000}",
			envVars: map[string]string{"HUB_URL": "https://hub.example.com"},
			want:    "url: https://hub.example.com",
		},
		{
			name:  "unset without default",
			input: "token: ${GW_API_TOKEN}",
			want:  "token: ",
		},
		{
			name:  "no references",
			input: "port: 3000",
			want:  "port: 3000",
		},
		{
			name:  "bare dollar untouched",
			input: "password: pa$$word",
			want:  "password: pa$$word",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("HUB_URL", "")
			t.Setenv("HUB_API_TOKEN", "")
			t.Setenv("GW_API_TOKEN", "")
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}
			assert.Equal(t, tt.want, ExpandEnv(tt.input))
			assert.Equal(t, tt.want, string(ExpandEnvBytes([]byte(tt.input))))
		})
	}
}

func TestValidateEnvVars(t *testing.T) {
	t.Setenv("HUB_API_TOKEN", "x")
	t.Setenv("GW_API_TOKEN", "")

	input := `
hub:
  url: ${HUB_URL:-http://127.0.0.1:8000}
  token: ${HUB_API_TOKEN}
gateway:
  token: ${GW_API_TOKEN}
  again: ${GW_API_TOKEN}
`
	assert.Equal(t, []string{"GW_API_TOKEN"}, ValidateEnvVars(input))
}

func TestLookupFirst(t *testing.T) {
	t.Setenv("GW_URL", "")
	t.Setenv("NEXT_PUBLIC_GW_URL", "http://gw:4444")

	v, ok := LookupFirst("GW_URL", "NEXT_PUBLIC_GW_URL")
	assert.True(t, ok)
	assert.Equal(t, "http://gw:4444", v)

	t.Setenv("GW_URL", "http://primary:4444")
	v, _ = LookupFirst("GW_URL", "NEXT_PUBLIC_GW_URL")
	assert.Equal(t, "http://primary:4444", v)

	_, ok = LookupFirst("MATRIXHUB_ADMIN_UNSET_VAR")
	assert.False(t, ok)
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "(not set)", MaskSecret(""))
	assert.Equal(t, "***", MaskSecret("short"))
	assert.Equal(t, "***cdef", MaskSecret("0123456789abcdef"))
}

func TestIsSensitiveName(t *testing.T) {
	assert.True(t, IsSensitiveName("HUB_API_TOKEN"))
	assert.True(t, IsSensitiveName("ADMIN_PASS"))
	assert.True(t, IsSensitiveName("password_hash"))
	assert.False(t, IsSensitiveName("HUB_URL"))
	assert.False(t, IsSensitiveName("username"))
}
