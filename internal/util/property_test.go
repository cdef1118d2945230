package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormaliseProperty(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "domain_property_unchanged",
			input:    "sc-domain:example.com",
			expected: "sc-domain:example.com",
		},
		{
			name:     "domain_property_lowercased",
			input:    "sc-domain:Example.COM",
			expected: "sc-domain:example.com",
		},
		{
			name:     "domain_property_strips_www",
			input:    "sc-domain:www.example.com",
			expected: "sc-domain:example.com",
		},
		{
			name:     "domain_property_strips_trailing_slash",
			input:    "sc-domain:example.com/",
			expected: "sc-domain:example.com",
		},
		{
			name:     "url_property_strips_trailing_slash",
			input:    "https://example.com/",
			expected: "https://example.com",
		},
		{
			name:     "url_property_keeps_path",
			input:    "https://example.com/blog",
			expected: "https://example.com/blog",
		},
		{
			name:     "whitespace_trimmed",
			input:    "  sc-domain:example.com  ",
			expected: "sc-domain:example.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormaliseProperty(tt.input))
		})
	}
}

func TestValidateProperty(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{
			name:    "valid_domain_property",
			input:   "sc-domain:example.com",
			wantErr: false,
		},
		{
			name:    "valid_multi_level_tld",
			input:   "sc-domain:example.co.uk",
			wantErr: false,
		},
		{
			name:    "valid_url_property",
			input:   "https://example.com",
			wantErr: false,
		},
		{
			name:    "valid_url_property_with_path",
			input:   "https://example.com/blog/",
			wantErr: false,
		},
		{
			name:    "valid_http_url",
			input:   "http://example.com",
			wantErr: false,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
		{
			name:    "bare_domain_no_scheme",
			input:   "example.com",
			wantErr: true,
		},
		{
			name:    "domain_property_missing_tld",
			input:   "sc-domain:localhost",
			wantErr: true,
		},
		{
			name:    "domain_property_empty_domain",
			input:   "sc-domain:",
			wantErr: true,
		},
		{
			name:    "domain_with_invalid_character",
			input:   "sc-domain:exam ple.com",
			wantErr: true,
		},
		{
			name:    "domain_segment_leading_hyphen",
			input:   "sc-domain:-example.com",
			wantErr: true,
		},
		{
			name:    "single_character_tld",
			input:   "sc-domain:example.c",
			wantErr: true,
		},
		{
			name:    "url_with_no_host",
			input:   "https://",
			wantErr: true,
		},
		{
			name:    "wrong_scheme",
			input:   "ftp://example.com",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateProperty(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
