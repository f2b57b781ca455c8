/*
 *   Copyright 2023 Martin Proffitt <mproffitt@choclab.net>
 *
 *  Licensed under the Apache License, Version 2.0 (the "License");
 *  you may not use this file except in compliance with the License.
 *  You may obtain a copy of the License at
 *
 *      http://www.apache.org/licenses/LICENSE-2.0
 *
 *  Unless required by applicable law or agreed to in writing, software
 *  distributed under the License is distributed on an "AS IS" BASIS,
 *  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *  See the License for the specific language governing permissions and
 *  limitations under the License.
 */
package otp

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/notapipeline/truefa/pkg/types"
)

func TestValidateSeed(t *testing.T) {
	tests := []struct {
		name  string
		seed  string
		valid bool
	}{
		{name: "plain base32", seed: "JBSWY3DPEHPK3PXP", valid: true},
		{name: "lowercase input", seed: "jbswy3dpehpk3pxp", valid: true},
		{name: "surrounding whitespace", seed: "  JBSWY3DPEHPK3PXP  ", valid: true},
		{name: "padded", seed: "JBSWY3DP====", valid: true},
		{name: "digit outside alphabet", seed: "JBSWY3DP1", valid: false},
		{name: "punctuation", seed: "JBSW-Y3DP", valid: false},
		{name: "empty", seed: "", valid: false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := ValidateSeed(test.seed); got != test.valid {
				t.Errorf("Expected %v but got %v for %q", test.valid, got, test.seed)
			}
		})
	}
}

func TestNormalizeSeed(t *testing.T) {
	if got := NormalizeSeed("  jbswy3dp \n"); got != "JBSWY3DP" {
		t.Errorf("Expected %q but got %q", "JBSWY3DP", got)
	}
}

func TestExtractSecret(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		expected  string
		shouldErr bool
	}{
		{
			name:     "standard provisioning URL",
			url:      "otpauth://totp/Example:alice@example.com?secret=JBSWY3DPEHPK3PXP&issuer=Example",
			expected: "JBSWY3DPEHPK3PXP",
		}, {
			name:      "wrong scheme",
			url:       "https://example.com?secret=JBSWY3DPEHPK3PXP",
			shouldErr: true,
		}, {
			name:      "no secret parameter",
			url:       "otpauth://totp/Example:alice@example.com?issuer=Example",
			shouldErr: true,
		}, {
			name:      "not a URL",
			url:       "hello world",
			shouldErr: true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			secret, err := ExtractSecret(test.url)
			if test.shouldErr {
				if err == nil {
					t.Error("Expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected nil error but got %v", err)
			}
			if secret != test.expected {
				t.Errorf("Expected %q but got %q", test.expected, secret)
			}
		})
	}
}

func TestExtractFromPayloads(t *testing.T) {
	payloads := []string{
		"https://not-a-provisioning-url.example.com",
		"otpauth://totp/Example?issuer=NoSecretHere",
		"otpauth://totp/Example:alice?secret=JBSWY3DPEHPK3PXP",
	}

	secret, err := ExtractFromPayloads(payloads)
	if err != nil {
		t.Fatalf("Expected nil error but got %v", err)
	}
	if secret != "JBSWY3DPEHPK3PXP" {
		t.Errorf("Expected %q but got %q", "JBSWY3DPEHPK3PXP", secret)
	}

	if _, err = ExtractFromPayloads([]string{"plain text"}); err == nil {
		t.Error("Expected error but got nil")
	}
}

func TestTOTPGeneratorVector(t *testing.T) {
	// RFC 6238 SHA-1 test vector: T=59 yields 94287082; the six digit
	// truncation is 287082.
	var g TOTPGenerator
	code, remaining, err := g.Code("GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ", time.Unix(59, 0))
	if err != nil {
		t.Fatalf("Expected nil error but got %v", err)
	}
	if code != "287082" {
		t.Errorf("Expected code %q but got %q", "287082", code)
	}
	if remaining != 1 {
		t.Errorf("Expected 1 second remaining but got %d", remaining)
	}
}

func TestTOTPGeneratorRejectsBadSeed(t *testing.T) {
	var g TOTPGenerator
	if _, _, err := g.Code("not base32 at all!", time.Unix(59, 0)); err == nil {
		t.Error("Expected error but got nil")
	}
}

func TestResolveImagePath(t *testing.T) {
	imagesDir := t.TempDir()
	imagePath := filepath.Join(imagesDir, "qr.png")
	if err := os.WriteFile(imagePath, []byte("png"), 0o600); err != nil {
		t.Fatalf("Expected nil error but got %v", err)
	}

	tests := []struct {
		name  string
		input string
	}{
		{name: "relative to images dir", input: "qr.png"},
		{name: "absolute path", input: imagePath},
		{name: "quoted path", input: `"qr.png"`},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			resolved, err := ResolveImagePath(imagesDir, test.input)
			if err != nil {
				t.Fatalf("Expected nil error but got %v", err)
			}
			expected, _ := filepath.EvalSymlinks(imagePath)
			if resolved != expected {
				t.Errorf("Expected %q but got %q", expected, resolved)
			}
		})
	}
}

func TestResolveImagePathRefusesEscape(t *testing.T) {
	imagesDir := t.TempDir()
	outside := filepath.Join(t.TempDir(), "outside.png")
	if err := os.WriteFile(outside, []byte("png"), 0o600); err != nil {
		t.Fatalf("Expected nil error but got %v", err)
	}

	var pe types.PathEscapeError
	if _, err := ResolveImagePath(imagesDir, filepath.Join("..", filepath.Base(filepath.Dir(outside)), "outside.png")); err == nil {
		t.Error("Expected error but got nil")
	} else if !errors.As(err, &pe) && !errors.Is(err, types.ErrNotFound) {
		t.Errorf("Expected PathEscapeError or ErrNotFound but got %v", err)
	}

	// A symlink under the images directory pointing outside it resolves
	// outside and must be refused.
	link := filepath.Join(imagesDir, "link.png")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	if _, err := ResolveImagePath(imagesDir, "link.png"); !errors.As(err, &pe) {
		t.Errorf("Expected PathEscapeError but got %v", err)
	}
}

func TestResolveImagePathMissingFile(t *testing.T) {
	imagesDir := t.TempDir()
	if _, err := ResolveImagePath(imagesDir, "missing.png"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("Expected ErrNotFound but got %v", err)
	}
	if _, err := ResolveImagePath(imagesDir, ""); err == nil {
		t.Error("Expected error but got nil")
	}
}
