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

// Package otp holds the narrow interfaces to the external QR decoding and
// one-time-password collaborators, plus the provisioning URL handling the
// core needs to extract seed material from decoded QR payloads.
package otp

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/notapipeline/truefa/pkg/types"
)

// Decoder is the external QR decoder: given image bytes it returns zero
// or more decoded URL strings.
type Decoder interface {
	Decode(image []byte) ([]string, error)
}

// Generator is the external time-based one-time-password generator: given
// a seed and an instant it produces a 6-8 digit code and the seconds of
// validity remaining.
type Generator interface {
	Code(seed string, at time.Time) (code string, secondsRemaining int, err error)
}

var seedPattern *regexp.Regexp = regexp.MustCompile(`^[A-Z2-7]+=*$`)

// ValidateSeed reports whether seed is a plausible base32 encoded OTP
// seed after trimming and uppercasing.
func ValidateSeed(seed string) bool {
	return seedPattern.MatchString(NormalizeSeed(seed))
}

// NormalizeSeed trims and uppercases manually entered seed material.
func NormalizeSeed(seed string) string {
	return strings.ToUpper(strings.TrimSpace(seed))
}

// ExtractSecret parses an OTP provisioning URL and returns its secret
// query parameter. Only the otpauth scheme is accepted.
func ExtractSecret(provisioningURL string) (string, error) {
	u, err := url.Parse(provisioningURL)
	if err != nil || u.Scheme != "otpauth" {
		return "", fmt.Errorf("not an otpauth provisioning URL")
	}
	var secret string = u.Query().Get("secret")
	if secret == "" {
		return "", fmt.Errorf("provisioning URL carries no secret")
	}
	return secret, nil
}

// ExtractFromPayloads scans decoded QR payloads for the first valid
// provisioning URL and returns its seed.
func ExtractFromPayloads(payloads []string) (string, error) {
	for _, p := range payloads {
		if !strings.HasPrefix(p, "otpauth://") {
			continue
		}
		if secret, err := ExtractSecret(p); err == nil {
			return secret, nil
		}
	}
	return "", fmt.Errorf("no valid otpauth URL found")
}

// ResolveImagePath validates an image path against the configured images
// directory. Relative paths resolve under imagesDir; a resolved path
// outside it is refused as a security violation.
func ResolveImagePath(imagesDir, imagePath string) (string, error) {
	imagePath = strings.Trim(strings.TrimSpace(imagePath), `"'`)
	if imagePath == "" {
		return "", fmt.Errorf("image path cannot be empty")
	}
	if !filepath.IsAbs(imagePath) {
		imagePath = filepath.Join(imagesDir, imagePath)
	}

	resolved, err := filepath.EvalSymlinks(imagePath)
	if err != nil {
		return "", types.ErrNotFound
	}
	base, err := filepath.EvalSymlinks(imagesDir)
	if err != nil {
		return "", fmt.Errorf("resolve images directory: %w", err)
	}
	if resolved != base && !strings.HasPrefix(resolved, base+string(os.PathSeparator)) {
		return "", types.PathEscapeError{Name: imagePath}
	}

	fi, err := os.Stat(resolved)
	if err != nil || fi.IsDir() {
		return "", types.ErrNotFound
	}
	return resolved, nil
}
