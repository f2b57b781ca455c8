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
	"time"

	"github.com/pquerna/otp/totp"
)

// totpPeriod is the code rotation interval in seconds.
const totpPeriod = 30

// TOTPGenerator computes time-based one-time passwords from a seed. It
// satisfies Generator and is the default implementation wired into the
// CLI.
type TOTPGenerator struct{}

// Code returns the current code for seed at the given instant together
// with the seconds remaining until the next rotation.
func (TOTPGenerator) Code(seed string, at time.Time) (string, int, error) {
	code, err := totp.GenerateCode(NormalizeSeed(seed), at)
	if err != nil {
		return "", 0, err
	}
	var remaining int = totpPeriod - int(at.Unix()%totpPeriod)
	return code, remaining, nil
}
