//go:build !windows

package uiauto

import "errors"

// NewDriver reports that no desktop backend exists on this platform. The
// workflow controllers still compile and test everywhere through the
// uiautotest fake.
func NewDriver() (Driver, error) {
	return Driver{}, errors.New("desktop automation is only available on windows")
}
