//go:build !libpq

package pqclient

import "errors"

func init() {
	newDefaultDriver = func() (Driver, error) {
		return nil, errors.New("this binary was built without libpq support; rebuild with -tags libpq")
	}
}
