//go:build !mongo

package storage

import "fmt"

func newMongoStore(_, _ string) (Store, error) {
	return nil, fmt.Errorf("mongo backend unavailable in this build; rebuild with -tags mongo")
}
