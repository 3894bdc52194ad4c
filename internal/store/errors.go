package store

import "fmt"

// StoreError 向量索引拒绝写入或读取
type StoreError struct {
	Collection string
	Op         string
	Cause      error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Collection, e.Cause)
}

func (e *StoreError) Unwrap() error {
	return e.Cause
}

func storeErr(collection, op string, cause error) error {
	if cause == nil {
		return nil
	}
	return &StoreError{Collection: collection, Op: op, Cause: cause}
}
