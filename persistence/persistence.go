package persistence

import (
	"fmt"
)

type StorageLayerError struct {
	Message string
}

func (e StorageLayerError) Error() string {
	return fmt.Sprintf("storage layer error %s", e.Message)
}

type EmptyQueueError struct{}

func (e EmptyQueueError) Error() string {
	return "queue is empty"
}
