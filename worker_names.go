package dropflow

import (
	"fmt"
	"sync/atomic"
)

var workerSeq atomic.Uint64

func nextWorkerName() string {
	return fmt.Sprintf("worker-%d", workerSeq.Add(1))
}
